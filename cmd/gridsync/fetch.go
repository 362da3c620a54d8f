package gridsync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/db"
	"github.com/spf13/cobra"
)

var (
	outPath    string
	fetchLimit int
	preview    int
)

// fetchCmd represents the fetch command.
var fetchCmd = &cobra.Command{
	Use:              "fetch",
	Short:            "Download the dataset into a sqlite snapshot",
	Long:             `Fetch the rows once and store them, so serve --snapshot works offline.`,
	PersistentPreRun: bindFlags,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(outPath); err == nil {
			slog.Warn("Replacing rows of existing snapshot", "path", outPath)
		}

		return fetchSnapshot(cmd.Context(), dataset.NewSource(dataURL, fetchTimeout), outPath, fetchLimit, preview)
	},
}

func fetchSnapshot(ctx context.Context, source dataset.Source, path string, limit, preview int) error {
	rows, err := dataset.NewCache(source, limit).Load(ctx)
	if err != nil {
		return err
	}

	storage, err := db.NewStorageFromPath(path, true)
	if err != nil {
		return fmt.Errorf("could not open %s as sqlite file: %w", path, err)
	}
	defer storage.Close()

	if err := storage.StoreRows(rows); err != nil {
		return err
	}

	slog.Info("Stored snapshot", "path", path, "rows", len(rows))

	if preview <= 0 {
		return nil
	}

	it, err := storage.AllIterator()
	if err != nil {
		return err
	}

	for idx, row := range it {
		if idx >= preview {
			break
		}

		slog.Info("Snapshot row", "index", idx, "row", row)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&dataURL, "data-url", dataset.DefaultURL,
		"URL or local path of the JSON array of rows")

	fetchCmd.Flags().StringVarP(&outPath, "out", "o", "./olympic-winners.sqlite",
		"Output path for the snapshot")

	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0,
		"Number of rows to keep, 0 keeps all")

	fetchCmd.Flags().IntVar(&preview, "preview", 0,
		"Log this many stored rows after fetching")

	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second,
		"Timeout of the dataset download")
}
