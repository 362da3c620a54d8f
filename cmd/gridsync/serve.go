package gridsync

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/db"
	"github.com/dasdy/gridsync/web"
	"github.com/dasdy/gridsync/web/routes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	port          int
	dataURL       string
	limit         int
	snapshotPath  string
	viewportWidth int
	minWidth      int
	dev           bool
	fetchTimeout  time.Duration
	sessionSecret string
	idleTimeout   time.Duration
	primaryRows   []int
	secondaryRows []int
)

// windowFromFlag turns a start,end flag value into a row window.
func windowFromFlag(name string, bounds []int) (dataset.Window, error) {
	if len(bounds) != 2 {
		return dataset.Window{}, fmt.Errorf("--%s needs start,end, got %v", name, bounds)
	}

	return dataset.Window{Start: bounds[0], End: bounds[1]}, nil
}

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:              "serve",
	Short:            "Serve the aligned tables",
	Long:             `Run the web interface. The dataset is downloaded on the first page view and shared by every visitor.`,
	PersistentPreRun: bindFlags,
	RunE: func(cmd *cobra.Command, _ []string) error {
		slog.Debug("Config parameters", "settings", viper.AllSettings())

		pair, err := columnsFromConfig(viper.GetViper())
		if err != nil {
			return err
		}

		source := dataset.NewSource(dataURL, fetchTimeout)

		if snapshotPath != "" {
			storage, err := db.NewStorageFromPath(snapshotPath, false)
			if err != nil {
				return fmt.Errorf("could not open %s as sqlite file: %w", snapshotPath, err)
			}
			defer storage.Close()

			source = &dataset.SnapshotSource{Storage: storage, Upstream: source}
		}

		grid := routes.DefaultGridConfig()
		grid.ViewportWidth = viewportWidth
		grid.MinWidth = minWidth

		if grid.PrimaryWindow, err = windowFromFlag("primary-rows", primaryRows); err != nil {
			return err
		}

		if grid.SecondaryWindow, err = windowFromFlag("secondary-rows", secondaryRows); err != nil {
			return err
		}

		var watch []string
		if f := viper.ConfigFileUsed(); f != "" {
			watch = append(watch, f)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return web.StartServer(ctx, web.Config{
			Port:          port,
			Dev:           dev,
			Cache:         dataset.NewCache(source, limit),
			Columns:       pair,
			Grid:          grid,
			SessionSecret: []byte(sessionSecret),
			IdleTimeout:   idleTimeout,
			WatchFiles:    watch,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&port, "port", "p", 9000,
		"Port on which server should be watching")

	serveCmd.Flags().StringVar(&dataURL, "data-url", dataset.DefaultURL,
		"URL or local path of the JSON array of rows")

	serveCmd.Flags().IntVar(&limit, "limit", dataset.DefaultLimit,
		"Number of fetched rows to keep, 0 keeps all")

	serveCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "",
		"Sqlite snapshot to serve rows from, filled from data-url when empty")

	serveCmd.Flags().IntVar(&viewportWidth, "viewport-width", routes.DefaultGridConfig().ViewportWidth,
		"Width in pixels the columns are fitted to")

	serveCmd.Flags().IntVar(&minWidth, "min-width", routes.DefaultGridConfig().MinWidth,
		"Minimum column width in pixels")

	serveCmd.Flags().IntSliceVar(&primaryRows, "primary-rows", []int{0, 10},
		"Row window [start,end) of the top table")

	serveCmd.Flags().IntSliceVar(&secondaryRows, "secondary-rows", []int{20, 30},
		"Row window [start,end) of the bottom table")

	serveCmd.Flags().BoolVar(&dev, "dev", false,
		"Enable developer mode")

	serveCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second,
		"Timeout of the dataset download")

	serveCmd.Flags().StringVar(&sessionSecret, "session-secret", "",
		"Secret signing the session cookie, random when empty")

	serveCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", web.DefaultIdleTimeout,
		"Release view pairs unused for this long, 0 keeps them")
}
