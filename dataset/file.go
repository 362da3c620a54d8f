package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dasdy/gridsync/model"
)

// FileSource reads the dataset from a local JSON file holding an array of objects.
type FileSource struct {
	Path string
}

func openPath(path string) (*os.File, error) {
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not resolve %s: %w", path, err)
		}

		path = filepath.Join(wd, path)
	}

	slog.Info("Opening dataset file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", path, err)
	}

	return file, nil
}

func (s *FileSource) Fetch(ctx context.Context) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: s.Path, Err: err}
	}

	file, err := openPath(s.Path)
	if err != nil {
		return nil, &FetchError{URL: s.Path, Err: err}
	}
	defer file.Close()

	var rows []model.Row
	if err := json.NewDecoder(file).Decode(&rows); err != nil {
		return nil, &FetchError{URL: s.Path, Err: fmt.Errorf("could not decode rows: %w", err)}
	}

	return rows, nil
}

// NewSource picks a FileSource for file:// URLs and plain paths and an HTTPSource
// for everything else.
func NewSource(location string, timeout time.Duration) Source {
	if path, ok := strings.CutPrefix(location, "file://"); ok {
		return &FileSource{Path: path}
	}

	if !strings.Contains(location, "://") {
		return &FileSource{Path: location}
	}

	return NewHTTPSource(location, timeout)
}
