package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dasdy/gridsync/db"
	"github.com/dasdy/gridsync/model"
)

// SnapshotSource serves rows from a sqlite snapshot and falls back to Upstream
// when the snapshot is empty, storing what it fetched.
type SnapshotSource struct {
	Storage  db.Storage
	Upstream Source
}

func (s *SnapshotSource) Fetch(ctx context.Context) ([]model.Row, error) {
	rows, err := s.Storage.GatherAll()
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot: %w", err)
	}

	if len(rows) > 0 {
		slog.Info("Serving dataset from snapshot", "rows", len(rows))

		return rows, nil
	}

	if s.Upstream == nil {
		return nil, fmt.Errorf("snapshot is empty and no upstream source is configured")
	}

	rows, err = s.Upstream.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Storage.StoreRows(rows); err != nil {
		// The rows are still usable for this process.
		slog.Error("Could not store snapshot", "error", err)
	}

	return rows, nil
}
