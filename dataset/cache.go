package dataset

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dasdy/gridsync/model"
)

// DefaultLimit is how many records of the fetched dataset are kept.
const DefaultLimit = 50

var ErrNotFailed = errors.New("dataset did not fail, nothing to retry")

type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "empty"
	}
}

// State is a snapshot of the cache lifecycle. Rows is set only when Loaded and
// Err only when Failed.
type State struct {
	Status Status
	Rows   []model.Row
	Err    error
}

// Cache fetches the dataset at most once per lifecycle and shares the result with
// every caller. Concurrent Load calls wait for the single outstanding fetch.
type Cache struct {
	source Source
	limit  int

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewCache creates an empty cache. A limit of zero or less keeps every row.
func NewCache(source Source, limit int) *Cache {
	return &Cache{source: source, limit: limit}
}

// NewLoadedCache creates a cache that already holds rows.
func NewLoadedCache(rows []model.Row) *Cache {
	return &Cache{state: State{Status: StatusLoaded, Rows: rows}}
}

func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Load returns the cached rows, starting the fetch if nothing was requested yet.
// A failed fetch is reported until Retry is called. The fetch itself is not tied
// to ctx; ctx only bounds how long this caller waits.
func (c *Cache) Load(ctx context.Context) ([]model.Row, error) {
	c.mu.Lock()

	switch c.state.Status {
	case StatusLoaded:
		rows := c.state.Rows
		c.mu.Unlock()

		return rows, nil
	case StatusFailed:
		err := c.state.Err
		c.mu.Unlock()

		return nil, err
	case StatusEmpty:
		c.startLocked(ctx)
	case StatusLoading:
	}

	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	st := c.State()

	return st.Rows, st.Err
}

// Retry moves a failed cache back to Empty and loads again.
func (c *Cache) Retry(ctx context.Context) ([]model.Row, error) {
	c.mu.Lock()

	if c.state.Status != StatusFailed {
		c.mu.Unlock()

		return nil, ErrNotFailed
	}

	slog.Info("Retrying dataset fetch", "previousError", c.state.Err)
	c.state = State{Status: StatusEmpty}
	c.mu.Unlock()

	return c.Load(ctx)
}

func (c *Cache) startLocked(ctx context.Context) {
	c.state = State{Status: StatusLoading}
	c.done = make(chan struct{})
	done := c.done

	fetchCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		rows, err := c.source.Fetch(fetchCtx)

		c.mu.Lock()
		defer c.mu.Unlock()

		if err != nil {
			slog.Error("Dataset fetch failed", "error", err)
			c.state = State{Status: StatusFailed, Err: err}

			return
		}

		if c.limit > 0 && len(rows) > c.limit {
			rows = rows[:c.limit:c.limit]
		}

		c.state = State{Status: StatusLoaded, Rows: rows}
	}()
}
