package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dasdy/gridsync/columns"
	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/grid"
	"github.com/dasdy/gridsync/model"
	"github.com/dasdy/gridsync/syncctl"
	"github.com/google/uuid"
)

var (
	ErrNoView            = errors.New("no view pair for this session")
	ErrInvalidGridConfig = errors.New("invalid grid config")
)

// GridConfig sizes the grids and picks the row windows of every view pair.
type GridConfig struct {
	ViewportWidth   int
	MinWidth        int
	PrimaryWindow   dataset.Window
	SecondaryWindow dataset.Window
}

// DefaultGridConfig shows rows [0,10) on top and [20,30) below.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		ViewportWidth:   grid.DefaultViewportWidth,
		MinWidth:        100,
		PrimaryWindow:   dataset.Window{Start: 0, End: 10},
		SecondaryWindow: dataset.Window{Start: 20, End: 30},
	}
}

// Validate rejects non-positive sizes, malformed windows and windows that share rows.
func (c GridConfig) Validate() error {
	if c.ViewportWidth <= 0 || c.MinWidth <= 0 {
		return fmt.Errorf("%w: viewport width %d and min width %d must be positive",
			ErrInvalidGridConfig, c.ViewportWidth, c.MinWidth)
	}

	if err := c.PrimaryWindow.Validate(); err != nil {
		return fmt.Errorf("primary window: %w", err)
	}

	if err := c.SecondaryWindow.Validate(); err != nil {
		return fmt.Errorf("secondary window: %w", err)
	}

	if c.PrimaryWindow.Overlaps(c.SecondaryWindow) {
		return fmt.Errorf("%w: windows %s and %s overlap",
			ErrInvalidGridConfig, c.PrimaryWindow, c.SecondaryWindow)
	}

	return nil
}

// View is one browser session's pair of grids. The view owns the grids; the
// controller only observes them.
type View struct {
	ID         string
	Controller *syncctl.Controller

	cfg    GridConfig
	fields []columns.ToggleableField

	mu        sync.Mutex
	primary   *grid.Grid
	secondary *grid.Grid
	mounts    int
	lastErr   error
	lastSeen  time.Time
}

// Mount creates whichever grid is missing and hands it to the controller.
func (v *View) Mount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.primary != nil && v.secondary != nil {
		return nil
	}

	v.mounts++
	pair := v.Controller.Columns()

	var errs []error

	if v.primary == nil {
		v.primary = grid.New(grid.Options{
			ID:                     fmt.Sprintf("%s-primary-%d", v.ID, v.mounts),
			Columns:                pair.Primary,
			DefaultColDef:          grid.DefaultColDef{MinWidth: v.cfg.MinWidth},
			AutoSizeStrategy:       grid.FitGridWidth,
			ViewportWidth:          v.cfg.ViewportWidth,
			SuppressMovableColumns: true,
		})
		errs = append(errs, v.Controller.Mount(model.Primary, v.primary))
	}

	if v.secondary == nil {
		v.secondary = grid.New(grid.Options{
			ID:                     fmt.Sprintf("%s-secondary-%d", v.ID, v.mounts),
			Columns:                pair.Secondary,
			DefaultColDef:          grid.DefaultColDef{MinWidth: v.cfg.MinWidth},
			ViewportWidth:          v.cfg.ViewportWidth,
			SuppressMovableColumns: true,
			HideHeader:             true,
		})
		errs = append(errs, v.Controller.Mount(model.Secondary, v.secondary))
	}

	return errors.Join(errs...)
}

func (v *View) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.primary != nil && v.secondary != nil
}

// Unmount tears both grids down. A later Mount builds fresh ones.
func (v *View) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Controller.Unmount(model.Primary)
	v.Controller.Unmount(model.Secondary)

	for _, g := range []*grid.Grid{v.primary, v.secondary} {
		if g != nil {
			g.Destroy()
		}
	}

	v.primary, v.secondary = nil, nil
}

// Record keeps the outcome of the latest user action for the control surface.
func (v *View) Record(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastErr = err
}

func (v *View) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.lastErr
}

func (v *View) Fields() []columns.ToggleableField {
	return v.fields
}

// Registry maps session view IDs to view pairs. Every pair shares the same
// column trees.
type Registry struct {
	pair   *columns.Pair
	cfg    GridConfig
	logger *slog.Logger

	mu    sync.Mutex
	views map[string]*View
}

func NewRegistry(pair *columns.Pair, cfg GridConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		pair:   pair,
		cfg:    cfg,
		logger: logger,
		views:  make(map[string]*View),
	}
}

// Open creates and mounts a new view pair.
func (r *Registry) Open() (*View, error) {
	id := uuid.NewString()

	v := &View{
		ID: id,
		Controller: syncctl.New(r.pair, syncctl.Options{
			PrimaryWindow:   r.cfg.PrimaryWindow,
			SecondaryWindow: r.cfg.SecondaryWindow,
			Logger:          r.logger.With("view", id),
		}),
		cfg:      r.cfg,
		fields:   columns.ToggleableFields(r.pair.Primary),
		lastSeen: time.Now(),
	}

	if err := v.Mount(); err != nil {
		v.Controller.Close()

		return nil, fmt.Errorf("could not mount view %s: %w", id, err)
	}

	r.mu.Lock()
	r.views[id] = v
	r.mu.Unlock()

	r.logger.Info("Opened view pair", "view", id)

	return v, nil
}

func (r *Registry) Get(id string) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[id]
	if ok {
		v.mu.Lock()
		v.lastSeen = time.Now()
		v.mu.Unlock()
	}

	return v, ok
}

// Release unmounts the view pair and forgets it.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if !ok {
		return
	}

	v.Unmount()
	v.Controller.Close()
	r.logger.Info("Released view pair", "view", id)
}

// Sweep releases view pairs that were not used for longer than idle and reports
// how many went away.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()

	var stale []string

	for id, v := range r.views {
		v.mu.Lock()
		if v.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
		v.mu.Unlock()
	}

	r.mu.Unlock()

	for _, id := range stale {
		r.Release(id)
	}

	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.views)
}

// Close releases every view pair.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.views))

	for id := range r.views {
		ids = append(ids, id)
	}

	r.mu.Unlock()

	for _, id := range ids {
		r.Release(id)
	}
}
