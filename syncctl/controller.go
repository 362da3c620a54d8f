// Package syncctl keeps a primary and a secondary grid aligned and routes
// column-visibility intents from the control surface to the primary grid.
package syncctl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"weak"

	"github.com/dasdy/gridsync/columns"
	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/grid"
	"github.com/dasdy/gridsync/model"
	"github.com/dasdy/gridsync/notifier"
	"github.com/dasdy/gridsync/visibility"
)

// Phase is the lifecycle state of a view pair.
type Phase int

const (
	PhaseUnmounted Phase = iota
	PhaseMounting
	PhaseRegistering
	PhaseSynced
)

func (p Phase) String() string {
	switch p {
	case PhaseMounting:
		return "mounting"
	case PhaseRegistering:
		return "registering"
	case PhaseSynced:
		return "synced"
	default:
		return "unmounted"
	}
}

// Loader provides the shared dataset. *dataset.Cache implements it.
type Loader interface {
	Load(ctx context.Context) ([]model.Row, error)
}

type Options struct {
	PrimaryWindow   dataset.Window
	SecondaryWindow dataset.Window
	Logger          *slog.Logger
}

// DataState describes the controller's view of the dataset.
type DataState struct {
	Loading bool
	Loaded  bool
	Err     error
	Total   int
}

type Controller struct {
	mu sync.Mutex

	pair    *columns.Pair
	windows [2]dataset.Window
	views   [2]weak.Pointer[grid.Grid]
	phase   Phase

	fields     []model.Key
	visibility visibility.State

	rows    []model.Row
	loading bool
	loadErr error

	notify *notifier.Notifier
	logger *slog.Logger
}

func New(pair *columns.Pair, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fields := make([]model.Key, 0, len(pair.Primary))
	for _, f := range columns.ToggleableFields(pair.Primary) {
		fields = append(fields, f.Key)
	}

	return &Controller{
		pair:    pair,
		windows: [2]dataset.Window{opts.PrimaryWindow, opts.SecondaryWindow},
		fields:  fields,
		notify:  notifier.New(),
		logger:  logger,
	}
}

func (c *Controller) Columns() *columns.Pair {
	return c.pair
}

func (c *Controller) Window(role model.Role) dataset.Window {
	return c.windows[role]
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Visibility returns the current visibility state of the primary view. It is
// empty while the primary is not mounted.
func (c *Controller) Visibility() visibility.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.visibility
}

// Grid returns the mounted grid for the role, or nil.
func (c *Controller) Grid(role model.Role) *grid.Grid {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.liveLocked(role)
}

func (c *Controller) liveLocked(role model.Role) *grid.Grid {
	g := c.views[role].Value()
	if g == nil || g.Destroyed() {
		return nil
	}

	return g
}

// Do runs fn with the controller locked, so fn can read grid state consistently
// with concurrent toggles.
func (c *Controller) Do(fn func(primary, secondary *grid.Grid)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.liveLocked(model.Primary), c.liveLocked(model.Secondary))
}

func (c *Controller) Data() DataState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return DataState{Loading: c.loading, Loaded: c.rows != nil, Err: c.loadErr, Total: len(c.rows)}
}

func (c *Controller) Subscribe() chan struct{} {
	return c.notify.Subscribe()
}

func (c *Controller) Unsubscribe(ch chan struct{}) {
	c.notify.Unsubscribe(ch)
}

// Mount records a freshly mounted grid. Once both roles are mounted the peers are
// registered; a registration failure leaves the pair in PhaseMounting.
func (c *Controller) Mount(role model.Role, g *grid.Grid) error {
	if g == nil {
		return ErrNilGrid
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify.Broadcast()

	prev := c.liveLocked(role)
	if prev != nil && prev != g {
		c.detachLocked(role, prev)
	}

	c.views[role] = weak.Make(g)

	if role == model.Primary {
		if prev != g {
			c.visibility = visibility.New(c.fields)
		}

		c.applyVisibilityLocked(g)
	}

	if c.rows != nil {
		g.SetRowData(c.windows[role].Slice(c.rows))
	}

	c.phase = PhaseMounting
	c.logger.Debug("Mounted view", "role", role, "grid", g.ID())

	primary, secondary := c.liveLocked(model.Primary), c.liveLocked(model.Secondary)
	if primary == nil || secondary == nil {
		return nil
	}

	return c.registerLocked(primary, secondary)
}

// Unmount drops the view for role and tears the peer link down.
func (c *Controller) Unmount(role model.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify.Broadcast()

	if g := c.liveLocked(role); g != nil {
		c.detachLocked(role, g)
	}

	c.views[role] = weak.Pointer[grid.Grid]{}

	if role == model.Primary {
		c.visibility = visibility.State{}
	}

	if c.liveLocked(role.Other()) == nil {
		c.phase = PhaseUnmounted
	} else {
		c.phase = PhaseMounting
	}

	c.logger.Debug("Unmounted view", "role", role, "phase", c.phase)
}

func (c *Controller) detachLocked(role model.Role, g *grid.Grid) {
	g.SetAlignedGrids()

	if peer := c.liveLocked(role.Other()); peer != nil {
		peer.SetAlignedGrids()
	}
}

// RegisterPeer links two mounted grids so layout changes in either are mirrored to
// the other. The order of the arguments does not matter.
func (c *Controller) RegisterPeer(a, b *grid.Grid) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify.Broadcast()

	return c.registerLocked(a, b)
}

func (c *Controller) registerLocked(a, b *grid.Grid) error {
	c.phase = PhaseRegistering

	primary, secondary := c.liveLocked(model.Primary), c.liveLocked(model.Secondary)
	if a == secondary && b == primary {
		a, b = b, a
	}

	var failure *PeerRegistrationError

	switch {
	case a == nil || a.Destroyed() || a != primary:
		failure = &PeerRegistrationError{Role: model.Primary, Reason: "is not mounted"}
	case b == nil || b.Destroyed() || b != secondary:
		failure = &PeerRegistrationError{Role: model.Secondary, Reason: "is not mounted"}
	}

	if failure != nil {
		for _, g := range []*grid.Grid{a, b, primary, secondary} {
			if g != nil {
				g.SetAlignedGrids()
			}
		}

		c.phase = PhaseMounting
		c.logger.Warn("Peer registration abandoned", "error", failure)

		return failure
	}

	a.SetAlignedGrids(b)
	b.SetAlignedGrids(a)
	a.RefreshAligned()

	c.phase = PhaseSynced
	c.logger.Debug("Registered peers", "primary", a.ID(), "secondary", b.ID())

	return nil
}

// SetColumnVisible applies a visibility intent to the primary view. Keys that are
// not fields of the primary tree return *visibility.UnknownFieldError and change
// nothing. Repeating the current value is a no-op.
func (c *Controller) SetColumnVisible(key model.Key, visible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.knownField(key) {
		return &visibility.UnknownFieldError{Key: key}
	}

	primary := c.liveLocked(model.Primary)
	if primary == nil {
		return fmt.Errorf("toggle %s: %w", key, ErrNotMounted)
	}

	next, changed, err := c.visibility.Next(visibility.Toggle{Key: key, Visible: visible})
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	c.visibility = next
	primary.SetColumnsVisible([]model.Key{key}, visible)

	c.logger.Debug("Column visibility changed", "column", key, "visible", visible)
	c.notify.Broadcast()

	return nil
}

// applyVisibilityLocked makes the primary grid show exactly what the state says,
// whatever the grid was left with before it was mounted.
func (c *Controller) applyVisibilityLocked(g *grid.Grid) {
	var shown []model.Key

	for _, k := range c.visibility.Keys() {
		if c.visibility.Visible(k) {
			shown = append(shown, k)
		}
	}

	g.SetColumnsVisible(shown, true)
	g.SetColumnsVisible(c.visibility.Hidden(), false)
}

func (c *Controller) knownField(key model.Key) bool {
	for _, f := range c.fields {
		if f == key {
			return true
		}
	}

	return false
}

// SetColumnGroupOpened expands or collapses a group on the primary view.
func (c *Controller) SetColumnGroupOpened(group model.Key, open bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	primary := c.liveLocked(model.Primary)
	if primary == nil {
		return fmt.Errorf("group %s: %w", group, ErrNotMounted)
	}

	if err := primary.SetColumnGroupOpened(group, open); err != nil {
		return err
	}

	c.notify.Broadcast()

	return nil
}

// SetScrollLeft scrolls one view horizontally; the peer follows.
func (c *Controller) SetScrollLeft(role model.Role, px int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.liveLocked(role)
	if g == nil {
		return fmt.Errorf("scroll %s: %w", role, ErrNotMounted)
	}

	g.SetScrollLeft(px)
	c.notify.Broadcast()

	return nil
}

// InitialLoad asks the loader for the dataset unless it is already present or on
// its way, and hands each mounted view its window once it arrives. The call does
// not block. The rows are kept even when every view was torn down meanwhile, so
// views mounted later get them without another fetch.
func (c *Controller) InitialLoad(ctx context.Context, loader Loader) {
	c.mu.Lock()

	if c.rows != nil {
		c.assignRowsLocked()
		c.mu.Unlock()

		return
	}

	if c.loading {
		c.mu.Unlock()

		return
	}

	c.loading = true
	c.loadErr = nil
	c.mu.Unlock()

	go func() {
		rows, err := loader.Load(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()

		c.loading = false

		defer c.notify.Broadcast()

		if err != nil {
			c.loadErr = err
			c.logger.Error("Initial load failed", "error", err)

			return
		}

		if rows == nil {
			rows = []model.Row{}
		}

		c.rows = rows
		c.assignRowsLocked()
		c.logger.Info("Initial load done", "rows", len(rows))
	}()
}

func (c *Controller) assignRowsLocked() {
	for _, role := range []model.Role{model.Primary, model.Secondary} {
		if g := c.liveLocked(role); g != nil {
			g.SetRowData(c.windows[role].Slice(c.rows))
		}
	}
}

// Close tears down both views and stops every subscriber.
func (c *Controller) Close() {
	c.Unmount(model.Primary)
	c.Unmount(model.Secondary)
	c.notify.Close()
}
