// Package grid is a headless table model: it owns column state, sizing, scrolling
// and alignment with peer grids, and leaves drawing to web/components.
//
// A Grid is not safe for concurrent use. Callers serialize access, including
// access to aligned peers, since alignment calls into peers synchronously.
package grid

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"weak"

	"github.com/dasdy/gridsync/model"
)

type SizingStrategy string

const (
	// FitGridWidth spreads the viewport width over the displayed columns.
	FitGridWidth SizingStrategy = "fitGridWidth"

	DefaultColumnWidth   = 200
	DefaultHeaderHeight  = 32
	DefaultViewportWidth = 1200
)

var (
	ErrMovesSuppressed = errors.New("column moves are suppressed")
	ErrNotMovable      = errors.New("only top-level columns can be moved")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownGroup    = errors.New("unknown column group")
	ErrDestroyed       = errors.New("grid is destroyed")
)

type DefaultColDef struct {
	// MinWidth is the pixel minimum applied to every column.
	MinWidth int
}

type Options struct {
	ID                     string
	Columns                model.Tree
	Rows                   []model.Row
	DefaultColDef          DefaultColDef
	AutoSizeStrategy       SizingStrategy
	ViewportWidth          int
	SuppressMovableColumns bool
	// HideHeader renders the grid with a zero-height header, deferring to a peer's headers.
	HideHeader bool
}

type column struct {
	def     *model.Column
	group   *model.Group
	visible bool
	width   int
}

type node struct {
	key      model.Key
	col      *column
	group    *model.Group
	children []*column
}

type Grid struct {
	id        string
	opts      Options
	nodes     []*node
	byKey     map[model.Key]*column
	groupOpen map[model.Key]bool
	rows      []model.Row

	scrollLeft int

	aligned   []weak.Pointer[Grid]
	consuming bool
	destroyed bool
}

// New builds a grid from its options. Columns start visible and groups collapsed.
func New(opts Options) *Grid {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}

	g := &Grid{
		id:        opts.ID,
		opts:      opts,
		byKey:     make(map[model.Key]*column),
		groupOpen: make(map[model.Key]bool),
		rows:      opts.Rows,
	}

	for _, n := range opts.Columns {
		if n.Group == nil {
			c := &column{def: n.Column, visible: true}
			g.byKey[n.Column.ID] = c
			g.nodes = append(g.nodes, &node{key: n.Column.ID, col: c})

			continue
		}

		nd := &node{key: n.Group.ID, group: n.Group}

		for i := range n.Group.Children {
			c := &column{def: &n.Group.Children[i], group: n.Group, visible: true}
			g.byKey[c.def.ID] = c
			nd.children = append(nd.children, c)
		}

		g.groupOpen[n.Group.ID] = false
		g.nodes = append(g.nodes, nd)
	}

	for _, c := range g.byKey {
		c.width = g.minWidth(DefaultColumnWidth)
	}

	g.autoSize()

	return g
}

func (g *Grid) ID() string {
	return g.id
}

func (g *Grid) Options() Options {
	return g.opts
}

func (g *Grid) Destroyed() bool {
	return g.destroyed
}

// Destroy detaches the grid from its peers and drops its rows.
func (g *Grid) Destroy() {
	if g.destroyed {
		return
	}

	slog.Debug("Destroying grid", "grid", g.id)

	g.destroyed = true
	g.aligned = nil
	g.rows = nil
}

func (g *Grid) SetRowData(rows []model.Row) {
	if g.destroyed {
		return
	}

	g.rows = rows
}

func (g *Grid) Rows() []model.Row {
	return g.rows
}

// HasColumn reports whether the key names a leaf column of this grid.
func (g *Grid) HasColumn(key model.Key) bool {
	_, ok := g.byKey[key]

	return ok
}

// IsColumnVisible reports the column's own visibility flag, ignoring group state.
func (g *Grid) IsColumnVisible(key model.Key) bool {
	c, ok := g.byKey[key]

	return ok && c.visible
}

func (g *Grid) IsGroupOpened(key model.Key) bool {
	return g.groupOpen[key]
}

// ColumnWidth returns the current width of a column, displayed or not.
func (g *Grid) ColumnWidth(key model.Key) (int, bool) {
	c, ok := g.byKey[key]
	if !ok {
		return 0, false
	}

	return c.width, true
}

// SetColumnsVisible shows or hides the given columns. Keys the grid does not know
// are ignored.
func (g *Grid) SetColumnsVisible(keys []model.Key, visible bool) {
	if g.destroyed {
		return
	}

	changed := false

	for _, k := range keys {
		c, ok := g.byKey[k]
		if !ok {
			slog.Debug("Ignoring visibility change for unknown column", "grid", g.id, "column", k)

			continue
		}

		if c.visible != visible {
			c.visible = visible
			changed = true
		}
	}

	if !changed {
		return
	}

	g.autoSize()
	g.clampScroll()
	g.broadcast(g.layoutEvent())
}

// SetColumnGroupOpened expands or collapses a column group.
func (g *Grid) SetColumnGroupOpened(key model.Key, open bool) error {
	if g.destroyed {
		return ErrDestroyed
	}

	cur, ok := g.groupOpen[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, key)
	}

	if cur == open {
		return nil
	}

	g.groupOpen[key] = open
	g.broadcast(alignedEvent{kind: eventGroupOpened, group: key, open: open})

	g.autoSize()
	g.clampScroll()
	g.broadcast(g.layoutEvent())

	return nil
}

// SetScrollLeft moves the horizontal scroll offset, clamped to the scrollable range.
func (g *Grid) SetScrollLeft(px int) {
	if g.destroyed {
		return
	}

	before := g.scrollLeft
	g.scrollLeft = px
	g.clampScroll()

	if g.scrollLeft != before {
		g.broadcast(alignedEvent{kind: eventScroll, scrollLeft: g.scrollLeft})
	}
}

func (g *Grid) ScrollLeft() int {
	return g.scrollLeft
}

// MoveColumn moves a top-level column to index among the top-level nodes.
func (g *Grid) MoveColumn(key model.Key, index int) error {
	if g.destroyed {
		return ErrDestroyed
	}

	if g.opts.SuppressMovableColumns {
		return ErrMovesSuppressed
	}

	from := slices.IndexFunc(g.nodes, func(n *node) bool { return n.key == key })
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}

	if g.nodes[from].col == nil {
		return fmt.Errorf("%w: %s", ErrNotMovable, key)
	}

	index = max(0, min(index, len(g.nodes)-1))
	if index == from {
		return nil
	}

	n := g.nodes[from]
	g.nodes = slices.Delete(g.nodes, from, from+1)
	g.nodes = slices.Insert(g.nodes, index, n)

	g.broadcast(alignedEvent{kind: eventOrder, order: g.order()})
	g.broadcast(g.layoutEvent())

	return nil
}

func (g *Grid) order() []model.Key {
	keys := make([]model.Key, 0, len(g.nodes))
	for _, n := range g.nodes {
		keys = append(keys, n.key)
	}

	return keys
}

func (g *Grid) minWidth(w int) int {
	return max(w, g.opts.DefaultColDef.MinWidth)
}

func (g *Grid) displayed(c *column) bool {
	if !c.visible {
		return false
	}

	if c.group == nil {
		return true
	}

	return c.def.Show.DisplayedWhen(g.groupOpen[c.group.ID])
}

// displayedColumns walks the nodes in order and returns the columns currently drawn.
func (g *Grid) displayedColumns() []*column {
	var cols []*column

	for _, n := range g.nodes {
		if n.col != nil {
			if g.displayed(n.col) {
				cols = append(cols, n.col)
			}

			continue
		}

		for _, c := range n.children {
			if g.displayed(c) {
				cols = append(cols, c)
			}
		}
	}

	return cols
}
