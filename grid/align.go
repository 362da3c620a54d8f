package grid

import (
	"log/slog"
	"slices"
	"weak"

	"github.com/dasdy/gridsync/model"
)

type eventKind int

const (
	eventLayout eventKind = iota
	eventScroll
	eventGroupOpened
	eventOrder
)

// alignedEvent carries a structural change from one grid to its peers.
type alignedEvent struct {
	kind       eventKind
	widths     map[model.Key]int
	scrollLeft int
	group      model.Key
	open       bool
	order      []model.Key
}

// SetAlignedGrids replaces the peers this grid mirrors its layout to. Only weak
// references are kept, so a peer that is garbage collected or destroyed is skipped.
// Alignment is one-directional; register each grid with the other for a two-way link.
func (g *Grid) SetAlignedGrids(peers ...*Grid) {
	g.aligned = g.aligned[:0]

	for _, p := range peers {
		if p == nil || p == g {
			continue
		}

		g.aligned = append(g.aligned, weak.Make(p))
	}
}

// AlignedGrids returns the peers that are still alive.
func (g *Grid) AlignedGrids() []*Grid {
	var live []*Grid

	for _, wp := range g.aligned {
		if p := wp.Value(); p != nil && !p.destroyed {
			live = append(live, p)
		}
	}

	return live
}

// IsAlignedWith reports whether other is a live peer of g.
func (g *Grid) IsAlignedWith(other *Grid) bool {
	return slices.Contains(g.AlignedGrids(), other)
}

// RefreshAligned pushes the current layout and scroll offset to every peer.
func (g *Grid) RefreshAligned() {
	if g.destroyed {
		return
	}

	for k, open := range g.groupOpen {
		g.broadcast(alignedEvent{kind: eventGroupOpened, group: k, open: open})
	}

	g.broadcast(g.layoutEvent())
}

func (g *Grid) layoutEvent() alignedEvent {
	widths := make(map[model.Key]int, len(g.byKey))
	for _, c := range g.displayedColumns() {
		widths[c.def.ID] = c.width
	}

	return alignedEvent{kind: eventLayout, widths: widths, scrollLeft: g.scrollLeft}
}

// broadcast sends the event to live peers. Events received from a peer are
// applied without being sent on, which keeps two-way links from looping.
func (g *Grid) broadcast(evt alignedEvent) {
	if g.consuming {
		return
	}

	for _, p := range g.AlignedGrids() {
		p.consume(evt)
	}
}

func (g *Grid) consume(evt alignedEvent) {
	g.consuming = true
	defer func() { g.consuming = false }()

	switch evt.kind {
	case eventLayout:
		for k, w := range evt.widths {
			if c, ok := g.byKey[k]; ok {
				c.width = w
			}
		}

		g.scrollLeft = evt.scrollLeft
		g.clampScroll()
	case eventScroll:
		g.scrollLeft = evt.scrollLeft
		g.clampScroll()
	case eventGroupOpened:
		if _, ok := g.groupOpen[evt.group]; ok {
			g.groupOpen[evt.group] = evt.open
		}
	case eventOrder:
		g.applyOrder(evt.order)
	}

	slog.Debug("Applied aligned grid event", "grid", g.id, "kind", evt.kind)
}

// applyOrder reorders nodes to follow the given key order. Unknown keys are
// skipped and nodes missing from the order keep their relative position at the end.
func (g *Grid) applyOrder(order []model.Key) {
	pos := make(map[model.Key]int, len(order))
	for i, k := range order {
		pos[k] = i
	}

	slices.SortStableFunc(g.nodes, func(a, b *node) int {
		pa, oka := pos[a.key]
		pb, okb := pos[b.key]

		switch {
		case oka && okb:
			return pa - pb
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	})
}
