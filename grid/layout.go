package grid

import "github.com/dasdy/gridsync/model"

type ColumnLayout struct {
	Key    model.Key
	Header string
	Column *model.Column
	Width  int
	Left   int
}

// HeaderGroup is one cell of the group header row. Plain columns get an
// empty cell of their own width.
type HeaderGroup struct {
	Key        model.Key
	Header     string
	IsGroup    bool
	Open       bool
	Expandable bool
	Width      int
}

type Layout struct {
	Columns       []ColumnLayout
	HeaderGroups  []HeaderGroup
	TotalWidth    int
	ViewportWidth int
	ScrollLeft    int
	HeaderHeight  int
}

// Keys returns the displayed column keys in order.
func (l Layout) Keys() []model.Key {
	keys := make([]model.Key, 0, len(l.Columns))
	for _, c := range l.Columns {
		keys = append(keys, c.Key)
	}

	return keys
}

// Widths maps each displayed column to its width.
func (l Layout) Widths() map[model.Key]int {
	widths := make(map[model.Key]int, len(l.Columns))
	for _, c := range l.Columns {
		widths[c.Key] = c.Width
	}

	return widths
}

// Layout computes the current drawing geometry.
func (g *Grid) Layout() Layout {
	l := Layout{
		ViewportWidth: g.opts.ViewportWidth,
		ScrollLeft:    g.scrollLeft,
		HeaderHeight:  DefaultHeaderHeight,
	}

	if g.opts.HideHeader {
		l.HeaderHeight = 0
	}

	left := 0

	for _, n := range g.nodes {
		if n.col != nil {
			if !g.displayed(n.col) {
				continue
			}

			l.Columns = append(l.Columns, ColumnLayout{
				Key: n.key, Header: n.col.def.Header(), Column: n.col.def, Width: n.col.width, Left: left,
			})
			l.HeaderGroups = append(l.HeaderGroups, HeaderGroup{Key: n.key, Width: n.col.width})
			left += n.col.width

			continue
		}

		hg := HeaderGroup{
			Key:        n.key,
			Header:     n.group.Header(),
			IsGroup:    true,
			Open:       g.groupOpen[n.key],
			Expandable: expandable(n.group),
		}

		for _, c := range n.children {
			if !g.displayed(c) {
				continue
			}

			l.Columns = append(l.Columns, ColumnLayout{
				Key: c.def.ID, Header: c.def.Header(), Column: c.def, Width: c.width, Left: left,
			})
			hg.Width += c.width
			left += c.width
		}

		if hg.Width > 0 {
			l.HeaderGroups = append(l.HeaderGroups, hg)
		}
	}

	l.TotalWidth = left

	return l
}

func expandable(g *model.Group) bool {
	for _, c := range g.Children {
		if c.Show != model.ShowAlways {
			return true
		}
	}

	return false
}

// autoSize applies the sizing strategy to the displayed columns.
func (g *Grid) autoSize() {
	if g.opts.AutoSizeStrategy != FitGridWidth {
		return
	}

	cols := g.displayedColumns()
	if len(cols) == 0 {
		return
	}

	each := g.opts.ViewportWidth / len(cols)
	if each < g.opts.DefaultColDef.MinWidth {
		for _, c := range cols {
			c.width = g.opts.DefaultColDef.MinWidth
		}

		return
	}

	extra := g.opts.ViewportWidth - each*len(cols)

	for i, c := range cols {
		c.width = each
		if i < extra {
			c.width++
		}
	}
}

func (g *Grid) totalWidth() int {
	total := 0
	for _, c := range g.displayedColumns() {
		total += c.width
	}

	return total
}

// MaxScrollLeft is the largest horizontal offset that still shows content.
func (g *Grid) MaxScrollLeft() int {
	return max(0, g.totalWidth()-g.opts.ViewportWidth)
}

func (g *Grid) clampScroll() {
	g.scrollLeft = max(0, min(g.scrollLeft, g.MaxScrollLeft()))
}
