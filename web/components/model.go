package components

import (
	"strconv"

	"github.com/dasdy/gridsync/columns"
	"github.com/dasdy/gridsync/grid"
	"github.com/dasdy/gridsync/model"
	"github.com/dasdy/gridsync/visibility"
)

type BannerKind string

const BannerError BannerKind = "error"

type Banner struct {
	Kind    BannerKind
	Message string
	// Retry adds a button that asks the server to fetch the dataset again.
	Retry bool
}

// Checkbox is one entry of the control surface.
type Checkbox struct {
	Key     model.Key
	Label   string
	Group   string
	Checked bool
	URL     string
}

type HeaderCell struct {
	Key        model.Key
	Label      string
	Width      int
	IsGroup    bool
	Open       bool
	Expandable bool
	URL        string
}

type Cell struct {
	Text  string
	Width int
}

// GridView is everything needed to draw one grid.
type GridView struct {
	ID            string
	Role          string
	GroupCells    []HeaderCell
	HeaderCells   []HeaderCell
	Rows          [][]Cell
	TotalWidth    int
	ViewportWidth int
	ScrollLeft    int
	HeaderHeight  int
	ScrollURL     string
}

type RenderContext struct {
	Title   string
	Dev     bool
	ViewID  string
	Phase   string
	Mounted bool
	Loading bool

	Controls []Checkbox
	Banners  []Banner

	Primary   GridView
	Secondary GridView
}

// NewGridView copies a layout and the visible cell values out of a grid.
func NewGridView(role model.Role, id string, l grid.Layout, rows []model.Row) GridView {
	gv := GridView{
		ID:            id,
		Role:          role.String(),
		TotalWidth:    l.TotalWidth,
		ViewportWidth: l.ViewportWidth,
		ScrollLeft:    l.ScrollLeft,
		HeaderHeight:  l.HeaderHeight,
		ScrollURL:     scrollURL(role),
		GroupCells:    make([]HeaderCell, 0, len(l.HeaderGroups)),
		HeaderCells:   make([]HeaderCell, 0, len(l.Columns)),
		Rows:          make([][]Cell, 0, len(rows)),
	}

	for _, hg := range l.HeaderGroups {
		cell := HeaderCell{Key: hg.Key, Width: hg.Width}
		if hg.IsGroup {
			cell.Label = hg.Header
			cell.IsGroup = true
			cell.Open = hg.Open
			cell.Expandable = hg.Expandable
			cell.URL = groupURL(hg.Key, !hg.Open)
		}

		gv.GroupCells = append(gv.GroupCells, cell)
	}

	for _, c := range l.Columns {
		gv.HeaderCells = append(gv.HeaderCells, HeaderCell{Key: c.Key, Label: c.Header, Width: c.Width})
	}

	for _, row := range rows {
		cells := make([]Cell, 0, len(l.Columns))
		for _, c := range l.Columns {
			cells = append(cells, Cell{Text: FormatValue(c.Column.Value(row)), Width: c.Width})
		}

		gv.Rows = append(gv.Rows, cells)
	}

	return gv
}

// NewControls builds one checkbox per toggleable field, checked when the field is
// visible in state.
func NewControls(fields []columns.ToggleableField, state visibility.State) []Checkbox {
	boxes := make([]Checkbox, 0, len(fields))

	for _, f := range fields {
		label := f.Header
		if label == "" {
			label = string(f.Key)
		}

		boxes = append(boxes, Checkbox{
			Key:     f.Key,
			Label:   label,
			Group:   f.Group,
			Checked: state.Visible(f.Key),
			URL:     toggleURL(f.Key),
		})
	}

	return boxes
}

// FormatValue renders a JSON-decoded cell value.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return "?"
	}
}
