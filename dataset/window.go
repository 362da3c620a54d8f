package dataset

import (
	"errors"
	"fmt"

	"github.com/dasdy/gridsync/model"
)

var ErrInvalidWindow = errors.New("invalid data window")

// Window is the contiguous [Start, End) range of rows a view renders.
type Window struct {
	Start int
	End   int
}

func (w Window) Validate() error {
	if w.Start < 0 || w.End < w.Start {
		return fmt.Errorf("%w: [%d,%d)", ErrInvalidWindow, w.Start, w.End)
	}

	return nil
}

func (w Window) Len() int {
	return max(0, w.End-w.Start)
}

// Slice returns the window's rows, clamped to the dataset. The result shares the
// backing array with rows but has its capacity capped, so appending to it never
// writes into the shared data.
func (w Window) Slice(rows []model.Row) []model.Row {
	start := min(max(w.Start, 0), len(rows))
	end := min(max(w.End, start), len(rows))

	return rows[start:end:end]
}

// Overlaps reports whether both windows share at least one index.
func (w Window) Overlaps(o Window) bool {
	return max(w.Start, o.Start) < min(w.End, o.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%d,%d)", w.Start, w.End)
}
