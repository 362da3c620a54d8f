package syncctl_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dasdy/gridsync/columns"
	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/grid"
	"github.com/dasdy/gridsync/model"
	"github.com/dasdy/gridsync/syncctl"
	"github.com/dasdy/gridsync/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRows(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{"athlete": fmt.Sprintf("athlete-%d", i), "gold": 1.0, "silver": 2.0, "bronze": 3.0}
	}

	return rows
}

// LoaderMock hands out rows once release is closed.
type LoaderMock struct {
	Rows      []model.Row
	Err       error
	Release   chan struct{}
	CallCount int
}

func (m *LoaderMock) Load(ctx context.Context) ([]model.Row, error) {
	m.CallCount++

	if m.Release != nil {
		select {
		case <-m.Release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return m.Rows, m.Err
}

func newController() *syncctl.Controller {
	return syncctl.New(columns.Default(), syncctl.Options{
		PrimaryWindow:   dataset.Window{Start: 0, End: 10},
		SecondaryWindow: dataset.Window{Start: 20, End: 30},
	})
}

func newGrids(c *syncctl.Controller) (*grid.Grid, *grid.Grid) {
	top := grid.New(grid.Options{
		ID:                     "top",
		Columns:                c.Columns().Primary,
		DefaultColDef:          grid.DefaultColDef{MinWidth: 100},
		AutoSizeStrategy:       grid.FitGridWidth,
		ViewportWidth:          1200,
		SuppressMovableColumns: true,
	})
	bottom := grid.New(grid.Options{
		ID:                     "bottom",
		Columns:                c.Columns().Secondary,
		DefaultColDef:          grid.DefaultColDef{MinWidth: 100},
		ViewportWidth:          1200,
		SuppressMovableColumns: true,
		HideHeader:             true,
	})

	return top, bottom
}

func mountBoth(t *testing.T, c *syncctl.Controller) (*grid.Grid, *grid.Grid) {
	t.Helper()

	top, bottom := newGrids(c)
	require.NoError(t, c.Mount(model.Primary, top))
	require.NoError(t, c.Mount(model.Secondary, bottom))
	require.Equal(t, syncctl.PhaseSynced, c.Phase())

	return top, bottom
}

func waitFor(t *testing.T, ch chan struct{}, cond func() bool) {
	t.Helper()

	deadline := time.After(time.Second)

	for !cond() {
		select {
		case <-ch:
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

func TestLifecycle(t *testing.T) {
	c := newController()
	assert.Equal(t, syncctl.PhaseUnmounted, c.Phase())

	top, bottom := newGrids(c)

	require.NoError(t, c.Mount(model.Primary, top))
	assert.Equal(t, syncctl.PhaseMounting, c.Phase())
	assert.Empty(t, top.AlignedGrids())

	require.NoError(t, c.Mount(model.Secondary, bottom))
	assert.Equal(t, syncctl.PhaseSynced, c.Phase())
	assert.True(t, top.IsAlignedWith(bottom))
	assert.True(t, bottom.IsAlignedWith(top))

	c.Unmount(model.Secondary)
	assert.Equal(t, syncctl.PhaseMounting, c.Phase())
	assert.Empty(t, top.AlignedGrids())
	assert.Empty(t, bottom.AlignedGrids())

	// Remounting re-attempts registration.
	require.NoError(t, c.Mount(model.Secondary, bottom))
	assert.Equal(t, syncctl.PhaseSynced, c.Phase())

	c.Unmount(model.Primary)
	c.Unmount(model.Secondary)
	assert.Equal(t, syncctl.PhaseUnmounted, c.Phase())
	assert.Nil(t, c.Grid(model.Primary))

	require.ErrorIs(t, c.Mount(model.Primary, nil), syncctl.ErrNilGrid)
}

func TestRegisterPeer(t *testing.T) {
	t.Run("argument order does not matter", func(t *testing.T) {
		for _, swap := range []bool{false, true} {
			c := newController()
			top, bottom := mountBoth(t, c)

			a, b := top, bottom
			if swap {
				a, b = b, a
			}

			require.NoError(t, c.RegisterPeer(a, b))
			require.NoError(t, c.SetColumnVisible("age", false))

			assert.Equal(t, 240, mustWidth(t, bottom, "athlete"), "swap=%v", swap)
			assert.True(t, bottom.IsColumnVisible("age"))
		}
	})

	t.Run("a view that went away fails cleanly", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)

		bottom.Destroy()

		err := c.RegisterPeer(top, bottom)

		var regErr *syncctl.PeerRegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, model.Secondary, regErr.Role)
		assert.Equal(t, syncctl.PhaseMounting, c.Phase())
		assert.Empty(t, top.AlignedGrids())

		// The next mount retries.
		_, fresh := newGrids(c)
		require.NoError(t, c.Mount(model.Secondary, fresh))
		assert.Equal(t, syncctl.PhaseSynced, c.Phase())
		assert.True(t, top.IsAlignedWith(fresh))
	})

	t.Run("grids that are not mounted are rejected", func(t *testing.T) {
		c := newController()
		top, _ := mountBoth(t, c)
		_, stranger := newGrids(c)

		err := c.RegisterPeer(top, stranger)

		var regErr *syncctl.PeerRegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Empty(t, stranger.AlignedGrids())
	})
}

func mustWidth(t *testing.T, g *grid.Grid, key model.Key) int {
	t.Helper()

	w, ok := g.ColumnWidth(key)
	require.True(t, ok)

	return w
}

func TestSetColumnVisible(t *testing.T) {
	t.Run("hiding gold on primary mirrors layout but not visibility", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		c.InitialLoad(context.Background(), dataset.NewLoadedCache(makeRows(50)))
		waitFor(t, updates, func() bool { return c.Data().Loaded })

		require.NoError(t, c.SetColumnGroupOpened("medals", true))
		require.NoError(t, c.SetScrollLeft(model.Primary, 0))

		require.NoError(t, c.SetColumnVisible("gold", false))

		assert.False(t, top.IsColumnVisible("gold"))
		assert.True(t, bottom.IsColumnVisible("gold"))
		assert.False(t, c.Visibility().Visible("gold"))

		bottomWidths := bottom.Layout().Widths()
		for k, w := range top.Layout().Widths() {
			assert.Equal(t, w, bottomWidths[k], k)
		}

		assert.Equal(t, top.ScrollLeft(), min(top.ScrollLeft(), bottom.ScrollLeft()))
		assert.Equal(t, "athlete-0", top.Rows()[0]["athlete"])
		assert.Equal(t, "athlete-20", bottom.Rows()[0]["athlete"])
	})

	t.Run("unknown field is reported and changes nothing", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)

		beforeTop, beforeBottom := top.Layout(), bottom.Layout()
		beforeState := c.Visibility()

		err := c.SetColumnVisible("nonexistent", false)

		var unknown *visibility.UnknownFieldError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, model.Key("nonexistent"), unknown.Key)

		assert.Equal(t, beforeTop, top.Layout())
		assert.Equal(t, beforeBottom, bottom.Layout())
		assert.True(t, beforeState.Equal(c.Visibility()))
	})

	t.Run("derived columns are not toggleable", func(t *testing.T) {
		c := newController()
		mountBoth(t, c)

		var unknown *visibility.UnknownFieldError
		require.ErrorAs(t, c.SetColumnVisible("total", false), &unknown)
	})

	t.Run("round trip restores the displayed columns", func(t *testing.T) {
		c := newController()
		top, _ := mountBoth(t, c)
		before := top.Layout().Keys()

		require.NoError(t, c.SetColumnVisible("age", false))
		assert.NotEqual(t, before, top.Layout().Keys())

		require.NoError(t, c.SetColumnVisible("age", true))
		assert.Equal(t, before, top.Layout().Keys())
	})

	t.Run("rapid toggles end visible", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)
		before := bottom.Layout()

		require.NoError(t, c.SetColumnVisible("country", false))
		require.NoError(t, c.SetColumnVisible("country", true))

		assert.True(t, top.IsColumnVisible("country"))
		assert.True(t, c.Visibility().Visible("country"))
		assert.Empty(t, c.Visibility().Hidden())
		assert.Equal(t, before.Widths(), bottom.Layout().Widths())
	})

	t.Run("repeating the current value is a no-op", func(t *testing.T) {
		c := newController()
		mountBoth(t, c)

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		require.NoError(t, c.SetColumnVisible("age", true))

		select {
		case <-updates:
			t.Fatal("no-op toggle should not notify")
		default:
		}
	})

	t.Run("primary not mounted", func(t *testing.T) {
		c := newController()
		require.ErrorIs(t, c.SetColumnVisible("age", false), syncctl.ErrNotMounted)
	})

	t.Run("mounting the same primary again keeps the state", func(t *testing.T) {
		c := newController()
		top, _ := mountBoth(t, c)

		require.NoError(t, c.SetColumnVisible("age", false))
		require.NoError(t, c.Mount(model.Primary, top))

		assert.False(t, c.Visibility().Visible("age"))
		assert.False(t, top.IsColumnVisible("age"))

		require.NoError(t, c.SetColumnVisible("age", true))
		assert.True(t, c.Visibility().Visible("age"))
		assert.True(t, top.IsColumnVisible("age"))
	})

	t.Run("a remounted grid is brought in line with the state", func(t *testing.T) {
		c := newController()
		top, _ := mountBoth(t, c)

		require.NoError(t, c.SetColumnVisible("age", false))
		c.Unmount(model.Primary)
		require.NoError(t, c.Mount(model.Primary, top))

		assert.True(t, c.Visibility().Visible("age"))
		assert.True(t, top.IsColumnVisible("age"))

		require.NoError(t, c.SetColumnVisible("age", false))
		assert.False(t, top.IsColumnVisible("age"))
	})

	t.Run("unmounting the primary discards the state", func(t *testing.T) {
		c := newController()
		mountBoth(t, c)

		require.NoError(t, c.SetColumnVisible("age", false))
		c.Unmount(model.Primary)
		assert.Empty(t, c.Visibility().Keys())

		fresh, _ := newGrids(c)
		require.NoError(t, c.Mount(model.Primary, fresh))
		assert.True(t, c.Visibility().Visible("age"))
		assert.True(t, fresh.IsColumnVisible("age"))
	})
}

func TestInitialLoad(t *testing.T) {
	t.Run("assigns windows once loaded and caches", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		loader := &LoaderMock{Rows: makeRows(50), Release: make(chan struct{})}
		c.InitialLoad(context.Background(), loader)
		c.InitialLoad(context.Background(), loader)

		assert.True(t, c.Data().Loading)
		close(loader.Release)

		waitFor(t, updates, func() bool { return c.Data().Loaded })

		assert.Len(t, top.Rows(), 10)
		assert.Len(t, bottom.Rows(), 10)
		assert.Equal(t, "athlete-20", bottom.Rows()[0]["athlete"])
		assert.Equal(t, 50, c.Data().Total)

		c.InitialLoad(context.Background(), loader)
		assert.Equal(t, 1, loader.CallCount)
	})

	t.Run("views mounted later get their window", func(t *testing.T) {
		c := newController()

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		c.InitialLoad(context.Background(), &LoaderMock{Rows: makeRows(50)})
		waitFor(t, updates, func() bool { return c.Data().Loaded })

		top, bottom := mountBoth(t, c)
		assert.Len(t, top.Rows(), 10)
		assert.Equal(t, "athlete-29", bottom.Rows()[9]["athlete"])
	})

	t.Run("failure is recorded", func(t *testing.T) {
		c := newController()
		mountBoth(t, c)

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		boom := errors.New("boom")
		c.InitialLoad(context.Background(), &LoaderMock{Err: boom})

		waitFor(t, updates, func() bool { return c.Data().Err != nil })
		require.ErrorIs(t, c.Data().Err, boom)
		assert.False(t, c.Data().Loaded)
	})

	t.Run("completion after teardown is kept for later views", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)

		loader := &LoaderMock{Rows: makeRows(50), Release: make(chan struct{})}
		c.InitialLoad(context.Background(), loader)

		c.Unmount(model.Primary)
		c.Unmount(model.Secondary)
		close(loader.Release)

		require.Eventually(t, func() bool { return c.Data().Loaded }, time.Second, time.Millisecond)

		assert.Empty(t, top.Rows())
		assert.Empty(t, bottom.Rows())

		freshTop, freshBottom := mountBoth(t, c)
		assert.Len(t, freshTop.Rows(), 10)
		assert.Len(t, freshBottom.Rows(), 10)
		assert.Equal(t, 1, loader.CallCount)
	})

	t.Run("views remounted while loading get the rows", func(t *testing.T) {
		c := newController()
		mountBoth(t, c)

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		loader := &LoaderMock{Rows: makeRows(50), Release: make(chan struct{})}
		c.InitialLoad(context.Background(), loader)

		c.Unmount(model.Primary)
		c.Unmount(model.Secondary)

		top, bottom := mountBoth(t, c)
		c.InitialLoad(context.Background(), loader)
		assert.True(t, c.Data().Loading)

		close(loader.Release)
		waitFor(t, updates, func() bool { return c.Data().Loaded })

		assert.Len(t, top.Rows(), 10)
		assert.Equal(t, "athlete-20", bottom.Rows()[0]["athlete"])
		assert.Equal(t, 1, loader.CallCount)
	})

	t.Run("a view still mounted gets its rows", func(t *testing.T) {
		c := newController()
		top, bottom := mountBoth(t, c)

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)

		loader := &LoaderMock{Rows: makeRows(50), Release: make(chan struct{})}
		c.InitialLoad(context.Background(), loader)

		c.Unmount(model.Secondary)
		close(loader.Release)
		waitFor(t, updates, func() bool { return c.Data().Loaded })

		assert.Len(t, top.Rows(), 10)
		assert.Empty(t, bottom.Rows())
	})
}

func TestClose(t *testing.T) {
	c := newController()
	top, _ := mountBoth(t, c)

	updates := c.Subscribe()
	c.Close()

	for range updates {
	}

	assert.Equal(t, syncctl.PhaseUnmounted, c.Phase())
	assert.Empty(t, top.AlignedGrids())
}
