package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dasdy/gridsync/grid"
	"github.com/dasdy/gridsync/model"
	"github.com/dasdy/gridsync/syncctl"
	"github.com/dasdy/gridsync/web/routes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grids(v *routes.View) (*grid.Grid, *grid.Grid) {
	return v.Controller.Grid(model.Primary), v.Controller.Grid(model.Secondary)
}

func TestPageHandle(t *testing.T) {
	f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())

	rec := f.do(http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=UTF-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Result().Cookies(), "session cookie")

	body := rec.Body.String()
	for _, want := range []string{"<!doctype html>", `id="gridsync-stream"`, `id="toggle-gold"`, `id="grid-primary"`, `id="grid-secondary"`} {
		assert.Contains(t, body, want)
	}

	t.Run("same session keeps its view pair", func(t *testing.T) {
		cookies, v := f.openPage(t)
		require.Equal(t, syncctl.PhaseSynced, v.Controller.Phase())

		before := f.handler.Views.Len()

		rec := f.do(http.MethodGet, "/", "", cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), v.ID)
		assert.Equal(t, before, f.handler.Views.Len())
	})

	t.Run("rows arrive once and are windowed per view", func(t *testing.T) {
		cookies, v := f.openLoadedPage(t)
		top, bottom := grids(v)

		assert.Equal(t, "athlete-0", top.Rows()[0]["athlete"])
		assert.Equal(t, "athlete-20", bottom.Rows()[0]["athlete"])

		rec := f.do(http.MethodGet, "/", "", cookies)
		assert.Contains(t, rec.Body.String(), "athlete-9")
		assert.Contains(t, rec.Body.String(), "athlete-29")
		assert.NotContains(t, rec.Body.String(), "athlete-10<")

		assert.Equal(t, int32(1), f.source.CallCount.Load())
	})
}

func TestToggleColumnHandle(t *testing.T) {
	t.Run("hiding gold resizes both views but only hides it on top", func(t *testing.T) {
		f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
		cookies, v := f.openLoadedPage(t)
		top, bottom := grids(v)

		rec := f.do(http.MethodPost, "/views/groups/medals?open=true", "", cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, top.IsGroupOpened("medals"))

		rec = f.do(http.MethodPost, "/views/columns/gold?visible=false", "", cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "datastar-patch-elements")
		assert.Contains(t, rec.Body.String(), "gridsync-app")

		assert.False(t, top.IsColumnVisible("gold"))
		assert.True(t, bottom.IsColumnVisible("gold"))
		assert.True(t, bottom.IsGroupOpened("medals"))

		bottomWidths := bottom.Layout().Widths()
		for k, w := range top.Layout().Widths() {
			assert.Equal(t, w, bottomWidths[k], k)
		}

		assert.Len(t, top.Rows(), 10)
		assert.Len(t, bottom.Rows(), 10)
	})

	t.Run("signals in the body", func(t *testing.T) {
		f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
		cookies, v := f.openPage(t)

		rec := f.do(http.MethodPost, "/views/columns/age", `{"visible":false,"scrollLeft":0}`, cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.False(t, v.Controller.Visibility().Visible("age"))
	})

	t.Run("unknown field shows a banner and changes nothing", func(t *testing.T) {
		f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
		cookies, v := f.openPage(t)
		top, bottom := grids(v)
		beforeTop, beforeBottom := top.Layout(), bottom.Layout()

		rec := f.do(http.MethodPost, "/views/columns/nonexistent?visible=false", "", cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Contains(t, rec.Body.String(), "unknown field")
		assert.Contains(t, rec.Body.String(), "nonexistent")
		assert.Equal(t, beforeTop, top.Layout())
		assert.Equal(t, beforeBottom, bottom.Layout())

		// The next successful action clears the banner.
		rec = f.do(http.MethodPost, "/views/columns/age?visible=false", "", cookies)
		assert.NotContains(t, rec.Body.String(), "unknown field")
	})

	t.Run("bad requests", func(t *testing.T) {
		f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
		cookies, _ := f.openPage(t)

		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/views/columns/age", "", cookies).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/views/columns/age?visible=maybe", "", cookies).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/views/columns/age", "{not json", cookies).Code)
	})

	t.Run("no session", func(t *testing.T) {
		f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())

		rec := f.do(http.MethodPost, "/views/columns/age?visible=false", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestScrollHandle(t *testing.T) {
	cfg := routes.DefaultGridConfig()
	cfg.ViewportWidth = 600
	cfg.MinWidth = 200

	f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, cfg)
	cookies, v := f.openPage(t)
	top, bottom := grids(v)

	rec := f.do(http.MethodPost, "/views/scroll/primary", `{"scrollLeft":150}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 150, top.ScrollLeft())
	assert.Equal(t, 150, bottom.ScrollLeft())

	rec = f.do(http.MethodPost, "/views/scroll/secondary?left=40", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, top.ScrollLeft())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/views/scroll/sideways?left=1", "", cookies).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/views/scroll/primary", "", cookies).Code)
}

func TestRetryHandle(t *testing.T) {
	f := setupFixture(t, &SourceMock{Rows: makeRows(50), Errs: []error{errors.New("upstream down")}}, routes.DefaultGridConfig())
	cookies, v := f.openPage(t)

	require.Eventually(t, func() bool { return v.Controller.Data().Err != nil }, time.Second, time.Millisecond)

	rec := f.do(http.MethodGet, "/", "", cookies)
	assert.Contains(t, rec.Body.String(), "Could not load rows")
	assert.Contains(t, rec.Body.String(), `id="retry"`)

	rec = f.do(http.MethodPost, "/views/retry", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool { return v.Controller.Data().Loaded }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), f.source.CallCount.Load())

	top, _ := grids(v)
	assert.Len(t, top.Rows(), 10)
}

func TestUnmountHandle(t *testing.T) {
	f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
	cookies, v := f.openLoadedPage(t)
	oldTop, _ := grids(v)

	rec := f.do(http.MethodPost, "/views/unmount", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not mounted")

	assert.Equal(t, syncctl.PhaseUnmounted, v.Controller.Phase())
	assert.True(t, oldTop.Destroyed())
	assert.False(t, v.Mounted())

	rec = f.do(http.MethodPost, "/views/columns/age?visible=false", "", cookies)
	assert.Contains(t, rec.Body.String(), "not mounted")

	// Loading the page again mounts fresh grids on the same controller.
	rec = f.do(http.MethodGet, "/", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, syncctl.PhaseSynced, v.Controller.Phase())

	top, bottom := grids(v)
	assert.NotSame(t, oldTop, top)
	assert.True(t, top.IsAlignedWith(bottom))
	assert.True(t, v.Controller.Visibility().Visible("age"))
	assert.Len(t, bottom.Rows(), 10)
}

func TestUpdatesHandle(t *testing.T) {
	f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
	cookies, v := f.openLoadedPage(t)

	req := httptest.NewRequest(http.MethodGet, "/views/updates", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()

	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})

	go func() {
		f.router.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, v.Controller.SetColumnVisible("country", false))

	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 1)
	assert.Contains(t, body, "gridsync-app")

	t.Run("no session", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/views/updates", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHealthHandle(t *testing.T) {
	f := setupFixture(t, &SourceMock{Rows: makeRows(50)}, routes.DefaultGridConfig())
	f.openLoadedPage(t)

	rec := f.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "loaded", got["dataset"])
	assert.InDelta(t, 1, got["views"], 0)
}
