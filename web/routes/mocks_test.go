package routes_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dasdy/gridsync/columns"
	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/model"
	"github.com/dasdy/gridsync/web/routes"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
)

// SourceMock is a simple manual mock implementation of the dataset.Source interface.
// Errs are returned by the first calls, in order, before Rows is served.
type SourceMock struct {
	Rows      []model.Row
	Errs      []error
	CallCount atomic.Int32
}

func (m *SourceMock) Fetch(_ context.Context) ([]model.Row, error) {
	n := int(m.CallCount.Add(1))
	if n <= len(m.Errs) {
		return nil, m.Errs[n-1]
	}

	return m.Rows, nil
}

func makeRows(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{
			"athlete": fmt.Sprintf("athlete-%d", i),
			"age":     float64(20 + i),
			"gold":    1.0,
			"silver":  2.0,
			"bronze":  3.0,
		}
	}

	return rows
}

type fixture struct {
	handler *routes.ServerHandler
	router  http.Handler
	source  *SourceMock
}

func setupFixture(t *testing.T, source *SourceMock, cfg routes.GridConfig) *fixture {
	t.Helper()

	views := routes.NewRegistry(columns.Default(), cfg, nil)
	t.Cleanup(views.Close)

	handler := &routes.ServerHandler{
		Views:    views,
		Cache:    dataset.NewCache(source, dataset.DefaultLimit),
		Sessions: sessions.NewCookieStore([]byte("test-session-secret")),
	}

	r := chi.NewRouter()
	routes.SetupRoutes(r, handler)

	return &fixture{handler: handler, router: r, source: source}
}

func (f *fixture) do(method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	return rec
}

var viewIDPattern = regexp.MustCompile(`data-view="([^"]+)"`)

// openPage loads the page and returns the session cookies and the view pair
// created for them.
func (f *fixture) openPage(t *testing.T) ([]*http.Cookie, *routes.View) {
	t.Helper()

	rec := f.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m := viewIDPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2)

	v, ok := f.handler.Views.Get(m[1])
	require.True(t, ok)

	return rec.Result().Cookies(), v
}

// openLoadedPage is openPage followed by waiting for the rows.
func (f *fixture) openLoadedPage(t *testing.T) ([]*http.Cookie, *routes.View) {
	t.Helper()

	cookies, v := f.openPage(t)
	require.Eventually(t, func() bool { return v.Controller.Data().Loaded }, time.Second, time.Millisecond)

	return cookies, v
}
