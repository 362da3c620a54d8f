package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/grid"
	"github.com/dasdy/gridsync/logging"
	"github.com/dasdy/gridsync/model"
	cs "github.com/dasdy/gridsync/web/components"
	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"
)

// ViewSignals are the Datastar signals the page sends along with its actions.
// Query parameters of the same name take precedence.
type ViewSignals struct {
	Visible    *bool `json:"visible,omitempty"`
	Open       *bool `json:"open,omitempty"`
	ScrollLeft *int  `json:"scrollLeft,omitempty"`
}

func readSignals(r *http.Request) (ViewSignals, error) {
	var sig ViewSignals

	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		if err := datastar.ReadSignals(r, &sig); err != nil {
			return sig, fmt.Errorf("could not read signals: %w", err)
		}
	}

	q := r.URL.Query()

	for name, dst := range map[string]**bool{"visible": &sig.Visible, "open": &sig.Open} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}

		b, err := strconv.ParseBool(raw)
		if err != nil {
			return sig, fmt.Errorf("bad %s parameter %q: %w", name, raw, err)
		}

		*dst = &b
	}

	if raw := q.Get("left"); raw != "" {
		px, err := strconv.Atoi(raw)
		if err != nil {
			return sig, fmt.Errorf("bad left parameter %q: %w", raw, err)
		}

		sig.ScrollLeft = &px
	}

	return sig, nil
}

// currentView finds the view pair of the session, opening a new one when create
// is set.
func (s *ServerHandler) currentView(w http.ResponseWriter, r *http.Request, create bool) (*View, error) {
	session, err := s.Sessions.Get(r, sessionName)
	if err != nil {
		slog.WarnContext(r.Context(), "Discarding unreadable session", "error", err)
	}

	if id, ok := session.Values[sessionViewID].(string); ok {
		if v, ok := s.Views.Get(id); ok {
			return v, nil
		}
	}

	if !create {
		return nil, ErrNoView
	}

	v, err := s.Views.Open()
	if err != nil {
		return nil, err
	}

	session.Values[sessionViewID] = v.ID
	if err := session.Save(r, w); err != nil {
		return nil, fmt.Errorf("could not save session: %w", err)
	}

	return v, nil
}

// BuildRenderContext snapshots the view pair for drawing.
func (s *ServerHandler) BuildRenderContext(v *View) *cs.RenderContext {
	c := v.Controller
	data := c.Data()

	rc := &cs.RenderContext{
		Title:    "Aligned grids",
		Dev:      s.Dev,
		ViewID:   v.ID,
		Phase:    c.Phase().String(),
		Loading:  data.Loading,
		Controls: cs.NewControls(v.Fields(), c.Visibility()),
	}

	c.Do(func(primary, secondary *grid.Grid) {
		if primary != nil {
			rc.Primary = cs.NewGridView(model.Primary, primary.ID(), primary.Layout(), primary.Rows())
		}

		if secondary != nil {
			rc.Secondary = cs.NewGridView(model.Secondary, secondary.ID(), secondary.Layout(), secondary.Rows())
		}

		rc.Mounted = primary != nil && secondary != nil
	})

	if data.Err != nil {
		rc.Banners = append(rc.Banners, cs.Banner{
			Kind:    cs.BannerError,
			Message: "Could not load rows: " + data.Err.Error(),
			Retry:   true,
		})
	}

	if err := v.LastError(); err != nil {
		rc.Banners = append(rc.Banners, cs.Banner{Kind: cs.BannerError, Message: err.Error()})
	}

	return rc
}

// PageHandle renders the whole page, mounting the session's views if needed.
func (s *ServerHandler) PageHandle(w http.ResponseWriter, r *http.Request) {
	v, err := s.currentView(w, r, true)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to open view pair", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	ctx := logging.ViewCtx(r.Context(), v.ID)
	slog.InfoContext(ctx, "Handling page request")

	if err := v.Mount(); err != nil {
		slog.WarnContext(ctx, "Views mounted without peer link", "error", err)
		v.Record(err)
	}

	// A failed load stays failed until the user retries. Otherwise the load
	// outlives this request and the stream delivers the rows.
	if v.Controller.Data().Err == nil {
		v.Controller.InitialLoad(context.WithoutCancel(ctx), s.Cache)
	}

	if err := SafeRenderTemplate(ctx, cs.Page(s.BuildRenderContext(v)), w); err != nil {
		slog.ErrorContext(ctx, "Failed to render page", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// UpdatesHandle is the long-lived SSE endpoint. It patches the app whenever the
// session's view pair changes.
func (s *ServerHandler) UpdatesHandle(w http.ResponseWriter, r *http.Request) {
	v, err := s.currentView(w, r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)

		return
	}

	ctx := logging.ViewCtx(r.Context(), v.ID)
	sse := datastar.NewSSE(w, r)

	updates := v.Controller.Subscribe()
	defer v.Controller.Unsubscribe(updates)

	slog.DebugContext(ctx, "Update stream opened")

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "Update stream closed")

			return
		case _, ok := <-updates:
			if !ok {
				return
			}

			if err := sse.PatchElementTempl(cs.App(s.BuildRenderContext(v))); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// action runs fn against the session's view pair and answers with a fresh app patch.
func (s *ServerHandler) action(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, v *View, sig ViewSignals) error) {
	v, err := s.currentView(w, r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)

		return
	}

	ctx := logging.ViewCtx(r.Context(), v.ID)

	// Signals must be read before the SSE generator takes over the response.
	sig, err := readSignals(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	err = fn(ctx, v, sig)

	var badRequest *requestError
	if errors.As(err, &badRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	if err != nil {
		slog.WarnContext(ctx, "View action failed", "action", name, "error", err)
	}

	v.Record(err)

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(cs.App(s.BuildRenderContext(v))); err != nil {
		slog.ErrorContext(ctx, "Failed to patch app", "action", name, "error", err)
	}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

// ToggleColumnHandle shows or hides a field on the primary view.
func (s *ServerHandler) ToggleColumnHandle(w http.ResponseWriter, r *http.Request) {
	key := model.Key(chi.URLParam(r, "key"))

	s.action(w, r, "toggle", func(ctx context.Context, v *View, sig ViewSignals) error {
		if sig.Visible == nil {
			return &requestError{msg: "missing visible parameter"}
		}

		slog.DebugContext(ctx, "Toggling column", "column", key, "visible", *sig.Visible)

		return v.Controller.SetColumnVisible(key, *sig.Visible)
	})
}

// GroupHandle opens or closes a column group on the primary view.
func (s *ServerHandler) GroupHandle(w http.ResponseWriter, r *http.Request) {
	group := model.Key(chi.URLParam(r, "id"))

	s.action(w, r, "group", func(_ context.Context, v *View, sig ViewSignals) error {
		if sig.Open == nil {
			return &requestError{msg: "missing open parameter"}
		}

		return v.Controller.SetColumnGroupOpened(group, *sig.Open)
	})
}

// ScrollHandle scrolls one view; its peer follows.
func (s *ServerHandler) ScrollHandle(w http.ResponseWriter, r *http.Request) {
	role, roleErr := model.ParseRole(chi.URLParam(r, "role"))

	s.action(w, r, "scroll", func(_ context.Context, v *View, sig ViewSignals) error {
		if roleErr != nil {
			return &requestError{msg: roleErr.Error()}
		}

		if sig.ScrollLeft == nil {
			return &requestError{msg: "missing scrollLeft signal"}
		}

		return v.Controller.SetScrollLeft(role, *sig.ScrollLeft)
	})
}

// RetryHandle starts the dataset fetch again after a failure.
func (s *ServerHandler) RetryHandle(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, "retry", func(ctx context.Context, v *View, _ ViewSignals) error {
		slog.InfoContext(ctx, "Retrying initial load", "cacheStatus", s.Cache.State().Status)
		v.Controller.InitialLoad(context.WithoutCancel(ctx), retryLoader{cache: s.Cache})

		return nil
	})
}

// UnmountHandle tears the session's views down.
func (s *ServerHandler) UnmountHandle(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, "unmount", func(ctx context.Context, v *View, _ ViewSignals) error {
		slog.InfoContext(ctx, "Unmounting views")
		v.Unmount()

		return nil
	})
}

type health struct {
	Status  string `json:"status"`
	Dataset string `json:"dataset"`
	Views   int    `json:"views"`
}

func (s *ServerHandler) HealthHandle(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Dataset: s.Cache.State().Status.String(),
		Views:   s.Views.Len(),
	})
}

// retryLoader clears a failed cache before loading. When another caller already
// restarted the fetch it just waits for that one.
type retryLoader struct {
	cache *dataset.Cache
}

func (l retryLoader) Load(ctx context.Context) ([]model.Row, error) {
	rows, err := l.cache.Retry(ctx)
	if errors.Is(err, dataset.ErrNotFailed) {
		return l.cache.Load(ctx)
	}

	return rows, err
}
