package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dasdy/gridsync/columns"
	"github.com/dasdy/gridsync/dataset"
	"github.com/dasdy/gridsync/web/routes"
	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/sync/errgroup"
)

const DefaultIdleTimeout = 30 * time.Minute

type Config struct {
	Port    int
	Dev     bool
	Cache   *dataset.Cache
	Columns *columns.Pair
	Grid    routes.GridConfig
	// SessionSecret signs the session cookie. A random key is used when empty,
	// which logs every browser out on restart.
	SessionSecret []byte
	// IdleTimeout releases view pairs nobody touched for that long. Zero keeps them.
	IdleTimeout time.Duration
	// WatchFiles are reloaded into open pages on change in dev mode.
	WatchFiles []string
	Logger     *slog.Logger
}

type Server struct {
	cfg      Config
	views    *routes.Registry
	sessions *sessions.CookieStore
	reload   chan struct{}
	logger   *slog.Logger
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Columns == nil {
		cfg.Columns = columns.Default()
	}

	secret := cfg.SessionSecret
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}

	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(86400 * 30)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		cfg:      cfg,
		views:    routes.NewRegistry(cfg.Columns, cfg.Grid, logger),
		sessions: sessionStore,
		reload:   make(chan struct{}, 1),
		logger:   logger,
	}
}

func (s *Server) Views() *routes.Registry {
	return s.views
}

func disableCacheInDevMode(dev bool, next http.Handler) http.Handler {
	if !dev {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Handler builds the router with every route of the UI.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
		func(next http.Handler) http.Handler { return disableCacheInDevMode(s.cfg.Dev, next) },
	)

	if s.cfg.Dev {
		s.setupReload(r)
	}

	routes.SetupRoutes(r, &routes.ServerHandler{
		Views:    s.views,
		Cache:    s.cfg.Cache,
		Sessions: s.sessions,
		Dev:      s.cfg.Dev,
	})

	return r
}

// setupReload serves the dev-mode page reload stream. Hitting /hotreload, as the
// air post-build hook does, reloads every open page once.
func (s *Server) setupReload(router chi.Router) {
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-s.reload:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		s.triggerReload()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (s *Server) triggerReload() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// Serve runs the server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("Running interface", "addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("Shutting down server")
		s.views.Close()

		return srv.Shutdown(shutdownCtx)
	})

	if s.cfg.IdleTimeout > 0 {
		eg.Go(func() error {
			s.sweepViews(egctx)

			return nil
		})
	}

	if s.cfg.Dev && len(s.cfg.WatchFiles) > 0 {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	return eg.Wait()
}

func (s *Server) sweepViews(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.views.Sweep(s.cfg.IdleTimeout); n > 0 {
				s.logger.Info("Released idle view pairs", "count", n)
			}
		}
	}
}

// watchFiles reloads open pages when one of the watched files changes.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := make([]string, 0, len(s.cfg.WatchFiles))

	for _, f := range s.cfg.WatchFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			s.logger.Error("Failed to resolve watched file", "file", f, "error", err)

			continue
		}

		// Editors replace files on save, so the directory is watched instead.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			s.logger.Error("Failed to watch file", "file", abs, "error", err)

			continue
		}

		watched = append(watched, abs)
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !slices.Contains(watched, event.Name) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("Watched file changed, reloading pages", "file", event.Name)
				s.triggerReload()
			})

		case err := <-watcher.Errors:
			s.logger.Error("Watcher error", "error", err)
		}
	}
}

// StartServer runs the UI until ctx is cancelled.
func StartServer(ctx context.Context, cfg Config) error {
	if err := cfg.Grid.Validate(); err != nil {
		return err
	}

	return NewServer(cfg).Serve(ctx)
}
