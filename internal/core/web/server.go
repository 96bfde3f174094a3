package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/auth"
	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/feed"
)

//go:embed templates/*.html static/*.css
var templatesFS embed.FS

// Options tunes the HTTP surface. Zero values fall back to defaults.
type Options struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

type Server struct {
	db        *db.DB
	hub       *feed.Hub
	auth      auth.Authenticator
	logger    *zap.Logger
	templates *template.Template
	staticFS  http.FileSystem
	registry  *prometheus.Registry
	metrics   *metrics
	origins   []string
	ping      time.Duration
	upgrader  websocket.Upgrader
}

func NewServer(database *db.DB, hub *feed.Hub, authn auth.Authenticator, logger *zap.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	staticSub, err := fs.Sub(templatesFS, "static")
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = core.DefaultPingInterval
	}

	ws := &Server{
		db:        database,
		hub:       hub,
		auth:      authn,
		logger:    logger,
		templates: templates,
		staticFS:  http.FS(staticSub),
		registry:  reg,
		metrics:   newMetrics(reg),
		origins:   opts.AllowedOrigins,
		ping:      ping,
	}
	ws.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     ws.checkOrigin,
	}
	return ws, nil
}

// Handler returns the routed HTTP handler.
func (ws *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(ws.requestLogger)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(ws.staticFS)))
	r.Get("/healthz", ws.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(ws.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(ws.optionalUser)
		r.Get("/", ws.handleIndex)
		r.Post("/session", ws.handleSignIn)
		r.Post("/session/delete", ws.handleSignOut)
		r.Get("/bookmarklet", ws.handleBookmarklet)
		r.Get("/bookmarklet/add", ws.handleBookmarkletAdd)
		r.With(ws.requirePageUser).Post("/bookmarks", ws.createBookmark)
		r.With(ws.requirePageUser).Post("/bookmarks/{id}/delete", ws.deleteBookmark)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   ws.origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(ws.requireUser)
		r.Get("/bookmarks", ws.apiListBookmarks)
		r.Post("/bookmarks", ws.apiCreateBookmark)
		r.Delete("/bookmarks/{id}", ws.apiDeleteBookmark)
		r.Get("/feed", ws.handleFeed)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (ws *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("starting web server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	ws.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked feed sockets are not tracked by Shutdown; closing the hub ends them.
	if ws.hub != nil {
		ws.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (ws *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
