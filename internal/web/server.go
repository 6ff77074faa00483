package web

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tguillot/straviz/internal/auth"
	"github.com/tguillot/straviz/internal/db"
	"github.com/tguillot/straviz/internal/strava"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	Strava      *strava.Config
	Database    *db.DB
	TemplatesFS fs.FS
	StaticFS    fs.FS

	// StravaOpts override the API base URL and HTTP client, mainly in tests.
	StravaOpts []strava.Option
}

// Server is the HTTP server for the web application.
type Server struct {
	router   chi.Router
	server   *http.Server
	sessions SessionManager
	handlers *Handlers
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	authenticator := auth.NewAuthenticator(cfg.Strava)

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	sessions := NewDBSessionStore(cfg.Database, authenticator.Config())
	handlers := NewHandlers(authenticator, sessions, templates, cfg.Database, cfg.StravaOpts...)

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		sessions: sessions,
		handlers: handlers,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	// Static files
	fileServer := http.FileServer(http.FS(staticFS))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// Pages
	s.router.Get("/", s.handlers.Home)
	s.router.Get("/dashboard", s.handlers.Dashboard)

	// Auth routes
	s.router.Get("/auth/login", s.handlers.Login)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)

	// JSON API
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.handlers.StartSync)
		r.Delete("/sync", s.handlers.CancelSync)
		r.Get("/sync/progress", s.handlers.SyncProgress)
		r.Get("/activities", s.handlers.Activities)
		r.Get("/stats/totals", s.handlers.Totals)
		r.Get("/stats/series", s.handlers.Series)
		r.Post("/stats/compare", s.handlers.Compare)
		r.Get("/stats/years", s.handlers.Years)
		r.Get("/stats/types", s.handlers.Types)
		r.Get("/insights/efforts", s.handlers.EffortBands)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting server at http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		log.Println("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
