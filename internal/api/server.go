// Package api serves the shell's local HTTP transport: command invocation,
// window management and per-window event streams for the web view.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/storage"
	"github.com/mattjoyce/tokenforge/internal/window"
)

// WindowHeader names the invoking window when the body does not.
const WindowHeader = "X-Tokenforge-Window"

// Dispatcher routes invocations to registered commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv command.Invocation) (any, error)
	Commands() []command.Descriptor
}

// Journal records dispatches for GET /invocations.
type Journal interface {
	Record(ctx context.Context, e storage.Entry) (storage.Entry, error)
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// AuthToken is the bearer token for the protected routes. Empty leaves
	// them open for local development.
	AuthToken string
	// FrontendDir is served at / when set.
	FrontendDir string
	// MainWindow receives invocations that do not name a window.
	MainWindow        string
	ConfigFingerprint string
	Version           string
}

// Server represents the HTTP API server
type Server struct {
	config     Config
	dispatcher Dispatcher
	windows    *window.Manager
	journal    Journal
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance. journal may be nil.
func New(config Config, dispatcher Dispatcher, windows *window.Manager, journal Journal, logger *slog.Logger) *Server {
	if config.MainWindow == "" {
		config.MainWindow = "main"
	}
	return &Server{
		config:     config,
		dispatcher: dispatcher,
		windows:    windows,
		journal:    journal,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:     s.setupRoutes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: event streams stay open for the life of a window.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", ln.Addr().String())

	// Run server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/commands", s.handleCommands)
		r.Get("/openapi.json", s.handleOpenAPI)
		r.Post("/invoke/{command}", s.handleInvoke)
		r.Get("/windows", s.handleListWindows)
		r.Post("/windows", s.handleOpenWindow)
		r.Delete("/windows/{label}", s.handleCloseWindow)
		r.Get("/windows/{label}/events", s.handleEvents)
		r.Get("/invocations", s.handleInvocations)
	})

	if s.config.FrontendDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.FrontendDir)))
	}

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
