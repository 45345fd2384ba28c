package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/server/handler"
	"github.com/alanyoungcy/tickerbot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Strategies *handler.StrategyHandler
	Books      *handler.BookHandler
	Executions *handler.ExecutionHandler
	Audit      *handler.AuditHandler // optional
}

// Server is the read-only HTTP status API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil,
// which disables per-client rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter middleware.Allower, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/strategies", handlers.Strategies.ListStrategies)
	mux.HandleFunc("GET /api/strategies/{name}", handlers.Strategies.GetStrategy)
	mux.HandleFunc("GET /api/strategies/{name}/journal", handlers.Strategies.GetJournal)

	mux.HandleFunc("GET /api/books/{exchange}/{ticker}", handlers.Books.GetBook)

	mux.HandleFunc("GET /api/executions", handlers.Executions.ListExecutions)
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}

	// Innermost first: auth, rate limit, logging, CORS.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Run starts the server and shuts it down when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
