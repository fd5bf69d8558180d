// Package server exposes the parse engine, the URL command and screenshot
// batches over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/batch"
	"github.com/ArionMiles/spendscan/pkg/command"
)

// Defaults for request handling.
const (
	DefaultExpenseLimit = 50
	maxUploadBytes      = 32 << 20
	shutdownTimeout     = 10 * time.Second
)

// Config holds HTTP settings.
type Config struct {
	Addr string
	// RateLimit is requests per second per client; <= 0 disables limiting.
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Parser    api.Parser
	Directory api.Directory
	Store     api.Store
	// Batch is optional; without it the batch endpoint answers 503.
	Batch *batch.Processor
	Clock func() time.Time
}

// Lister is implemented by stores that can list what they hold.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]api.Expense, error)
}

// Server is the HTTP surface.
type Server struct {
	cfg      Config
	deps     Deps
	resolver *command.Resolver
	logger   *slog.Logger
	router   *gin.Engine
}

// New builds a Server and its routes.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Parser == nil {
		return nil, errors.New("server: parser is required")
	}
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		resolver: command.NewResolver(deps.Parser, deps.Directory, deps.Clock),
		logger:   logger.With("component", "http"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes

	router.Use(RecoveryMiddleware(s.logger))
	router.Use(LoggerMiddleware(s.logger))
	router.Use(CORSMiddleware(s.cfg.AllowedOrigins))
	router.Use(rateLimitMiddleware(newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst)))

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/parse", s.parse)
		v1.GET("/directory", s.directory)

		expenses := v1.Group("/expenses")
		{
			expenses.GET("", s.listExpenses)
			expenses.GET("/add", s.addExpense)
		}

		v1.POST("/batch", s.batch)
	}

	return router
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
