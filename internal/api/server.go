// Package api exposes the collection queue to administrators: request
// creation, list and history reads, and bulk lifecycle actions.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	appcollection "github.com/forensiq/collectq/internal/app/collection"
	"github.com/forensiq/collectq/internal/domain/collector"
	"github.com/forensiq/collectq/pkg/common/logger"
	"github.com/forensiq/collectq/pkg/common/otel"
)

// Pinger reports whether the backing store is reachable. pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config contains all the mandatory systems required by the server.
type Config struct {
	Addr     string
	Service  *appcollection.RequestService
	Registry *collector.Registry
	DB       Pinger
}

// Server is the console HTTP API.
type Server struct {
	addr     string
	logger   *logger.Logger
	router   *chi.Mux
	svc      *appcollection.RequestService
	registry *collector.Registry
	db       Pinger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewServer builds the router with its full middleware chain and all routes
// bound.
func NewServer(cfg Config, log *logger.Logger, tracer trace.Tracer) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tracer))
	r.Use(loggerMiddleware(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     cfg.Addr,
		logger:   log,
		router:   r,
		svc:      cfg.Service,
		registry: cfg.Registry,
		db:       cfg.DB,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   tracer,
	}

	s.routes()
	return s
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func loggerMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				log.Info(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)

		r.Route("/collections", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Post("/actions", s.handleActions)
			r.Get("/{id}", s.handleGet)
			r.Get("/{id}/history", s.handleHistory)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Error(r.Context(), "readiness probe failed", "err", err)
			respondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     logger.NewStdLogger(s.logger, logger.LevelError),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting server", "addr", server.Addr, "service", "console-api")

	return server.ListenAndServe()
}
