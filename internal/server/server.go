package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
	"github.com/OrlandoBitencourt/bandeira/internal/domain"
	"github.com/OrlandoBitencourt/bandeira/internal/service"
	"github.com/OrlandoBitencourt/bandeira/internal/storage"
	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

// FlagService is what the flag routes need from the service layer
type FlagService interface {
	Create(ctx context.Context, req service.CreateRequest) (*domain.FeatureFlag, error)
	Get(ctx context.Context, name string) (*domain.FeatureFlag, error)
	List(ctx context.Context) ([]domain.FeatureFlag, error)
	Update(ctx context.Context, name string, update domain.FlagUpdate) (*domain.FeatureFlag, error)
	Delete(ctx context.Context, name string) error
	Evaluate(ctx context.Context, name, userID string) (*service.Evaluation, error)
}

// CacheAdmin is what the admin and webhook routes need from the flag store
type CacheAdmin interface {
	Invalidate(ctx context.Context, name string) error
	InvalidateAll(ctx context.Context) error
	CacheStats() (cache.Stats, bool)
	StorageMetrics() (storage.Metrics, bool)
}

// MetricsSource exposes collected metric values
type MetricsSource interface {
	Snapshot(ctx context.Context) (map[string]float64, error)
}

// Server is the HTTP transport for flags, admin and webhook routes
type Server struct {
	flags  FlagService
	admin  CacheAdmin
	router chi.Router

	logger    *zap.Logger
	telemetry telemetry.Provider
	metrics   MetricsSource
	secret    string
	name      string
	version   string
	started   time.Time
	now       func() time.Time
}

// New builds the router. admin may be nil, in which case admin and webhook
// routes are not mounted.
func New(flags FlagService, admin CacheAdmin, opts ...Option) *Server {
	s := &Server{
		flags:     flags,
		admin:     admin,
		logger:    zap.NewNop(),
		telemetry: telemetry.NewNoOp(),
		name:      "bandeira",
		version:   "dev",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(Trace(s.telemetry))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)

	r.Route("/flags", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdate)
			r.Patch("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Get("/evaluate", s.handleEvaluate)
		})
	})

	if s.admin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Post("/invalidate", s.handleInvalidate)
			r.Post("/invalidate-all", s.handleInvalidateAll)
			if s.metrics != nil {
				r.Get("/metrics", s.handleMetrics)
			}
		})
		r.Post("/webhook", s.handleWebhook)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
