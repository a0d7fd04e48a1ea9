// Package diagnostics serves a read-only HTTP view of the running registry:
// health, registered keys and Prometheus metrics.
package diagnostics

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bootstrap-core/internal/di"
)

// RegistryView is the part of a registry the diagnostics endpoints read.
type RegistryView interface {
	ID() string
	Len() int
	CreatedAt() time.Time
	Entries() []di.EntryInfo
}

var _ RegistryView = (*di.Registry)(nil)

// Router creates and configures the diagnostics router.
type Router struct {
	registry RegistryView
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	origins  []string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithGatherer exposes the gatherer's metrics on /metrics. Without it the
// endpoint is not mounted.
func WithGatherer(g prometheus.Gatherer) RouterOption {
	return func(rt *Router) { rt.gatherer = g }
}

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins ...string) RouterOption {
	return func(rt *Router) { rt.origins = origins }
}

// NewRouter creates a router over registry.
func NewRouter(registry RegistryView, logger *zap.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Router{
		registry: registry,
		logger:   logger,
		origins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/registry", rt.listEntries)
	if rt.gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	return router
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	RegistryID string    `json:"registry_id"`
	Entries    int       `json:"entries"`
	BuiltAt    time.Time `json:"built_at"`
}

// RegistryResponse is the body of GET /registry.
type RegistryResponse struct {
	RegistryID string         `json:"registry_id"`
	Entries    []di.EntryInfo `json:"entries"`
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	rt.writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		RegistryID: rt.registry.ID(),
		Entries:    rt.registry.Len(),
		BuiltAt:    rt.registry.CreatedAt(),
	})
}

func (rt *Router) listEntries(w http.ResponseWriter, r *http.Request) {
	rt.writeJSON(w, http.StatusOK, RegistryResponse{
		RegistryID: rt.registry.ID(),
		Entries:    rt.registry.Entries(),
	})
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := sonic.Marshal(data)
	if err != nil {
		rt.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("Request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
