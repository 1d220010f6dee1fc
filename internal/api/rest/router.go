package rest

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/cache"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

// RouterConfig holds API configuration
type RouterConfig struct {
	AdminRole      string
	RequestTimeout time.Duration
	RateLimit      RateLimitConfig

	// AdminRateLimit bounds admin calls per token subject across replicas.
	// Zero disables it.
	AdminRateLimit  int
	AdminRateWindow time.Duration
}

// Dependencies are the collaborators the router wires into handlers
type Dependencies struct {
	Service     fraud.Service
	Auth        *AuthMiddleware
	Health      *HealthService
	RateLimiter cache.RateLimiter
	Registry    *prometheus.Registry
	Logger      *zap.Logger
}

// NewRouter builds the HTTP handler. Health and metrics endpoints skip the
// rate limiter and authentication.
func NewRouter(cfg RouterConfig, deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	handler := NewHandler(deps.Service, logger)
	metrics := NewHTTPMetrics(registry)
	mux := http.NewServeMux()

	limit := RateLimitMiddleware(cfg.RateLimit)
	public := NewMiddlewareChain(
		limit,
		TimeoutMiddleware(cfg.RequestTimeout),
	)
	admin := NewMiddlewareChain(
		limit,
		deps.Auth.RequireRole(cfg.AdminRole),
		DistributedRateLimitMiddleware(deps.RateLimiter, cfg.AdminRateLimit, cfg.AdminRateWindow, logger),
		TimeoutMiddleware(cfg.RequestTimeout),
	)

	route := func(pattern string, chain *MiddlewareChain, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern)(chain.Then(h)))
	}

	route("POST /api/v1/assessments", public, handler.handleAssess)

	route("GET /api/v1/admin/rules", admin, handler.handleGetRules)
	route("PUT /api/v1/admin/rules", admin, handler.handleUpdateRules)
	route("GET /api/v1/admin/tenants/{tenantID}/users/{userID}/assessments", admin, handler.handleListAssessments)
	route("GET /api/v1/admin/tenants/{tenantID}/statistics", admin, handler.handleStatistics)

	if deps.Health != nil {
		mux.HandleFunc("GET /healthz", deps.Health.LivenessHandler())
		mux.HandleFunc("GET /health", deps.Health.ReadinessHandler())
		mux.HandleFunc("GET /ready", deps.Health.ReadinessHandler())
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return NewMiddlewareChain(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		TracingMiddleware(otel.Tracer("api.rest"), otel.GetTextMapPropagator()),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	).Then(mux)
}
