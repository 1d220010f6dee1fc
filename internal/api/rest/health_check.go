package rest

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HealthStatus represents the health status
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusWarn HealthStatus = "warn"
	HealthStatusFail HealthStatus = "fail"
)

// HealthChecker checks the health of a dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       HealthStatus  `json:"status"`
	Error        string        `json:"error,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Critical     bool          `json:"critical"`
}

// HealthCheckFunc adapts a function to HealthChecker
type HealthCheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (f HealthCheckFunc) Name() string                    { return f.CheckName }
func (f HealthCheckFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

type registeredChecker struct {
	checker  HealthChecker
	critical bool
}

// HealthService runs registered dependency checks in parallel. A failing
// critical check fails readiness; a failing optional one only warns.
type HealthService struct {
	mu        sync.RWMutex
	checkers  []registeredChecker
	timeout   time.Duration
	version   string
	tracer    trace.Tracer
	startTime time.Time
}

// NewHealthService creates a new health service
func NewHealthService(version string, timeout time.Duration) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthService{
		timeout:   timeout,
		version:   version,
		tracer:    otel.Tracer("api.rest.health"),
		startTime: time.Now(),
	}
}

// RegisterChecker registers a health checker
func (h *HealthService) RegisterChecker(checker HealthChecker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, registeredChecker{checker: checker, critical: critical})
}

// Check runs all checks and aggregates the status
func (h *HealthService) Check(ctx context.Context) HealthResponse {
	ctx, span := h.tracer.Start(ctx, "health.check")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checkers := make([]registeredChecker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	results := make(map[string]HealthCheckResult, len(checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, rc := range checkers {
		wg.Add(1)
		go func(rc registeredChecker) {
			defer wg.Done()
			start := time.Now()
			err := rc.checker.Check(ctx)
			res := HealthCheckResult{
				Status:       HealthStatusPass,
				ResponseTime: time.Since(start),
				Critical:     rc.critical,
			}
			if err != nil {
				res.Error = err.Error()
				res.Status = HealthStatusWarn
				if rc.critical {
					res.Status = HealthStatusFail
				}
			}
			mu.Lock()
			results[rc.checker.Name()] = res
			mu.Unlock()
		}(rc)
	}
	wg.Wait()

	status := HealthStatusPass
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch results[name].Status {
		case HealthStatusFail:
			status = HealthStatusFail
		case HealthStatusWarn:
			if status == HealthStatusPass {
				status = HealthStatusWarn
			}
		}
	}

	span.SetAttributes(attribute.String("health.status", string(status)))

	return HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

// LivenessHandler reports that the process is serving
func (h *HealthService) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    HealthStatusPass,
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler returns 503 when a critical dependency fails
func (h *HealthService) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == HealthStatusFail {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
