package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

const testSecret = "test-secret-key-for-handlers"

type testEnv struct {
	handler  http.Handler
	service  *mockFraudService
	auth     *AuthMiddleware
	registry *prometheus.Registry
}

func setupHandler(t *testing.T, opts ...func(*RouterConfig, *Dependencies)) *testEnv {
	t.Helper()

	svc := &mockFraudService{}
	auth := NewAuthMiddleware(AuthConfig{JWTSecret: []byte(testSecret), Issuer: "fraud-risk-engine"})
	registry := prometheus.NewRegistry()

	cfg := RouterConfig{
		AdminRole:      "admin",
		RequestTimeout: 5 * time.Second,
		RateLimit:      RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	deps := Dependencies{
		Service:  svc,
		Auth:     auth,
		Health:   NewHealthService("test", time.Second),
		Registry: registry,
		Logger:   zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	t.Cleanup(func() { svc.AssertExpectations(t) })
	return &testEnv{
		handler:  NewRouter(cfg, deps),
		service:  svc,
		auth:     auth,
		registry: registry,
	}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.auth.GenerateToken("ops@example.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func validAssessmentBody(tenantID, userID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":         tenantID.String(),
		"user_id":           userID.String(),
		"amount":            "125.50",
		"currency":          "usd",
		"payment_method":    "card",
		"payment_method_id": "tok_4242",
		"ip_address":        "203.0.113.9",
		"device": map[string]interface{}{
			"fingerprint": "fp-123",
			"user_agent":  "Mozilla/5.0",
		},
		"location": map[string]interface{}{
			"latitude":  40.7128,
			"longitude": -74.0060,
			"country":   "us",
		},
	}
}

func TestHandler_Assess(t *testing.T) {
	tenantID, userID := uuid.New(), uuid.New()

	t.Run("scores a valid attempt", func(t *testing.T) {
		env := setupHandler(t)
		assessment := &risk.Assessment{
			ID:            uuid.New(),
			TenantID:      tenantID,
			UserID:        userID,
			TransactionID: risk.PendingTransactionID,
			RiskScore:     12,
			RiskLevel:     risk.LevelLow,
			Violations:    []string{},
			CreatedAt:     time.Now().UTC(),
		}
		env.service.On("Assess", mock.Anything, mock.MatchedBy(func(a *risk.PaymentAttempt) bool {
			return a.TenantID == tenantID &&
				a.UserID == userID &&
				a.Amount.Equal(decimal.RequireFromString("125.50")) &&
				a.Currency == "USD" &&
				a.Device != nil && a.Device.Fingerprint == "fp-123" &&
				a.Location != nil && a.Location.Country == "US"
		})).Return(assessment, nil).Once()

		rec := env.do(t, http.MethodPost, "/api/v1/assessments", validAssessmentBody(tenantID, userID), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got risk.Assessment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, assessment.ID, got.ID)
		assert.Equal(t, 12, got.RiskScore)
		assert.Equal(t, risk.LevelLow, got.RiskLevel)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("fail-safe assessment is still 200", func(t *testing.T) {
		env := setupHandler(t)
		failSafe := &risk.Assessment{
			ID:         uuid.New(),
			RiskScore:  50,
			RiskLevel:  risk.LevelMedium,
			Violations: []string{"fraud_detection_error"},
			Error:      "boom",
		}
		env.service.On("Assess", mock.Anything, mock.Anything).Return(failSafe, nil).Once()

		rec := env.do(t, http.MethodPost, "/api/v1/assessments", validAssessmentBody(tenantID, userID), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "fraud_detection_error")
	})

	tests := []struct {
		name     string
		body     interface{}
		wantCode string
		wantKey  string
	}{
		{
			name: "missing tenant",
			body: func() map[string]interface{} {
				b := validAssessmentBody(tenantID, userID)
				delete(b, "tenant_id")
				return b
			}(),
			wantCode: "VALIDATION_ERROR",
			wantKey:  "AssessmentRequest.TenantID",
		},
		{
			name: "user is not a uuid",
			body: func() map[string]interface{} {
				b := validAssessmentBody(tenantID, userID)
				b["user_id"] = "user-1"
				return b
			}(),
			wantCode: "VALIDATION_ERROR",
			wantKey:  "AssessmentRequest.UserID",
		},
		{
			name: "latitude out of range",
			body: func() map[string]interface{} {
				b := validAssessmentBody(tenantID, userID)
				b["location"] = map[string]interface{}{"latitude": 91.0, "longitude": 0.0}
				return b
			}(),
			wantCode: "VALIDATION_ERROR",
			wantKey:  "AssessmentRequest.Location.Latitude",
		},
		{
			name: "bad ip",
			body: func() map[string]interface{} {
				b := validAssessmentBody(tenantID, userID)
				b["ip_address"] = "not-an-ip"
				return b
			}(),
			wantCode: "VALIDATION_ERROR",
			wantKey:  "AssessmentRequest.IPAddress",
		},
		{
			name:     "malformed json",
			body:     `{"tenant_id": `,
			wantCode: "INVALID_JSON",
		},
		{
			name: "unknown field",
			body: func() map[string]interface{} {
				b := validAssessmentBody(tenantID, userID)
				b["surprise"] = true
				return b
			}(),
			wantCode: "UNKNOWN_FIELD",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupHandler(t)
			rec := env.do(t, http.MethodPost, "/api/v1/assessments", tt.body, "")
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantKey != "" {
				assert.Contains(t, body.Details, tt.wantKey)
			}
			env.service.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
		})
	}

	t.Run("domain validation maps to 400", func(t *testing.T) {
		env := setupHandler(t)
		env.service.On("Assess", mock.Anything, mock.Anything).
			Return(nil, errors.NewValidationError("INVALID_AMOUNT", "amount must be greater than zero")).Once()

		body := validAssessmentBody(tenantID, userID)
		body["amount"] = "0"
		rec := env.do(t, http.MethodPost, "/api/v1/assessments", body, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_AMOUNT", decodeError(t, rec).Code)
	})

	t.Run("persistence failure maps to 500 without cause", func(t *testing.T) {
		env := setupHandler(t)
		cause := assert.AnError
		env.service.On("Assess", mock.Anything, mock.Anything).
			Return(nil, errors.NewInternalError("failed to persist risk assessment").WithCause(cause)).Once()

		rec := env.do(t, http.MethodPost, "/api/v1/assessments", validAssessmentBody(tenantID, userID), "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "INTERNAL_ERROR", body.Code)
		assert.NotContains(t, rec.Body.String(), cause.Error())
		assert.NotEmpty(t, body.RequestID)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		env := setupHandler(t)
		env.service.On("Assess", mock.Anything, mock.Anything).Panic("unexpected").Once()

		rec := env.do(t, http.MethodPost, "/api/v1/assessments", validAssessmentBody(tenantID, userID), "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
	})
}

func TestHandler_AdminAuthorization(t *testing.T) {
	env := setupHandler(t)
	env.service.On("Rules").Return(fraud.DefaultRules()).Once()

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, "not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin role", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, env.token(t, "analyst"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	})

	t.Run("admin role", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, env.token(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code)

		var rules fraud.RuleConfiguration
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
		assert.Equal(t, fraud.DefaultRules().Velocity.MaxTransactionsPerHour, rules.Velocity.MaxTransactionsPerHour)
		assert.True(t, rules.BlacklistForcesCritical)
	})
}

func TestHandler_UpdateRules(t *testing.T) {
	t.Run("applies partial update", func(t *testing.T) {
		env := setupHandler(t)
		updated := fraud.DefaultRules()
		updated.Location.MaxDistanceKm = 250

		env.service.On("UpdateRules", mock.Anything, mock.MatchedBy(func(u fraud.RuleUpdate) bool {
			return u.Location != nil && u.Location.MaxDistanceKm != nil && *u.Location.MaxDistanceKm == 250 &&
				u.Location.NewCountryMultiplier == nil && u.Velocity == nil && u.Weights == nil
		})).Return(updated, nil).Once()

		body := map[string]interface{}{
			"location": map[string]interface{}{"max_distance_km": 250},
		}
		rec := env.do(t, http.MethodPut, "/api/v1/admin/rules", body, env.token(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rules fraud.RuleConfiguration
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
		assert.Equal(t, 250.0, rules.Location.MaxDistanceKm)
	})

	t.Run("rejected weights keep 400", func(t *testing.T) {
		env := setupHandler(t)
		env.service.On("UpdateRules", mock.Anything, mock.Anything).
			Return(fraud.RuleConfiguration{}, errors.NewValidationError("INVALID_WEIGHT_SUM", "weights must sum to 1.0, got 0.9200")).Once()

		body := map[string]interface{}{
			"weights": map[string]float64{"velocity": 0.12},
		}
		rec := env.do(t, http.MethodPut, "/api/v1/admin/rules", body, env.token(t, "admin"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_WEIGHT_SUM", decodeError(t, rec).Code)
	})
}

func TestHandler_ListAssessments(t *testing.T) {
	tenantID, userID := uuid.New(), uuid.New()

	t.Run("passes pagination", func(t *testing.T) {
		env := setupHandler(t)
		items := []*risk.Assessment{{ID: uuid.New(), TenantID: tenantID, UserID: userID, RiskScore: 40, RiskLevel: risk.LevelMedium}}
		env.service.On("History", mock.Anything, tenantID, userID, risk.Page{Limit: 5, Offset: 10}).Return(items, nil).Once()

		path := "/api/v1/admin/tenants/" + tenantID.String() + "/users/" + userID.String() + "/assessments?limit=5&offset=10"
		rec := env.do(t, http.MethodGet, path, nil, env.token(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp AssessmentListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Assessments, 1)
		assert.Equal(t, 5, resp.Limit)
		assert.Equal(t, 10, resp.Offset)
	})

	t.Run("defaults and caps the limit", func(t *testing.T) {
		env := setupHandler(t)
		env.service.On("History", mock.Anything, tenantID, userID, risk.Page{Limit: risk.MaxPageLimit}).Return(nil, nil).Once()

		path := "/api/v1/admin/tenants/" + tenantID.String() + "/users/" + userID.String() + "/assessments?limit=5000"
		rec := env.do(t, http.MethodGet, path, nil, env.token(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"assessments":[]`)
	})

	t.Run("rejects malformed ids and paging", func(t *testing.T) {
		env := setupHandler(t)
		for _, path := range []string{
			"/api/v1/admin/tenants/nope/users/" + userID.String() + "/assessments",
			"/api/v1/admin/tenants/" + tenantID.String() + "/users/nope/assessments",
			"/api/v1/admin/tenants/" + tenantID.String() + "/users/" + userID.String() + "/assessments?limit=-1",
			"/api/v1/admin/tenants/" + tenantID.String() + "/users/" + userID.String() + "/assessments?offset=x",
		} {
			rec := env.do(t, http.MethodGet, path, nil, env.token(t, "admin"))
			assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		}
	})
}

func TestHandler_Statistics(t *testing.T) {
	tenantID := uuid.New()

	t.Run("uses requested window", func(t *testing.T) {
		env := setupHandler(t)
		stats := &risk.Statistics{
			Total:        3,
			ByLevel:      map[risk.Level]int{risk.LevelLow: 2, risk.LevelMedium: 0, risk.LevelHigh: 0, risk.LevelCritical: 1},
			AverageScore: 40,
		}
		before := time.Now()
		env.service.On("Statistics", mock.Anything, tenantID, mock.MatchedBy(func(since time.Time) bool {
			expected := before.Add(-time.Hour)
			return !since.Before(expected.Add(-time.Second)) && !since.After(time.Now().Add(-time.Hour))
		})).Return(stats, nil).Once()

		path := "/api/v1/admin/tenants/" + tenantID.String() + "/statistics?window=1h"
		rec := env.do(t, http.MethodGet, path, nil, env.token(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "1h0m0s", resp["window"])
		assert.Equal(t, float64(3), resp["total"])
	})

	t.Run("rejects bad windows", func(t *testing.T) {
		env := setupHandler(t)
		for _, w := range []string{"yesterday", "-1h", "0s", "10000h"} {
			path := "/api/v1/admin/tenants/" + tenantID.String() + "/statistics?window=" + w
			rec := env.do(t, http.MethodGet, path, nil, env.token(t, "admin"))
			assert.Equal(t, http.StatusBadRequest, rec.Code, w)
			assert.Equal(t, "INVALID_WINDOW", decodeError(t, rec).Code)
		}
	})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	t.Run("readiness fails on critical dependency", func(t *testing.T) {
		env := setupHandler(t, func(_ *RouterConfig, d *Dependencies) {
			d.Health.RegisterChecker(HealthCheckFunc{CheckName: "postgres", Fn: func(context.Context) error {
				return assert.AnError
			}}, true)
			d.Health.RegisterChecker(HealthCheckFunc{CheckName: "redis", Fn: func(context.Context) error {
				return nil
			}}, false)
		})

		rec := env.do(t, http.MethodGet, "/health", nil, "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, HealthStatusFail, resp.Status)
		assert.Equal(t, HealthStatusFail, resp.Checks["postgres"].Status)
		assert.Equal(t, HealthStatusPass, resp.Checks["redis"].Status)

		live := env.do(t, http.MethodGet, "/healthz", nil, "")
		assert.Equal(t, http.StatusOK, live.Code)
	})

	t.Run("optional dependency only warns", func(t *testing.T) {
		env := setupHandler(t, func(_ *RouterConfig, d *Dependencies) {
			d.Health.RegisterChecker(HealthCheckFunc{CheckName: "kafka", Fn: func(context.Context) error {
				return assert.AnError
			}}, false)
		})

		rec := env.do(t, http.MethodGet, "/ready", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"warn"`)
	})

	t.Run("metrics are labelled by route", func(t *testing.T) {
		env := setupHandler(t)
		env.service.On("Rules").Return(fraud.DefaultRules()).Once()
		env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, env.token(t, "admin"))

		rec := env.do(t, http.MethodGet, "/metrics", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), `route="GET /api/v1/admin/rules"`), rec.Body.String())
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})
}

func TestRouter_RateLimiting(t *testing.T) {
	t.Run("per-client token bucket", func(t *testing.T) {
		env := setupHandler(t, func(c *RouterConfig, _ *Dependencies) {
			c.RateLimit = RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
		})
		env.service.On("Rules").Return(fraud.DefaultRules()).Once()
		tok := env.token(t, "admin")

		first := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, tok)
		require.Equal(t, http.StatusOK, first.Code)

		second := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, tok)
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "1", second.Header().Get("Retry-After"))
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, second).Code)
	})

	t.Run("distributed limiter keys on token subject", func(t *testing.T) {
		limiter := &mockRateLimiter{}
		limiter.On("Allow", mock.Anything, "sub:ops@example.com", 2, time.Second).Return(false, nil).Once()
		t.Cleanup(func() { limiter.AssertExpectations(t) })

		env := setupHandler(t, func(c *RouterConfig, d *Dependencies) {
			c.AdminRateLimit = 2
			c.AdminRateWindow = time.Second
			d.RateLimiter = limiter
		})

		rec := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, env.token(t, "admin"))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("distributed limiter outage fails open", func(t *testing.T) {
		limiter := &mockRateLimiter{}
		limiter.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, assert.AnError).Once()

		env := setupHandler(t, func(c *RouterConfig, d *Dependencies) {
			c.AdminRateLimit = 2
			c.AdminRateWindow = time.Second
			d.RateLimiter = limiter
		})
		env.service.On("Rules").Return(fraud.DefaultRules()).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/admin/rules", nil, env.token(t, "admin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
