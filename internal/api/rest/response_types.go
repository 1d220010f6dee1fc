package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// AssessmentListResponse is a page of a user's assessments
type AssessmentListResponse struct {
	TenantID    uuid.UUID          `json:"tenant_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Assessments []*risk.Assessment `json:"assessments"`
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
}

// StatisticsResponse wraps tenant statistics with the requested window
type StatisticsResponse struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Window   string    `json:"window"`
	*risk.Statistics
}

// HealthResponse reports the overall status and each dependency
type HealthResponse struct {
	Status    HealthStatus                 `json:"status"`
	Version   string                       `json:"version"`
	Uptime    string                       `json:"uptime"`
	Checks    map[string]HealthCheckResult `json:"checks,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a response. Server errors are logged with their cause.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code, message, details := HandleError(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeErrorCode(w, r, status, code, message, details)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}
