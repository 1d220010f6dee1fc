package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

const (
	maxBodyBytes            = 1 << 20
	defaultStatisticsWindow = 24 * time.Hour
	maxStatisticsWindow     = 90 * 24 * time.Hour
)

// Handler serves the assessment and administrative endpoints
type Handler struct {
	service  fraud.Service
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a handler over the fraud service
func NewHandler(service fraud.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// handleAssess scores a payment attempt. Fail-safe assessments are still 200.
func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessmentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	assessment, err := h.service.Assess(r.Context(), req.ToAttempt())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (h *Handler) handleGetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Rules())
}

// handleUpdateRules applies a partial update; omitted sections and fields are unchanged
func (h *Handler) handleUpdateRules(w http.ResponseWriter, r *http.Request) {
	var update fraud.RuleUpdate
	if err := h.decode(w, r, &update); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rules, err := h.service.UpdateRules(r.Context(), update)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	subject := ""
	if claims != nil {
		subject = claims.Subject
	}
	h.logger.Info("fraud rules updated via admin API",
		zap.String("subject", subject),
		zap.String("request_id", RequestIDFromContext(r.Context())))

	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenantID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	userID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	assessments, err := h.service.History(r.Context(), tenantID, userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if assessments == nil {
		assessments = []*risk.Assessment{}
	}

	writeJSON(w, http.StatusOK, AssessmentListResponse{
		TenantID:    tenantID,
		UserID:      userID,
		Assessments: assessments,
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenantID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	window := defaultStatisticsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err = time.ParseDuration(raw)
		if err != nil || window <= 0 || window > maxStatisticsWindow {
			writeError(w, r, h.logger, errors.NewValidationError("INVALID_WINDOW",
				"window must be a positive duration of at most 2160h"))
			return
		}
	}

	stats, err := h.service.Statistics(r.Context(), tenantID, h.now().Add(-window))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, StatisticsResponse{
		TenantID:   tenantID,
		Window:     window.String(),
		Statistics: stats,
	})
}

// decode reads a bounded JSON body, rejecting unknown fields, then validates it
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := h.validate.Struct(dst); err != nil {
		return newValidationError(err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", name+" must be a UUID")
	}
	return id, nil
}

func parsePage(r *http.Request) (risk.Page, error) {
	var page risk.Page
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, errors.NewValidationError("INVALID_LIMIT", "limit must be a non-negative integer")
		}
		page.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, errors.NewValidationError("INVALID_OFFSET", "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page.Normalize(), nil
}
