package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	domainErrors "github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
)

func TestHandleError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{Offset: 7}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{
			name:        "validation app error keeps details",
			err:         domainErrors.NewValidationError("INVALID_AMOUNT", "bad").WithDetails(map[string]interface{}{"amount": "0"}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_AMOUNT",
			wantDetails: true,
		},
		{
			name:       "wrapped internal error hides details",
			err:        fmt.Errorf("handler: %w", domainErrors.NewInternalError("db down").WithDetails(map[string]interface{}{"dsn": "secret"})),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name:        "request validation",
			err:         &ValidationError{Message: "Request validation failed", Fields: map[string]string{"x": "is required"}},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantDetails: true,
		},
		{name: "json syntax", err: syntaxErr, wantStatus: http.StatusBadRequest, wantCode: "INVALID_JSON", wantDetails: true},
		{name: "empty body", err: io.EOF, wantStatus: http.StatusBadRequest, wantCode: "INVALID_JSON"},
		{name: "body too large", err: &http.MaxBytesError{Limit: 1}, wantStatus: http.StatusRequestEntityTooLarge, wantCode: "BODY_TOO_LARGE"},
		{name: "deadline", err: fmt.Errorf("assess: %w", context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout, wantCode: "REQUEST_TIMEOUT"},
		{name: "unknown", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _, details := HandleError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantDetails {
				assert.NotEmpty(t, details)
			} else {
				assert.Empty(t, details)
			}
		})
	}
}
