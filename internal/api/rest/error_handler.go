package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	domainErrors "github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
)

// ValidationError carries per-field request validation failures
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newValidationError translates validator output into field messages
func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = describeFieldError(fe)
	}
	return &ValidationError{Message: "Request validation failed", Fields: fields}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "ip":
		return "must be an IP address"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// HandleError maps an error to an HTTP status and a public code and message.
// Details are only populated for client errors.
func HandleError(err error) (status int, code, message string, details map[string]interface{}) {
	if err == nil {
		return http.StatusOK, "", "", nil
	}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			return status, appErr.Code, appErr.Message, nil
		}
		return status, appErr.Code, appErr.Message, appErr.Details
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		details = make(map[string]interface{}, len(validationErr.Fields))
		for field, msg := range validationErr.Fields {
			details[field] = msg
		}
		return http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message, details
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return http.StatusBadRequest, "INVALID_JSON", "Invalid JSON syntax",
			map[string]interface{}{"offset": syntaxErr.Offset}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return http.StatusBadRequest, "TYPE_MISMATCH",
			fmt.Sprintf("Invalid type for field '%s'", typeErr.Field),
			map[string]interface{}{"expected": typeErr.Type.String(), "got": typeErr.Value}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return http.StatusBadRequest, "INVALID_JSON", "Request body is empty or truncated", nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", nil
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return http.StatusBadRequest, "UNKNOWN_FIELD", err.Error(), nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timed out", nil
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout, "REQUEST_CANCELED", "Request was canceled", nil
	}

	return http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil
}
