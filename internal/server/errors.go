package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: "request", Code: "invalid_request", Message: "invalid request"},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, errorPayload{
			Type:    "access_denied",
			Message: denialMessage(err),
		}
	case errors.Is(err, ErrNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: validationMessage(err),
		}
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "storage_error",
			Message: "storage unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// validationMessage strips the kind prefix so callers see only the detail.
func validationMessage(err error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, domain.ErrValidation.Error()+": "); ok {
		return detail
	}
	return msg
}

// denialMessage keeps the gate's reason and drops the kind prefix.
func denialMessage(err error) string {
	if detail, ok := strings.CutPrefix(err.Error(), domain.ErrAccessDenied.Error()+": "); ok && detail != "" {
		return detail
	}
	return "access denied"
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
