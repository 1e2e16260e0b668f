package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/dashboard/viewstate"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	maintenancedomain "github.com/smallbiznis/meseboard/internal/maintenance/domain"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"gorm.io/gorm"
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
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
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
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var inputErr *ingestdomain.InputError
	switch {
	case errors.Is(err, maintenancedomain.ErrConfirmationRequired):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "confirmation_required",
			Message: `type "` + maintenancedomain.ConfirmToken + `" to confirm`,
		}
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_upload",
			Message: "the uploaded file could not be processed",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, viewstate.ErrNoModalOpen):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog yields the type and code logged for a failed request.
// Only sentinel codes are logged, never raw messages.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	recorddomain.ErrUnknownKind,
	dashboarddomain.ErrInvalidYear,
	dashboarddomain.ErrInvalidMonth,
	dashboarddomain.ErrInvalidSerial,
	dashboarddomain.ErrUnknownDetailKind,
	viewstate.ErrUnknownAction,
	viewstate.ErrUnknownModal,
	viewstate.ErrFilterNotAllowed,
	maintenancedomain.ErrNotTruncatable,
	maintenancedomain.ErrInvalidMonth,
}

func isValidationError(err error) bool {
	return matchedSentinel(err, validationSentinels) != nil
}

func matchedSentinel(err error, sentinels []error) error {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, dashboarddomain.ErrTicketNotFound),
		errors.Is(err, viewstate.ErrSessionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if sentinel := matchedSentinel(err, validationSentinels); sentinel != nil {
		return sentinel.Error()
	}
	return "invalid_request"
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_stat_month":
		return "month"
	case "unknown_kind":
		return "kind"
	case "unknown_detail_kind":
		return "kind"
	case "unknown_action":
		return "type"
	case "unknown_modal":
		return "modal"
	case "filter_not_allowed":
		return "filter"
	case "table_not_truncatable":
		return "table"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_year":
		return "year must be between 2000 and 2099"
	case "invalid_month", "invalid_stat_month":
		return "month must be YYYY-MM"
	default:
		return "invalid value"
	}
}
