package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	expensedomain "github.com/smallbiznis/atelier/internal/expense/domain"
	handoffdomain "github.com/smallbiznis/atelier/internal/handoff/domain"
	invoicedomain "github.com/smallbiznis/atelier/internal/invoice/domain"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/internal/pricing"
	vatperioddomain "github.com/smallbiznis/atelier/internal/vatperiod/domain"
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

// validationErrs map to 400 with the sentinel's name as the error code.
var validationErrs = []error{
	pricing.ErrNegativeUnitPrice,
	pricing.ErrInvalidQuantity,
	orderdomain.ErrInvalidCustomerName,
	orderdomain.ErrEmptyItems,
	orderdomain.ErrInvalidShippingCost,
	orderdomain.ErrInvalidRentalDays,
	messagedomain.ErrEmptyBody,
	messagedomain.ErrInvalidOrderID,
	expensedomain.ErrInvalidTitle,
	expensedomain.ErrInvalidAmount,
	expensedomain.ErrInvalidVAT,
	expensedomain.ErrVATNotApplied,
	expensedomain.ErrInvalidTime,
	vatperioddomain.ErrInvalidPeriod,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
}

var notFoundErrs = []error{
	orderdomain.ErrNotFound,
	orderdomain.ErrItemNotFound,
	invoicedomain.ErrNotFound,
	expensedomain.ErrNotFound,
	vatperioddomain.ErrRecordNotFound,
	gorm.ErrRecordNotFound,
}

// conflictErrs map to 409: the request was well formed but the resource's
// current state forbids it.
var conflictErrs = []error{
	orderdomain.ErrInvalidTransition,
	orderdomain.ErrStaleState,
	orderdomain.ErrPaymentNotVerified,
	orderdomain.ErrNotCustomOrder,
	handoffdomain.ErrWrongHandler,
	handoffdomain.ErrOrderNotReady,
	handoffdomain.ErrNotHandedOff,
	vatperioddomain.ErrPeriodArchived,
	invoicedomain.ErrOrderNotEligible,
}

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

	var vErrs *ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErrs.Errors,
		}
	}

	for _, sentinel := range validationErrs {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []ValidationError{
					{Field: "request", Code: sentinel.Error(), Message: sentinel.Error()},
				},
			}
		}
	}

	for _, sentinel := range notFoundErrs {
		if errors.Is(err, sentinel) {
			return http.StatusNotFound, errorPayload{
				Type:    "not_found",
				Message: sentinel.Error(),
			}
		}
	}

	for _, sentinel := range conflictErrs {
		if errors.Is(err, sentinel) {
			return http.StatusConflict, errorPayload{
				Type:    "conflict",
				Message: sentinel.Error(),
			}
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog labels handled errors for the request log without
// leaking internals.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch status {
	case http.StatusBadRequest:
		return "validation_error", payload.Type
	case http.StatusNotFound:
		return "not_found", payload.Message
	case http.StatusConflict:
		return "conflict", payload.Message
	default:
		return "internal_error", "internal_error"
	}
}
