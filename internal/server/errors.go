package server

import (
	"errors"
	"net/http"

	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	competitivedomain "github.com/crownlands/tenure/internal/competitiveprocess/domain"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	"github.com/crownlands/tenure/internal/invoicing/period"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/gin-gonic/gin"
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

// ErrorHandlingMiddleware renders the last gin error after the handler
// chain finishes. Handlers push domain errors with AbortWithError and
// never write status codes themselves.
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

// validationSentinels map to 400 with a per-field payload.
var validationSentinels = map[error]string{
	proposaldomain.ErrInvalidApplicant:    "applicant",
	approvaldomain.ErrInvalidHolder:       "holder",
	approvaldomain.ErrInvalidTerm:         "term",
	invoicingdomain.ErrInvalidAmount:      "amount",
	invoicingdomain.ErrInvalidHolder:      "holder",
	invoicingdomain.ErrInvalidTransaction: "transaction",
	invoicingdomain.ErrMissingOracleRef:   "oracle_invoice_number",
	organizationdomain.ErrInvalidName:     "name",
	organizationdomain.ErrInvalidABN:      "abn",
	organizationdomain.ErrInvalidRole:     "role",
	competitivedomain.ErrInvalidParty:     "party",
	compliancedomain.ErrEmptySubmission:   "text",
	period.ErrInvalidFrequency:            "recurrence",
}

// conflictSentinels are requests that are well formed but illegal in the
// record's current state. They map to 409 with a distinct payload shape so
// clients can tell them apart from validation failures.
var conflictSentinels = []error{
	proposaldomain.ErrInvalidTransition,
	proposaldomain.ErrNotSwitchable,
	proposaldomain.ErrReferralNotOpen,
	proposaldomain.ErrNoAssignedOfficer,
	compliancedomain.ErrInvalidTransition,
	compliancedomain.ErrReferralNotOpen,
	invoicingdomain.ErrInvalidTransition,
	approvaldomain.ErrInvalidTransition,
	competitivedomain.ErrNotInProgress,
	competitivedomain.ErrNotCompleted,
	competitivedomain.ErrGeneratedApproved,
	competitivedomain.ErrInvalidTransition,
	organizationdomain.ErrAlreadyExists,
}

var notFoundSentinels = []error{
	proposaldomain.ErrNotFound,
	proposaldomain.ErrReferralNotFound,
	compliancedomain.ErrNotFound,
	compliancedomain.ErrReferralNotFound,
	invoicingdomain.ErrNotFound,
	approvaldomain.ErrNotFound,
	organizationdomain.ErrNotFound,
	organizationdomain.ErrDelegateNotFound,
	competitivedomain.ErrNotFound,
	competitivedomain.ErrPartyNotFound,
	ledger.ErrUserNotFound,
	ledger.ErrOrganisationNotFound,
	gorm.ErrRecordNotFound,
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for sentinel, field := range validationSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []ValidationError{
					{Field: field, Code: sentinel.Error(), Message: sentinel.Error()},
				},
			}
		}
	}

	for _, sentinel := range conflictSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusConflict, errorPayload{
				Type:    "state_conflict",
				Message: sentinel.Error(),
			}
		}
	}

	for _, sentinel := range notFoundSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusNotFound, errorPayload{
				Type:    "not_found",
				Message: sentinel.Error(),
			}
		}
	}

	if errors.Is(err, ledger.ErrUnavailable) {
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: ledger.ErrUnavailable.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog feeds the request logger an error type and code
// without rendering anything.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusBadRequest:
		return "validation", payload.Type
	case status == http.StatusConflict:
		return "conflict", payload.Message
	case status == http.StatusNotFound:
		return "not_found", payload.Message
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	}
	return "request", payload.Type
}
