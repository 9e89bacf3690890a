package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	invoicedomain "github.com/smallbiznis/aula/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/aula/internal/payroll/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	reportdomain "github.com/smallbiznis/aula/internal/report/domain"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	userdomain "github.com/smallbiznis/aula/internal/user/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
			Type:    "internal",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ratedomain.ErrRateMissing):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "rate_missing",
			Message: "no exchange rate available for the requested date",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrInvalidCredentials),
		errors.Is(err, userdomain.ErrSessionExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, userdomain.ErrUserInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isBusinessRuleError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "business_rule_violation",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// isValidationError catches the invalid_* sentinels every domain uses
// for malformed input.
func isValidationError(err error) bool {
	if errors.Is(err, ErrInvalidRequest) {
		return true
	}
	if strings.HasPrefix(err.Error(), "invalid_") {
		return true
	}
	switch {
	case errors.Is(err, userdomain.ErrWeakPassword),
		errors.Is(err, invoicedomain.ErrNoCharges),
		errors.Is(err, invoicedomain.ErrMissingFiscalAddress),
		errors.Is(err, invoicedomain.ErrManualControlRequired),
		errors.Is(err, payrolldomain.ErrPayableRequired):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, ratedomain.ErrRateExists),
		errors.Is(err, repdomain.ErrCedulaExists),
		errors.Is(err, repdomain.ErrEmailExists),
		errors.Is(err, studentdomain.ErrGradeLevelExists),
		errors.Is(err, conceptdomain.ErrCodeExists),
		errors.Is(err, invoicedomain.ErrNumberExists),
		errors.Is(err, invoicedomain.ErrFiscalNumberExists),
		errors.Is(err, invoicedomain.ErrCreditNoteExists),
		errors.Is(err, invoicedomain.ErrDuplicateCharge),
		errors.Is(err, employeedomain.ErrCedulaExists),
		errors.Is(err, employeedomain.ErrDepartmentExists),
		errors.Is(err, employeedomain.ErrPositionExists),
		errors.Is(err, employeedomain.ErrComponentExists),
		errors.Is(err, employeedomain.ErrComponentAssigned),
		errors.Is(err, expensedomain.ErrSupplierExists),
		errors.Is(err, expensedomain.ErrCategoryExists),
		errors.Is(err, userdomain.ErrEmailExists):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ratedomain.ErrNotFound),
		errors.Is(err, schooldomain.ErrNotConfigured),
		errors.Is(err, repdomain.ErrNotFound),
		errors.Is(err, studentdomain.ErrNotFound),
		errors.Is(err, studentdomain.ErrGradeLevelNotFound),
		errors.Is(err, studentdomain.ErrRepresentativeNotFound),
		errors.Is(err, conceptdomain.ErrNotFound),
		errors.Is(err, chargedomain.ErrNotFound),
		errors.Is(err, chargedomain.ErrStudentNotFound),
		errors.Is(err, chargedomain.ErrConceptNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrRepresentativeNotFound),
		errors.Is(err, paymentdomain.ErrChargeNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrRepresentativeNotFound),
		errors.Is(err, invoicedomain.ErrChargeNotFound),
		errors.Is(err, invoicedomain.ErrCreditNoteNotFound),
		errors.Is(err, employeedomain.ErrNotFound),
		errors.Is(err, employeedomain.ErrDepartmentNotFound),
		errors.Is(err, employeedomain.ErrPositionNotFound),
		errors.Is(err, employeedomain.ErrComponentNotFound),
		errors.Is(err, employeedomain.ErrAssignmentNotFound),
		errors.Is(err, expensedomain.ErrNotFound),
		errors.Is(err, expensedomain.ErrSupplierNotFound),
		errors.Is(err, expensedomain.ErrCategoryNotFound),
		errors.Is(err, payrolldomain.ErrRunNotFound),
		errors.Is(err, payrolldomain.ErrEmployeeNotFound),
		errors.Is(err, payrolldomain.ErrPayslipNotFound),
		errors.Is(err, payrolldomain.ErrPayableNotFound),
		errors.Is(err, reportdomain.ErrRepresentativeNotFound),
		errors.Is(err, reportdomain.ErrStudentNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	}
	return false
}

func isBusinessRuleError(err error) bool {
	switch {
	case errors.Is(err, chargedomain.ErrStudentInactive),
		errors.Is(err, chargedomain.ErrConceptInactive),
		errors.Is(err, chargedomain.ErrForbiddenStatus),
		errors.Is(err, chargedomain.ErrChargeHasMoney),
		errors.Is(err, chargedomain.ErrChargeInvoiced),
		errors.Is(err, paymentdomain.ErrChargeNotPayable),
		errors.Is(err, paymentdomain.ErrChargeWrongOwner),
		errors.Is(err, paymentdomain.ErrAllocationExceeds),
		errors.Is(err, paymentdomain.ErrOverAllocated),
		errors.Is(err, paymentdomain.ErrNoCredit),
		errors.Is(err, invoicedomain.ErrChargeWrongOwner),
		errors.Is(err, invoicedomain.ErrChargeCancelled),
		errors.Is(err, invoicedomain.ErrChargeInvoiced),
		errors.Is(err, invoicedomain.ErrNotPendingEmission),
		errors.Is(err, invoicedomain.ErrAlreadyAnnulled),
		errors.Is(err, invoicedomain.ErrInvoiceAnnulled),
		errors.Is(err, employeedomain.ErrNotHourly),
		errors.Is(err, expensedomain.ErrAlreadyPaid),
		errors.Is(err, expensedomain.ErrPaymentExceeds),
		errors.Is(err, payrolldomain.ErrNotDraft),
		errors.Is(err, payrolldomain.ErrForbiddenStatus),
		errors.Is(err, payrolldomain.ErrPayableWrongEmployee),
		errors.Is(err, payrolldomain.ErrPayablePaid),
		errors.Is(err, payrolldomain.ErrAllocationExceeds),
		errors.Is(err, payrolldomain.ErrOverAllocated),
		errors.Is(err, conceptdomain.ErrConceptInUse),
		errors.Is(err, studentdomain.ErrGradeLevelInUse),
		errors.Is(err, repdomain.ErrHasDependents):
		return true
	}
	return false
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
