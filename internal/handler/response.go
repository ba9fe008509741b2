package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"convertflow/internal/domain"
	"convertflow/internal/engine"
	"convertflow/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response. Detail carries the specific
// rejection code or gate when the error has one.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var (
		ice    *domain.InsufficientCreditsError
		tierE  *domain.TierLimitError
		guardE *domain.GuardrailError
		rlErr  *engine.RateLimitError
	)
	switch {
	case errors.As(err, &ice):
		return http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", ice.Error()
	case errors.As(err, &tierE):
		return http.StatusForbidden, "TIER_LIMIT_EXCEEDED", tierE.Message
	case errors.As(err, &guardE):
		return http.StatusForbidden, "GUARDRAIL_REJECTED", guardE.Reason
	case errors.As(err, &rlErr):
		return http.StatusTooManyRequests, "ENGINE_RATE_LIMITED",
			fmt.Sprintf("conversion engine is rate limited, retry after %s", rlErr.RetryAfter)
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; only PDF documents are accepted"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT", "amount must be a positive number"
	case errors.Is(err, domain.ErrDocumentUnreadable):
		return http.StatusUnprocessableEntity, "DOCUMENT_UNREADABLE", "document could not be read as a PDF"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "insufficient credits"
	case errors.Is(err, domain.ErrTierLimitExceeded):
		return http.StatusForbidden, "TIER_LIMIT_EXCEEDED", "tier limit exceeded"
	case errors.Is(err, domain.ErrGuardrailRejected):
		return http.StatusForbidden, "GUARDRAIL_REJECTED", "expensive engine rejected by guardrail"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "credit store is temporarily unavailable, retry later"
	case errors.Is(err, domain.ErrInconsistentLedgerRecord):
		return http.StatusInternalServerError, "INCONSISTENT_LEDGER_RECORD", "credit record is inconsistent; contact support"
	case errors.Is(err, domain.ErrEngineTimeout):
		return http.StatusGatewayTimeout, "ENGINE_TIMEOUT", "conversion engine timed out"
	case errors.Is(err, domain.ErrEngineFailed):
		return http.StatusBadGateway, "ENGINE_FAILED", "conversion engine failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// errorDetail returns the machine-readable sub-code of a structured error.
func errorDetail(err error) string {
	var (
		tierE  *domain.TierLimitError
		guardE *domain.GuardrailError
	)
	switch {
	case errors.As(err, &tierE):
		return tierE.Code
	case errors.As(err, &guardE):
		return string(guardE.Gate)
	case errors.Is(err, domain.ErrInsufficientCredits):
		return domain.CodeInsufficientCredits
	default:
		return ""
	}
}

// HandleError maps a domain error and sends the appropriate error response.
// The raw error is attached to the context for the access log.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	_ = c.Error(err)
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg, Detail: errorDetail(err)},
	})
}

// extractUserID reads the authenticated user ID from the request context.
// Returns false if auth context is missing (error response already written).
func extractUserID(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return "", false
	}
	return userID, true
}
