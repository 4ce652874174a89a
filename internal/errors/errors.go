// Package errors defines the service error type returned across the HTTP
// boundary and maps presale failures onto it.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/presale"
	"github.com/R3E-Network/presale_layer/internal/store"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

const (
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeInvalidFormat     ErrorCode = "INVALID_FORMAT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
)

// ServiceError is an error with an HTTP status and details for clients.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail entry and returns e.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newServiceError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Unauthorized"
	}
	return newServiceError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Forbidden"
	}
	return newServiceError(CodeForbidden, http.StatusForbidden, message, nil)
}

func InvalidToken(err error) *ServiceError {
	return newServiceError(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", err)
}

func InvalidFormat(field, reason string) *ServiceError {
	return newServiceError(CodeInvalidFormat, http.StatusBadRequest, "Invalid request format", nil).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func NotFound(resource, id string) *ServiceError {
	return newServiceError(CodeNotFound, http.StatusNotFound, resource+" not found", nil).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return newServiceError(CodeConflict, http.StatusConflict, message, nil)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return newServiceError(CodeRateLimitExceeded, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, err error) *ServiceError {
	return newServiceError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// FromDomain converts a presale, ledger or store failure into a ServiceError.
// Unknown errors become internal errors.
func FromDomain(err error) *ServiceError {
	if err == nil {
		return nil
	}
	if se := GetServiceError(err); se != nil {
		return se
	}

	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return newServiceError(CodeNotFound, http.StatusNotFound, "Record not found", err)
	case stderrors.Is(err, store.ErrExists):
		return newServiceError(CodeConflict, http.StatusConflict, "Record already exists", err)
	case stderrors.Is(err, ledger.ErrInsufficientFunds):
		return newServiceError(CodeInsufficientFunds, http.StatusUnprocessableEntity, "Insufficient funds", err)
	case stderrors.Is(err, ledger.ErrBalanceOverflow):
		return newServiceError(ErrorCode(presale.CodeOf(presale.ErrArithmeticOverflow)), http.StatusInternalServerError, "Balance overflow", err)
	case stderrors.Is(err, ledger.ErrInvalidTransfer):
		return newServiceError(CodeInvalidFormat, http.StatusBadRequest, "Invalid transfer", err)
	}

	code := presale.CodeOf(err)
	if code == "" {
		return Internal("Internal server error", err)
	}

	var status int
	switch presale.KindOf(err) {
	case presale.KindAuthorization:
		status = http.StatusForbidden
	case presale.KindState, presale.KindIdempotency:
		status = http.StatusConflict
	case presale.KindWindow, presale.KindEligibility, presale.KindSetup:
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}

	var pe *presale.Error
	stderrors.As(err, &pe)
	return newServiceError(ErrorCode(code), status, pe.Msg, err).
		WithDetails("kind", string(pe.Kind))
}
