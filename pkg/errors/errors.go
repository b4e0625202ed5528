package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pharmstock/pharmstock-backend/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicateCode      = errors.New("duplicate code")
	ErrInvalidTransfer    = errors.New("invalid transfer")
	ErrConcurrencyRetries = errors.New("concurrent update conflict")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// LocalizeWith returns a localized version using a specific localizer
func (e *AppError) LocalizeWith(l *i18n.Localizer) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return l.T(e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		MessageKey: "errors.unauthorized",
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		MessageKey: "errors.forbidden",
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		MessageKey: "errors.token_expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		MessageKey: "errors.token_invalid",
		StatusCode: http.StatusUnauthorized,
	}
}

// Ledger error constructors

// InsufficientStock reports that a batch cannot cover the requested
// quantity. A lot that was never imported surfaces with available 0.
// The offending key and the shortfall are carried in Details so callers
// can point at the exact line that aborted the transaction.
func InsufficientStock(productID, lotCode string, requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for lot %s of product %s: requested %d, available %d", lotCode, productID, requested, available),
		MessageKey: "errors.insufficient_stock",
		Params: map[string]string{
			"lot_code": lotCode,
			"product":  productID,
		},
		StatusCode: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"product_id": productID,
			"lot_code":   lotCode,
			"requested":  strconv.Itoa(requested),
			"available":  strconv.Itoa(available),
		},
	}
}

// DuplicateCode reports a stock note or request code that already exists
// for this tenant.
func DuplicateCode(code string) *AppError {
	return &AppError{
		Err:        ErrDuplicateCode,
		Code:       "DUPLICATE_CODE",
		Message:    fmt.Sprintf("code %q is already in use", code),
		MessageKey: "errors.duplicate_code",
		Params:     map[string]string{"code": code},
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"code": code},
	}
}

// InvalidTransfer reports a transfer whose source and destination
// warehouses are the same.
func InvalidTransfer() *AppError {
	return &AppError{
		Err:        ErrInvalidTransfer,
		Code:       "INVALID_TRANSFER",
		Message:    "source and destination warehouse must differ",
		MessageKey: "errors.invalid_transfer",
		StatusCode: http.StatusBadRequest,
	}
}

// ConcurrencyConflict reports that a transaction kept colliding with
// concurrent updates after the bounded retries were exhausted.
func ConcurrencyConflict() *AppError {
	return &AppError{
		Err:        ErrConcurrencyRetries,
		Code:       "CONCURRENCY_CONFLICT",
		Message:    "operation conflicted with concurrent updates, please retry",
		MessageKey: "errors.concurrency_conflict",
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
