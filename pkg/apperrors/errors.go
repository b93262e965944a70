package apperrors

import (
	"errors"
	"net/http"
)

// Standard error kinds. Every AppError wraps exactly one of them.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrPaymentRequired      = errors.New("active subscription required")
	ErrNotFound             = errors.New("resource not found")
	ErrConflict             = errors.New("resource conflict")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrTooManyRequests      = errors.New("too many requests")
	ErrUnavailable          = errors.New("service unavailable")
	ErrInternal             = errors.New("internal server error")
)

// AppError represents a structured application error with context
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error kind
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
	}
}

func NewValidationError(message string) *AppError {
	return NewAppError(ErrValidation, message, http.StatusBadRequest)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized)
}

func NewPaymentRequiredError(message string) *AppError {
	return NewAppError(ErrPaymentRequired, message, http.StatusPaymentRequired)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict)
}

func NewConfirmationRequiredError(message string) *AppError {
	return NewAppError(ErrConfirmationRequired, message, http.StatusPreconditionRequired)
}

func NewTooManyRequestsError(message string) *AppError {
	return NewAppError(ErrTooManyRequests, message, http.StatusTooManyRequests)
}

func NewUnavailableError(message string) *AppError {
	return NewAppError(ErrUnavailable, message, http.StatusServiceUnavailable)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError)
}

var kindStatus = []struct {
	kind   error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrPaymentRequired, http.StatusPaymentRequired},
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrConfirmationRequired, http.StatusPreconditionRequired},
	{ErrTooManyRequests, http.StatusTooManyRequests},
	{ErrUnavailable, http.StatusServiceUnavailable},
}

// StatusCode maps any error to the HTTP status it should be reported with.
// Unknown errors are internal.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			return ks.status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to API clients. Internal
// errors never leak their cause.
func PublicMessage(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return ErrInternal.Error()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
