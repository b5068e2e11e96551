package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail entry.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError, deriving Retryable from the code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// ConfigError reports an invalid configuration field.
func ConfigError(field, reason string) *AppError {
	return New(ErrCodeConfig, fmt.Sprintf("invalid configuration for %s: %s", field, reason), http.StatusInternalServerError).
		WithDetail("field", field)
}

// InvalidInput reports a malformed request parameter.
func InvalidInput(field, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid input: %s", reason), http.StatusBadRequest).
		WithDetail("field", field)
}

// StateNotFound is returned for an unknown or replayed state value.
func StateNotFound() *AppError {
	return New(ErrCodeStateNotFound, "The login request is unknown or was already used. Please sign in again.", http.StatusBadRequest)
}

// StateExpired is returned when the login took longer than the state TTL.
func StateExpired() *AppError {
	return New(ErrCodeStateExpired, "The login request expired. Please sign in again.", http.StatusBadRequest)
}

// Timeout reports a provider call that did not complete in time.
func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, "The identity provider took too long to respond.", http.StatusGatewayTimeout).
		WithDetail("operation", operation)
}

// ConnectionFailed reports an unreachable provider.
func ConnectionFailed(operation string) *AppError {
	return New(ErrCodeConnectionFailed, "Unable to reach the identity provider.", http.StatusBadGateway).
		WithDetail("operation", operation)
}

// TLSFailed reports a certificate verification failure.
func TLSFailed(operation string) *AppError {
	return New(ErrCodeTLS, "The identity provider presented an untrusted certificate.", http.StatusBadGateway).
		WithDetail("operation", operation)
}

// BadResponse reports an unparseable provider answer.
func BadResponse(operation string) *AppError {
	return New(ErrCodeBadResponse, "The identity provider returned an unexpected response.", http.StatusBadGateway).
		WithDetail("operation", operation)
}

// OAuth reports an error document returned by the provider.
func OAuth(code, description string) *AppError {
	msg := "The identity provider rejected the request."
	if description != "" {
		msg = description
	}
	return New(ErrCodeOAuth, msg, http.StatusUnauthorized).WithDetail("error", code)
}

// InvalidToken reports an ID token that failed validation with the given code.
func InvalidToken(code ErrorCode, reason string) *AppError {
	return New(code, reason, http.StatusUnauthorized)
}

// UserNotFound is returned when no account matched and creation is disabled.
func UserNotFound() *AppError {
	return New(ErrCodeUserNotFound, "No account is associated with this identity.", http.StatusForbidden)
}

// MissingIdentityClaim is returned when the configured identity claim is absent.
func MissingIdentityClaim(claim string) *AppError {
	return New(ErrCodeMissingIdentityClaim, fmt.Sprintf("The identity provider did not supply %q.", claim), http.StatusForbidden).
		WithDetail("claim", claim)
}

// TemplateError is returned when a claim template cannot be rendered.
func TemplateError(claim string) *AppError {
	return New(ErrCodeTemplate, fmt.Sprintf("Claim %q required by a template is missing.", claim), http.StatusForbidden).
		WithDetail("claim", claim)
}

// SessionExpired is returned when a session can no longer be refreshed.
func SessionExpired() *AppError {
	return New(ErrCodeSessionExpired, "Your session has expired. Please log in again.", http.StatusUnauthorized)
}

// Unauthorized reports a request without an authenticated session.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return New(ErrCodeUnauthorized, reason, http.StatusUnauthorized)
}

// Internal wraps an unexpected failure.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.", http.StatusInternalServerError).WithCause(cause)
}
