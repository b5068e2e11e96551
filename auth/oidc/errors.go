package oidc

import (
	"fmt"

	apperrors "github.com/kbukum/oidcrp/errors"
)

// sentinel is a comparable error with a fixed AppError form.
type sentinel struct {
	msg string
	app func() *apperrors.AppError
}

func (e *sentinel) Error() string                 { return e.msg }
func (e *sentinel) AppError() *apperrors.AppError { return e.app() }

var (
	// ErrStateNotFound means the state value was never issued, was already
	// consumed, or was absent from the callback.
	ErrStateNotFound error = &sentinel{"oidc: state not found", apperrors.StateNotFound}
	// ErrStateExpired means the callback arrived after the state TTL.
	ErrStateExpired error = &sentinel{"oidc: state expired", apperrors.StateExpired}
	// ErrSessionExpired means tokens could not be refreshed; the host must
	// treat the provider-backed session as ended.
	ErrSessionExpired error = &sentinel{"oidc: session expired", apperrors.SessionExpired}
)

// OAuthError is an error document returned by the provider, either on the
// callback or from the token endpoint.
type OAuthError struct {
	Code        string
	Description string
	URI         string
	// StatusCode is zero for errors delivered on the callback.
	StatusCode int
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oidc: provider error %s: %s", e.Code, e.Description)
	}
	return "oidc: provider error " + e.Code
}

// AppError hides the provider description from end users.
func (e *OAuthError) AppError() *apperrors.AppError {
	return apperrors.OAuth(e.Code, "")
}

// HTTPErrorKind classifies a transport failure.
type HTTPErrorKind int

const (
	HTTPTimeout HTTPErrorKind = iota + 1
	HTTPConnectionFailed
	HTTPTLSError
	HTTPBadResponse
)

func (k HTTPErrorKind) String() string {
	switch k {
	case HTTPTimeout:
		return "Timeout"
	case HTTPConnectionFailed:
		return "ConnectionFailed"
	case HTTPTLSError:
		return "TLSError"
	case HTTPBadResponse:
		return "BadResponse"
	}
	return "Unknown"
}

// HTTPError is a transport-level failure talking to the provider.
type HTTPError struct {
	Kind HTTPErrorKind
	// Op names the call: "token", "userinfo", "jwks" or "discovery".
	Op         string
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("oidc: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("oidc: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func (e *HTTPError) AppError() *apperrors.AppError {
	switch e.Kind {
	case HTTPTimeout:
		return apperrors.Timeout(e.Op)
	case HTTPConnectionFailed:
		return apperrors.ConnectionFailed(e.Op)
	case HTTPTLSError:
		return apperrors.TLSFailed(e.Op)
	default:
		return apperrors.BadResponse(e.Op)
	}
}

// Temporary reports whether retrying the same call may succeed.
func (e *HTTPError) Temporary() bool {
	return e.Kind == HTTPTimeout || e.Kind == HTTPConnectionFailed
}

// ValidationReason names the stage at which an ID token was rejected.
type ValidationReason string

const (
	ReasonMalformed       ValidationReason = "Malformed"
	ReasonBadSignature    ValidationReason = "BadSignature"
	ReasonMissingClaim    ValidationReason = "MissingClaim"
	ReasonNonceMismatch   ValidationReason = "NonceMismatch"
	ReasonExpired         ValidationReason = "Expired"
	ReasonInvalidIssuer   ValidationReason = "InvalidIssuer"
	ReasonInvalidAudience ValidationReason = "InvalidAudience"
	ReasonIssuedInFuture  ValidationReason = "IssuedInFuture"
	ReasonSubjectMismatch ValidationReason = "SubjectMismatch"
)

// TokenValidationError rejects an ID token. It is always fatal to the attempt.
type TokenValidationError struct {
	Reason ValidationReason
	Detail string
	Err    error
}

func (e *TokenValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("oidc: id token rejected (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("oidc: id token rejected (%s)", e.Reason)
}

func (e *TokenValidationError) Unwrap() error { return e.Err }

func (e *TokenValidationError) AppError() *apperrors.AppError {
	code := apperrors.ErrCodeTokenInvalidClaim
	switch e.Reason {
	case ReasonMalformed:
		code = apperrors.ErrCodeTokenMalformed
	case ReasonBadSignature:
		code = apperrors.ErrCodeTokenBadSignature
	case ReasonMissingClaim:
		code = apperrors.ErrCodeTokenMissingClaim
	case ReasonNonceMismatch:
		code = apperrors.ErrCodeTokenNonceMismatch
	case ReasonExpired:
		code = apperrors.ErrCodeTokenExpired
	}
	return apperrors.InvalidToken(code, "The sign-in response could not be verified. Please try again.").
		WithDetail("reason", string(e.Reason))
}

func rejected(reason ValidationReason, detail string, err error) *TokenValidationError {
	return &TokenValidationError{Reason: reason, Detail: detail, Err: err}
}

// PolicyReason explains a REJECT decision.
type PolicyReason string

const (
	ReasonUserNotFound         PolicyReason = "UserNotFound"
	ReasonMissingIdentityClaim PolicyReason = "MissingIdentityClaim"
	ReasonTemplateError        PolicyReason = "TemplateError"
)

// PolicyError is the error form of a REJECT identity decision.
type PolicyError struct {
	Reason PolicyReason
	// Claim is the claim that was missing, when relevant.
	Claim string
}

func (e *PolicyError) Error() string {
	if e.Claim != "" {
		return fmt.Sprintf("oidc: identity rejected (%s): %s", e.Reason, e.Claim)
	}
	return fmt.Sprintf("oidc: identity rejected (%s)", e.Reason)
}

func (e *PolicyError) AppError() *apperrors.AppError {
	switch e.Reason {
	case ReasonMissingIdentityClaim:
		return apperrors.MissingIdentityClaim(e.Claim)
	case ReasonTemplateError:
		return apperrors.TemplateError(e.Claim)
	default:
		return apperrors.UserNotFound()
	}
}

// outcome returns a short label for metrics and logs.
func outcome(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return string(apperrors.ErrCodeInternal)
}
