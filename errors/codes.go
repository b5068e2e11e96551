package errors

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Configuration
const (
	// ErrCodeConfig indicates a missing or inconsistent client configuration.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
	// ErrCodeInvalidInput indicates a malformed request from the user agent.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Authorization request state
const (
	// ErrCodeStateNotFound indicates the state was never issued or already consumed.
	ErrCodeStateNotFound ErrorCode = "STATE_NOT_FOUND"
	// ErrCodeStateExpired indicates the state outlived its TTL.
	ErrCodeStateExpired ErrorCode = "STATE_EXPIRED"
)

// Transport (retryable)
const (
	// ErrCodeTimeout indicates the provider did not answer in time.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeConnectionFailed indicates the provider could not be reached.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTLS indicates certificate verification failed.
	ErrCodeTLS ErrorCode = "TLS_ERROR"
	// ErrCodeBadResponse indicates the provider answered with something unparseable.
	ErrCodeBadResponse ErrorCode = "BAD_RESPONSE"
)

// Provider protocol
const (
	// ErrCodeOAuth indicates the provider returned an OAuth error document.
	ErrCodeOAuth ErrorCode = "OAUTH_ERROR"
)

// Token validation
const (
	ErrCodeTokenMalformed     ErrorCode = "TOKEN_MALFORMED"
	ErrCodeTokenBadSignature  ErrorCode = "TOKEN_BAD_SIGNATURE"
	ErrCodeTokenMissingClaim  ErrorCode = "TOKEN_MISSING_CLAIM"
	ErrCodeTokenNonceMismatch ErrorCode = "TOKEN_NONCE_MISMATCH"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenInvalidClaim  ErrorCode = "TOKEN_INVALID_CLAIM"
)

// Identity resolution
const (
	// ErrCodeUserNotFound indicates no local account matched and creation is disabled.
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"
	// ErrCodeMissingIdentityClaim indicates the configured identity claim was absent.
	ErrCodeMissingIdentityClaim ErrorCode = "MISSING_IDENTITY_CLAIM"
	// ErrCodeTemplate indicates a claim template referenced a missing claim.
	ErrCodeTemplate ErrorCode = "TEMPLATE_ERROR"
)

// Session
const (
	// ErrCodeSessionExpired indicates the session can no longer be refreshed.
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	// ErrCodeUnauthorized indicates the request carries no authenticated session.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// ErrCodeInternal indicates an unexpected failure.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:          true,
	ErrCodeConnectionFailed: true,
	ErrCodeBadResponse:      true,
}

// IsRetryableCode reports whether a failure with this code may succeed on retry.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
