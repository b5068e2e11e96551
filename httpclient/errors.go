package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a client error.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindConnection
	KindTLS
	KindBadResponse
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindTLS:
		return "tls"
	case KindBadResponse:
		return "bad_response"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Error is a classified client error.
type Error struct {
	Kind Kind
	// StatusCode is set for KindStatus.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("httpclient: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("httpclient: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewBadResponseError wraps an unparseable response.
func NewBadResponseError(err error) *Error {
	return &Error{Kind: KindBadResponse, Err: err}
}

// classifyTransport maps an error from http.Client.Do to a Kind.
func classifyTransport(ctx context.Context, err error) *Error {
	var (
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidCert x509.CertificateInvalidError
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		netErr      net.Error
	)
	switch {
	case errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &invalidCert),
		errors.As(err, &verifyErr), errors.As(err, &recordErr):
		return &Error{Kind: KindTLS, Err: err}
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return &Error{Kind: KindTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	default:
		return &Error{Kind: KindConnection, Err: err}
	}
}

// As returns the *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
