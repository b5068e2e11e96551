package oidc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kbukum/oidcrp/logger"
)

// stateEntropy is the number of random bytes behind state and nonce values.
const stateEntropy = 32

// defaultGrace keeps consumed-late records around so they report Expired
// instead of NotFound.
const defaultGrace = 10 * time.Minute

// AuthRequestState correlates an authorization request with its callback.
type AuthRequestState struct {
	Value        string        `json:"value"`
	Nonce        string        `json:"nonce"`
	CreatedAt    time.Time     `json:"created_at"`
	TTL          time.Duration `json:"ttl"`
	CodeVerifier string        `json:"code_verifier,omitempty"`
	ReturnTo     string        `json:"return_to,omitempty"`
	Provider     string        `json:"provider,omitempty"`
}

// ExpiresAt is CreatedAt + TTL.
func (s *AuthRequestState) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.TTL)
}

// Expired reports whether now is past the TTL.
func (s *AuthRequestState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

// IssueOption customizes a state at issue time.
type IssueOption func(*AuthRequestState)

// WithCodeVerifier stores the PKCE verifier alongside the state.
func WithCodeVerifier(v string) IssueOption {
	return func(s *AuthRequestState) { s.CodeVerifier = v }
}

// WithStateReturnTo stores where to send the user after login.
func WithStateReturnTo(path string) IssueOption {
	return func(s *AuthRequestState) { s.ReturnTo = path }
}

// WithStateProvider tags the state with the relying party name.
func WithStateProvider(name string) IssueOption {
	return func(s *AuthRequestState) { s.Provider = name }
}

// StateStore issues and consumes authorization request states.
//
// Consume must be atomic per value: of any number of concurrent calls for the
// same value at most one succeeds. A consumed state is gone even when the
// caller later fails.
type StateStore interface {
	Issue(ctx context.Context, ttl time.Duration, opts ...IssueOption) (*AuthRequestState, error)
	Consume(ctx context.Context, value string) (*AuthRequestState, error)
	// Sweep purges expired records and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// StoreOption configures the bundled state stores.
type StoreOption func(*storeOptions)

type storeOptions struct {
	grace time.Duration
	now   func() time.Time
	log   *logger.Logger
}

// WithGrace sets how long records outlive their TTL.
func WithGrace(d time.Duration) StoreOption {
	return func(o *storeOptions) { o.grace = d }
}

// WithStoreClock replaces time.Now.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) { o.now = now }
}

// WithStoreLogger sets the logger used for rejected consumes.
func WithStoreLogger(l *logger.Logger) StoreOption {
	return func(o *storeOptions) { o.log = l }
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{grace: defaultGrace, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.grace < 0 {
		o.grace = 0
	}
	return o
}

func newAuthRequestState(now time.Time, ttl time.Duration, opts []IssueOption) (*AuthRequestState, error) {
	value, err := randomToken()
	if err != nil {
		return nil, err
	}
	nonce, err := randomToken()
	if err != nil {
		return nil, err
	}
	st := &AuthRequestState{Value: value, Nonce: nonce, CreatedAt: now.UTC(), TTL: ttl}
	for _, opt := range opts {
		opt(st)
	}
	return st, nil
}

// randomToken returns stateEntropy bytes from the OS CSPRNG, base64url encoded.
func randomToken() (string, error) {
	b := make([]byte, stateEntropy)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oidc: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// stateRef is a log-safe fingerprint of a state value.
func stateRef(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:6])
}

func logRejectedState(ctx context.Context, log *logger.Logger, value string, err error) {
	log.WithContext(ctx).Warn("state rejected", logger.Fields(
		"state_ref", stateRef(value),
		logger.FieldReason, err.Error(),
	))
}
