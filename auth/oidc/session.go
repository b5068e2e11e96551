package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/observability"
	"github.com/kbukum/oidcrp/resilience"
)

// NeedsRefresh reports whether tokens are within margin of expiry at now.
// Tokens without a lifetime never need a refresh.
func NeedsRefresh(tokens *TokenResponse, margin time.Duration, now time.Time) bool {
	if tokens == nil || tokens.ExpiresIn <= 0 {
		return false
	}
	return !tokens.ExpiresAt().Add(-margin).After(now)
}

type refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

type tokenStore interface {
	StoreTokens(ctx context.Context, ref LocalRef, tokens *TokenResponse) error
	LoadTokens(ctx context.Context, ref LocalRef) (*TokenResponse, error)
}

// SessionManager keeps stored tokens fresh.
type SessionManager struct {
	tokens   refresher
	store    tokenStore
	verifier *Verifier
	margin   time.Duration
	retry    resilience.RetryConfig
	provider string
	metrics  *observability.AuthMetrics
	now      func() time.Time
	log      *logger.Logger
}

// RefreshIfNeeded loads the tokens for ref and refreshes them when they are
// close to expiry. Any refresh failure ends the session with
// ErrSessionExpired; the cause stays in the error chain.
func (m *SessionManager) RefreshIfNeeded(ctx context.Context, ref LocalRef) (*TokenResponse, error) {
	current, err := m.store.LoadTokens(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("oidc: load tokens: %w", err)
	}
	if current == nil {
		return nil, ErrSessionExpired
	}
	now := m.now()
	if !NeedsRefresh(current, m.margin, now) {
		return current, nil
	}
	log := m.log.WithContext(ctx).WithFields(logger.Fields("local_ref", string(ref)))
	if current.RefreshToken == "" {
		if now.Before(current.ExpiresAt()) {
			return current, nil
		}
		log.Info("session expired without refresh token")
		m.metrics.Refresh(ctx, m.provider, "NO_REFRESH_TOKEN")
		return nil, ErrSessionExpired
	}

	retry := m.retry
	retry.RetryIf = func(err error) bool {
		var herr *HTTPError
		return errors.As(err, &herr) && herr.Temporary()
	}
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("refresh failed, retrying", logger.Fields("attempt", attempt, logger.FieldError, err.Error(), "wait", wait.String()))
	}
	fresh, err := resilience.Retry(ctx, retry, func(ctx context.Context) (*TokenResponse, error) {
		return m.tokens.Refresh(ctx, current.RefreshToken)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.metrics.Refresh(ctx, m.provider, outcome(err))
		log.Warn("refresh failed, ending session", logger.Fields(logger.FieldError, err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if fresh.IDToken == "" {
		fresh.IDToken = current.IDToken
	} else if err := m.checkRefreshedIDToken(ctx, current.IDToken, fresh.IDToken); err != nil {
		m.metrics.Refresh(ctx, m.provider, outcome(err))
		log.Warn("refreshed id token rejected", logger.Fields(logger.FieldError, err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if err := m.store.StoreTokens(ctx, ref, fresh); err != nil {
		return nil, fmt.Errorf("oidc: store tokens: %w", err)
	}
	m.metrics.Refresh(ctx, m.provider, "REFRESHED")
	log.Debug("tokens refreshed")
	return fresh, nil
}

// checkRefreshedIDToken verifies a new ID token and requires it to name the
// same subject as the one it replaces.
func (m *SessionManager) checkRefreshedIDToken(ctx context.Context, previous, next string) error {
	if m.verifier == nil {
		return nil
	}
	claims, err := m.verifier.VerifyRefreshed(ctx, next)
	if err != nil {
		return err
	}
	if previous == "" {
		return nil
	}
	// previous was verified when it was stored.
	old := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(previous, old); err != nil {
		return nil
	}
	if sub, _ := old.GetSubject(); sub != "" && sub != claims.Subject {
		return rejected(ReasonSubjectMismatch, "refreshed id token names a different subject", nil)
	}
	return nil
}
