package auth

import (
	"context"
	"net/url"

	"github.com/kbukum/oidcrp/auth/oidc"
)

// Authenticator is the login surface of one identity provider. Handlers
// depend on it rather than on *oidc.RelyingParty so they can be tested
// against fakes.
type Authenticator interface {
	Name() string
	BeginLogin(ctx context.Context, opts ...oidc.LoginOption) (string, error)
	HandleCallback(ctx context.Context, query url.Values) (*oidc.ResolvedIdentity, error)
	Complete(ctx context.Context, id *oidc.ResolvedIdentity) (oidc.LocalRef, error)
	RefreshIfNeeded(ctx context.Context, ref oidc.LocalRef) (*oidc.TokenResponse, error)
	EndSessionURL(idTokenHint, postLogoutRedirect string) (string, error)
}

var _ Authenticator = (*oidc.RelyingParty)(nil)
