package oidc

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/kbukum/oidcrp/errors"
	"github.com/kbukum/oidcrp/httpclient"
)

// WellKnownPath is appended to the issuer to locate provider metadata.
const WellKnownPath = "/.well-known/openid-configuration"

// ProviderMetadata is the subset of the discovery document the client uses.
type ProviderMetadata struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserInfoEndpoint      string   `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint    string   `json:"end_session_endpoint,omitempty"`
	JWKSURI               string   `json:"jwks_uri"`
	ScopesSupported       []string `json:"scopes_supported,omitempty"`
	SigningAlgs           []string `json:"id_token_signing_alg_values_supported,omitempty"`
	CodeChallengeMethods  []string `json:"code_challenge_methods_supported,omitempty"`
	TokenAuthMethods      []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// Discover fetches the metadata for issuer and checks that the document
// names the same issuer.
func Discover(ctx context.Context, hc *httpclient.Client, issuer string) (*ProviderMetadata, error) {
	issuer = strings.TrimSuffix(issuer, "/")
	resp, err := hc.Do(ctx, httpclient.Request{URL: issuer + WellKnownPath})
	if err != nil {
		if herr, ok := httpclient.As(err); ok {
			return nil, transportError("discovery", herr)
		}
		return nil, &HTTPError{Kind: HTTPConnectionFailed, Op: "discovery", Err: err}
	}
	var md ProviderMetadata
	if err := resp.DecodeJSON(&md); err != nil {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "discovery", StatusCode: resp.StatusCode, Err: err}
	}
	if strings.TrimSuffix(md.Issuer, "/") != issuer {
		return nil, apperrors.ConfigError("issuer", fmt.Sprintf("discovery document names issuer %q, expected %q", md.Issuer, issuer))
	}
	if md.AuthorizationEndpoint == "" || md.TokenEndpoint == "" {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "discovery", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("discovery document lacks authorization or token endpoint")}
	}
	return &md, nil
}

// Apply fills endpoints cfg leaves unset. Explicit settings win.
func (m *ProviderMetadata) Apply(cfg *ClientConfig) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&cfg.Endpoints.Authorize, m.AuthorizationEndpoint)
	fill(&cfg.Endpoints.Token, m.TokenEndpoint)
	fill(&cfg.Endpoints.UserInfo, m.UserInfoEndpoint)
	fill(&cfg.Endpoints.EndSession, m.EndSessionEndpoint)
	fill(&cfg.Endpoints.JWKS, m.JWKSURI)
	fill(&cfg.TokenEndpointAuthMethod, m.tokenAuthMethod())
}

// tokenAuthMethod picks the client secret method the provider advertises,
// preferring client_secret_post. Empty when nothing usable is listed.
func (m *ProviderMetadata) tokenAuthMethod() string {
	for _, method := range []string{AuthMethodSecretPost, AuthMethodSecretBasic} {
		if slices.Contains(m.TokenAuthMethods, method) {
			return method
		}
	}
	return ""
}

// SupportsPKCE reports whether S256 is advertised. Providers that omit the
// field are assumed to support it.
func (m *ProviderMetadata) SupportsPKCE() bool {
	if len(m.CodeChallengeMethods) == 0 {
		return true
	}
	for _, method := range m.CodeChallengeMethods {
		if method == "S256" {
			return true
		}
	}
	return false
}
