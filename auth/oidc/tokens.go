package oidc

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is the token endpoint answer plus the local time it was
// received.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ExpiresAt returns the access token expiry, or the zero time when the
// provider sent no lifetime.
func (t *TokenResponse) ExpiresAt() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// OAuth2Token converts to an x/oauth2 token for use with oauth2.Client.
// The ID token is carried in the extras under "id_token".
func (t *TokenResponse) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt(),
		ExpiresIn:    t.ExpiresIn,
	}
	if t.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": t.IDToken})
	}
	return tok
}

// tokenJSON is the wire form. Some providers send expires_in as a string.
type tokenJSON struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	IDToken          string      `json:"id_token"`
	TokenType        string      `json:"token_type"`
	ExpiresIn        json.Number `json:"expires_in"`
	Scope            string      `json:"scope"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
	ErrorURI         string      `json:"error_uri"`
}

func (j *tokenJSON) response(now time.Time) *TokenResponse {
	expires, _ := j.ExpiresIn.Int64()
	return &TokenResponse{
		AccessToken:  j.AccessToken,
		RefreshToken: j.RefreshToken,
		IDToken:      j.IDToken,
		TokenType:    j.TokenType,
		ExpiresIn:    expires,
		Scope:        j.Scope,
		IssuedAt:     now.UTC(),
	}
}
