package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/kbukum/oidcrp/httpclient"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/observability"
)

// TokenClient talks to the token and UserInfo endpoints. It never retries;
// callers decide.
type TokenClient struct {
	cfg  *ClientConfig
	http *httpclient.Client
	now  func() time.Time
	log  *logger.Logger
}

// NewTokenClient creates a client for cfg. A nil log disables logging.
func NewTokenClient(cfg *ClientConfig, hc *httpclient.Client, log *logger.Logger) *TokenClient {
	if log == nil {
		log = logger.Nop()
	}
	return &TokenClient{cfg: cfg, http: hc, now: time.Now, log: log}
}

// Exchange trades an authorization code for tokens. codeVerifier is sent
// only when non-empty.
func (c *TokenClient) Exchange(ctx context.Context, code, codeVerifier string) (_ *TokenResponse, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanExchange)
	defer func() { observability.EndSpan(span, err) }()

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURI},
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	return c.tokenRequest(ctx, form)
}

// Refresh redeems a refresh token.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (_ *TokenResponse, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanRefresh)
	defer func() { observability.EndSpan(span, err) }()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if c.cfg.Scope != "" {
		form.Set("scope", c.cfg.Scope)
	}
	return c.tokenRequest(ctx, form)
}

func (c *TokenClient) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	start := time.Now()
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.cfg.Endpoints.Token,
		Form:   form,
		Auth:   c.clientAuth(form),
	})
	grant := form.Get("grant_type")
	if err != nil {
		mapped := c.mapTokenError(resp, err)
		c.log.WithContext(ctx).Error("token request failed", logger.Fields(
			logger.FieldOperation, grant,
			logger.FieldError, mapped.Error(),
			logger.FieldDuration, time.Since(start).String(),
		))
		return nil, mapped
	}

	var body tokenJSON
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "token", StatusCode: resp.StatusCode, Err: err}
	}
	if body.Error != "" {
		oerr := &OAuthError{Code: body.Error, Description: body.ErrorDescription, URI: body.ErrorURI, StatusCode: resp.StatusCode}
		c.log.WithContext(ctx).Error("token endpoint returned an error", logger.Fields(
			logger.FieldOperation, grant,
			logger.FieldError, oerr.Error(),
		))
		return nil, oerr
	}
	if body.AccessToken == "" {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "token", StatusCode: resp.StatusCode, Err: errors.New("missing access_token")}
	}
	c.log.WithContext(ctx).Debug("token request succeeded", logger.DurationFields(grant, time.Since(start)))
	return body.response(c.now()), nil
}

// clientAuth authenticates the client per TokenEndpointAuthMethod. Form
// based methods write into form; client_secret_basic returns the header
// credentials, both parts form-encoded first.
func (c *TokenClient) clientAuth(form url.Values) *httpclient.AuthConfig {
	switch {
	case c.cfg.TokenEndpointAuthMethod == AuthMethodSecretBasic && c.cfg.ClientSecret != "":
		return httpclient.BasicAuth(url.QueryEscape(c.cfg.ClientID), url.QueryEscape(c.cfg.ClientSecret))
	case c.cfg.TokenEndpointAuthMethod == AuthMethodNone:
		form.Set("client_id", c.cfg.ClientID)
	default:
		form.Set("client_id", c.cfg.ClientID)
		if c.cfg.ClientSecret != "" {
			form.Set("client_secret", c.cfg.ClientSecret)
		}
	}
	return nil
}

// mapTokenError turns an httpclient failure into an OAuthError or HTTPError.
func (c *TokenClient) mapTokenError(resp *httpclient.Response, err error) error {
	herr, ok := httpclient.As(err)
	if !ok {
		return &HTTPError{Kind: HTTPConnectionFailed, Op: "token", Err: err}
	}
	if herr.Kind != httpclient.KindStatus {
		return transportError("token", herr)
	}
	var body tokenJSON
	if resp != nil && resp.DecodeJSON(&body) == nil && body.Error != "" {
		return &OAuthError{Code: body.Error, Description: body.ErrorDescription, URI: body.ErrorURI, StatusCode: herr.StatusCode}
	}
	return &OAuthError{Code: "server_error", Description: http.StatusText(herr.StatusCode), StatusCode: herr.StatusCode}
}

// UserInfo fetches the UserInfo claims for accessToken.
func (c *TokenClient) UserInfo(ctx context.Context, accessToken string) (_ Claims, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanUserInfo)
	defer func() { observability.EndSpan(span, err) }()

	if c.cfg.Endpoints.UserInfo == "" {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "userinfo", Err: errors.New("no userinfo endpoint configured")}
	}
	resp, err := c.http.Do(ctx, httpclient.Request{
		URL:  c.cfg.Endpoints.UserInfo,
		Auth: httpclient.BearerAuth(accessToken),
	})
	if err != nil {
		herr, ok := httpclient.As(err)
		if !ok {
			return nil, &HTTPError{Kind: HTTPConnectionFailed, Op: "userinfo", Err: err}
		}
		return nil, transportError("userinfo", herr)
	}
	if mt := resp.MediaType(); mt != "" && mt != "application/json" {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "userinfo", StatusCode: resp.StatusCode, Err: errors.New("unsupported content type " + mt)}
	}
	var claims Claims
	if err := resp.DecodeJSON(&claims); err != nil || claims == nil {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "userinfo", StatusCode: resp.StatusCode, Err: err}
	}
	return claims, nil
}

func transportError(op string, herr *httpclient.Error) *HTTPError {
	out := &HTTPError{Op: op, StatusCode: herr.StatusCode, Err: herr}
	switch herr.Kind {
	case httpclient.KindTimeout:
		out.Kind = HTTPTimeout
	case httpclient.KindConnection:
		out.Kind = HTTPConnectionFailed
	case httpclient.KindTLS:
		out.Kind = HTTPTLSError
	default:
		out.Kind = HTTPBadResponse
	}
	return out
}
