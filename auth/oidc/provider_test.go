package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testClientID = "rp-client"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// signingKeyForTests generates one RSA key per test binary.
func signingKeyForTests(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

// fakeProvider is an in-process OpenID provider.
type fakeProvider struct {
	t   *testing.T
	srv *httptest.Server
	key *rsa.PrivateKey
	kid string

	mu       sync.Mutex
	nonce    string
	extra    jwt.MapClaims
	userinfo map[string]any
	lastForm url.Values
	// lastBasic holds the basic auth credentials of the last token request.
	lastBasic [2]string
	// authMethods is advertised as token_endpoint_auth_methods_supported.
	authMethods []string
	// onToken overrides the token endpoint when set.
	onToken func(w http.ResponseWriter, form url.Values)

	jwksHits  atomic.Int32
	tokenHits atomic.Int32
	infoHits  atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{t: t, key: signingKeyForTests(t), kid: "key-1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/jwks", p.handleJWKS)
	mux.HandleFunc("/token", p.handleToken)
	mux.HandleFunc("/userinfo", p.handleUserInfo)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) issuer() string { return p.srv.URL }

func (p *fakeProvider) config() ClientConfig {
	return ClientConfig{
		ClientID:     testClientID,
		ClientSecret: "rp-secret",
		Issuer:       p.issuer(),
		RedirectURI:  "https://rp.example.com/oauth/callback",
		Endpoints: Endpoints{
			Authorize:  p.issuer() + "/authorize",
			Token:      p.issuer() + "/token",
			UserInfo:   p.issuer() + "/userinfo",
			EndSession: p.issuer() + "/logout",
			JWKS:       p.issuer() + "/jwks",
		},
	}
}

func (p *fakeProvider) setNonce(n string) {
	p.mu.Lock()
	p.nonce = n
	p.mu.Unlock()
}

func (p *fakeProvider) setExtra(c jwt.MapClaims) {
	p.mu.Lock()
	p.extra = c
	p.mu.Unlock()
}

func (p *fakeProvider) setUserInfo(c map[string]any) {
	p.mu.Lock()
	p.userinfo = c
	p.mu.Unlock()
}

func (p *fakeProvider) basicAuth() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastBasic[0], p.lastBasic[1]
}

func (p *fakeProvider) form() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm
}

// claims returns a valid claim set for nonce.
func (p *fakeProvider) claims(nonce string) jwt.MapClaims {
	now := time.Now()
	c := jwt.MapClaims{
		"iss":   p.issuer(),
		"aud":   testClientID,
		"sub":   "abc123",
		"email": "jane@example.com",
		"name":  "Jane Doe",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		c["nonce"] = nonce
	}
	return c
}

func (p *fakeProvider) sign(c jwt.MapClaims) string {
	p.t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = p.kid
	raw, err := tok.SignedString(p.key)
	if err != nil {
		p.t.Fatalf("sign: %v", err)
	}
	return raw
}

func (p *fakeProvider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	cfg := p.config()
	p.mu.Lock()
	methods := p.authMethods
	p.mu.Unlock()
	doc := map[string]any{
		"issuer":                                p.issuer(),
		"authorization_endpoint":                cfg.Endpoints.Authorize,
		"token_endpoint":                        cfg.Endpoints.Token,
		"userinfo_endpoint":                     cfg.Endpoints.UserInfo,
		"end_session_endpoint":                  cfg.Endpoints.EndSession,
		"jwks_uri":                              cfg.Endpoints.JWKS,
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
	}
	if methods != nil {
		doc["token_endpoint_auth_methods_supported"] = methods
	}
	writeJSON(w, http.StatusOK, doc)
}

func (p *fakeProvider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	p.jwksHits.Add(1)
	p.mu.Lock()
	kid := p.kid
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"keys": []any{rsaJWK(kid, &p.key.PublicKey)}})
}

func (p *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	p.tokenHits.Add(1)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}
	p.mu.Lock()
	p.lastForm = r.PostForm
	if user, pass, ok := r.BasicAuth(); ok {
		p.lastBasic = [2]string{user, pass}
	} else {
		p.lastBasic = [2]string{}
	}
	onToken, nonce, extra := p.onToken, p.nonce, p.extra
	p.mu.Unlock()
	if onToken != nil {
		onToken(w, r.PostForm)
		return
	}
	c := p.claims(nonce)
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"id_token":      p.sign(c),
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func (p *fakeProvider) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	p.infoHits.Add(1)
	if r.Header.Get("Authorization") != "Bearer at-1" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_token"})
		return
	}
	p.mu.Lock()
	info := p.userinfo
	p.mu.Unlock()
	if info == nil {
		info = map[string]any{"sub": "abc123"}
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func rsaJWK(kid string, pub *rsa.PublicKey) map[string]any {
	return map[string]any{
		"kty": "RSA",
		"kid": kid,
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// memHost is a Host backed by maps.
type memHost struct {
	mu        sync.Mutex
	bySubject map[string]*LocalIdentity // keyed by subject identity
	tokens    map[LocalRef]*TokenResponse
	created   []*ResolvedIdentity
	updated   []LocalRef
	deleted   []LocalRef
	failStore bool
}

func newMemHost() *memHost {
	return &memHost{bySubject: map[string]*LocalIdentity{}, tokens: map[LocalRef]*TokenResponse{}}
}

func (h *memHost) FindLocalIdentity(_ context.Context, subjectIdentity string) (*LocalIdentity, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if li, ok := h.bySubject[subjectIdentity]; ok {
		cp := *li
		return &cp, nil
	}
	return nil, nil
}

func (h *memHost) CreateLocalIdentity(_ context.Context, id *ResolvedIdentity) (LocalRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ref := LocalRef("user-" + id.SubjectIdentity)
	h.bySubject[id.SubjectIdentity] = &LocalIdentity{Ref: ref, Subject: id.Subject}
	h.created = append(h.created, id)
	return ref, nil
}

func (h *memHost) UpdateLocalIdentity(_ context.Context, ref LocalRef, id *ResolvedIdentity) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bySubject[id.SubjectIdentity] = &LocalIdentity{Ref: ref, Subject: id.Subject}
	h.updated = append(h.updated, ref)
	return nil
}

func (h *memHost) StoreTokens(_ context.Context, ref LocalRef, tokens *TokenResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failStore {
		return errStoreFailed
	}
	cp := *tokens
	h.tokens[ref] = &cp
	return nil
}

func (h *memHost) LoadTokens(_ context.Context, ref LocalRef) (*TokenResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tokens[ref]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (h *memHost) DeleteLocalIdentity(_ context.Context, ref LocalRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, li := range h.bySubject {
		if li.Ref == ref {
			delete(h.bySubject, k)
		}
	}
	h.deleted = append(h.deleted, ref)
	return nil
}

type testError string

func (e testError) Error() string { return string(e) }

const errStoreFailed = testError("store failed")

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
