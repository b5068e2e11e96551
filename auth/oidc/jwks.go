package oidc

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/oidcrp/httpclient"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/observability"
)

// errUnknownKey means no key matches the token header.
var errUnknownKey = errors.New("oidc: no matching signing key")

// KeySet resolves the public key for a token header.
type KeySet interface {
	// Key returns the key for kid usable with alg. kid may be empty when the
	// set holds a single compatible key.
	Key(ctx context.Context, kid, alg string) (crypto.PublicKey, error)
}

type signingKey struct {
	kid string
	alg string
	key crypto.PublicKey
}

// compatible reports whether k can verify alg.
func (k signingKey) compatible(alg string) bool {
	if k.alg != "" && k.alg != alg {
		return false
	}
	switch pub := k.key.(type) {
	case *rsa.PublicKey:
		return strings.HasPrefix(alg, "RS") || strings.HasPrefix(alg, "PS")
	case *ecdsa.PublicKey:
		switch alg {
		case "ES256":
			return pub.Curve == elliptic.P256()
		case "ES384":
			return pub.Curve == elliptic.P384()
		case "ES512":
			return pub.Curve == elliptic.P521()
		}
	}
	return false
}

func pickKey(keys []signingKey, kid, alg string) crypto.PublicKey {
	var match *signingKey
	for i := range keys {
		k := &keys[i]
		if !k.compatible(alg) {
			continue
		}
		if kid != "" {
			if k.kid == kid {
				return k.key
			}
			continue
		}
		if match != nil {
			return nil
		}
		match = k
	}
	if match == nil {
		return nil
	}
	return match.key
}

// StaticKeySet serves keys configured up front.
type StaticKeySet struct {
	keys []signingKey
}

// NewStaticKeySet creates a key set from kid → key. Use "" as the kid for a
// provider that omits it.
func NewStaticKeySet(keys map[string]crypto.PublicKey) *StaticKeySet {
	s := &StaticKeySet{}
	for kid, key := range keys {
		s.keys = append(s.keys, signingKey{kid: kid, key: key})
	}
	return s
}

func (s *StaticKeySet) Key(_ context.Context, kid, alg string) (crypto.PublicKey, error) {
	if k := pickKey(s.keys, kid, alg); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("%w: kid %q", errUnknownKey, kid)
}

const (
	defaultJWKSCacheTTL   = time.Hour
	defaultJWKSMinRefresh = 30 * time.Second
)

// RemoteKeySet fetches and caches a provider's JWKS document. Concurrent
// refreshes collapse into one request. An unknown kid forces one refresh,
// at most once per min refresh interval.
type RemoteKeySet struct {
	uri        string
	http       *httpclient.Client
	ttl        time.Duration
	minRefresh time.Duration
	provider   string
	metrics    *observability.AuthMetrics
	log        *logger.Logger
	now        func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	keys       []signingKey
	fetchedAt  time.Time
	lastForced time.Time
}

// RemoteKeySetOption configures a RemoteKeySet.
type RemoteKeySetOption func(*RemoteKeySet)

// WithCacheTTL sets how long a fetched document is trusted.
func WithCacheTTL(d time.Duration) RemoteKeySetOption {
	return func(s *RemoteKeySet) { s.ttl = d }
}

// WithMinRefreshInterval bounds forced refreshes triggered by unknown kids.
func WithMinRefreshInterval(d time.Duration) RemoteKeySetOption {
	return func(s *RemoteKeySet) { s.minRefresh = d }
}

// WithKeySetMetrics records fetch results under provider.
func WithKeySetMetrics(provider string, m *observability.AuthMetrics) RemoteKeySetOption {
	return func(s *RemoteKeySet) {
		s.provider = provider
		s.metrics = m
	}
}

// WithKeySetLogger sets the logger.
func WithKeySetLogger(l *logger.Logger) RemoteKeySetOption {
	return func(s *RemoteKeySet) { s.log = l }
}

// NewRemoteKeySet creates a key set backed by uri. Nothing is fetched until
// the first Key call.
func NewRemoteKeySet(uri string, hc *httpclient.Client, opts ...RemoteKeySetOption) *RemoteKeySet {
	s := &RemoteKeySet{
		uri:        uri,
		http:       hc,
		ttl:        defaultJWKSCacheTTL,
		minRefresh: defaultJWKSMinRefresh,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *RemoteKeySet) Key(ctx context.Context, kid, alg string) (crypto.PublicKey, error) {
	s.mu.RLock()
	keys := s.keys
	fresh := keys != nil && s.now().Sub(s.fetchedAt) < s.ttl
	forceAllowed := s.lastForced.IsZero() || s.now().Sub(s.lastForced) >= s.minRefresh
	s.mu.RUnlock()

	if fresh {
		if k := pickKey(keys, kid, alg); k != nil {
			return k, nil
		}
		if !forceAllowed {
			return nil, fmt.Errorf("%w: kid %q", errUnknownKey, kid)
		}
		s.mu.Lock()
		s.lastForced = s.now()
		s.mu.Unlock()
	}

	keys, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if k := pickKey(keys, kid, alg); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("%w: kid %q", errUnknownKey, kid)
}

func (s *RemoteKeySet) refresh(ctx context.Context) ([]signingKey, error) {
	v, err, _ := s.group.Do("jwks", func() (any, error) {
		keys, err := s.fetch(ctx)
		s.metrics.JWKSFetch(ctx, s.provider, err == nil)
		if err != nil {
			s.log.WithContext(ctx).Error("jwks fetch failed", logger.ErrorFields("jwks", err))
			return nil, err
		}
		s.mu.Lock()
		s.keys = keys
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]signingKey), nil
}

type jwksDocument struct {
	Keys []jsonWebKey `json:"keys"`
}

func (s *RemoteKeySet) fetch(ctx context.Context) (_ []signingKey, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanJWKSFetch)
	defer func() { observability.EndSpan(span, err) }()

	resp, err := s.http.Do(ctx, httpclient.Request{URL: s.uri})
	if err != nil {
		if herr, ok := httpclient.As(err); ok {
			return nil, transportError("jwks", herr)
		}
		return nil, &HTTPError{Kind: HTTPConnectionFailed, Op: "jwks", Err: err}
	}
	var doc jwksDocument
	if err := resp.DecodeJSON(&doc); err != nil {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "jwks", StatusCode: resp.StatusCode, Err: err}
	}

	keys := make([]signingKey, 0, len(doc.Keys))
	for i := range doc.Keys {
		jwk := &doc.Keys[i]
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		pub, err := jwk.publicKey()
		if err != nil {
			s.log.Debug("skipping unusable jwk", logger.Fields("kid", jwk.Kid, logger.FieldError, err.Error()))
			continue
		}
		keys = append(keys, signingKey{kid: jwk.Kid, alg: jwk.Alg, key: pub})
	}
	if len(keys) == 0 {
		return nil, &HTTPError{Kind: HTTPBadResponse, Op: "jwks", StatusCode: resp.StatusCode, Err: errors.New("no usable signing keys")}
	}
	return keys, nil
}

// jsonWebKey is the subset of RFC 7517 needed for RSA and EC signature keys.
type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (k *jsonWebKey) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaKey()
	case "EC":
		return k.ecKey()
	default:
		return nil, fmt.Errorf("unsupported kty %q", k.Kty)
	}
}

func (k *jsonWebKey) rsaKey() (*rsa.PublicKey, error) {
	n, err := decodeBigInt(k.N)
	if err != nil {
		return nil, fmt.Errorf("rsa modulus: %w", err)
	}
	e, err := decodeBigInt(k.E)
	if err != nil {
		return nil, fmt.Errorf("rsa exponent: %w", err)
	}
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, errors.New("rsa exponent out of range")
	}
	if n.BitLen() < 2048 {
		return nil, fmt.Errorf("rsa modulus too short: %d bits", n.BitLen())
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func (k *jsonWebKey) ecKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}
	x, err := decodeBigInt(k.X)
	if err != nil {
		return nil, fmt.Errorf("ec x: %w", err)
	}
	y, err := decodeBigInt(k.Y)
	if err != nil {
		return nil, fmt.Errorf("ec y: %w", err)
	}
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("ec point not on curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty value")
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
