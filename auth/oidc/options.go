package oidc

import (
	"time"

	"github.com/kbukum/oidcrp/httpclient"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/observability"
)

// Option configures a RelyingParty.
type Option func(*options)

type options struct {
	name        string
	states      StateStore
	host        Host
	log         *logger.Logger
	metrics     *observability.AuthMetrics
	now         func() time.Time
	http        *httpclient.Client
	keys        KeySet
	transformer ClaimTransformer
	decorator   URLDecorator
}

// WithName names the relying party in logs, metrics and states.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithStateStore replaces the default in-memory store.
func WithStateStore(s StateStore) Option { return func(o *options) { o.states = s } }

// WithHost sets the account and token storage.
func WithHost(h Host) Option { return func(o *options) { o.host = h } }

func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *observability.AuthMetrics) Option { return func(o *options) { o.metrics = m } }

// WithClock replaces time.Now for state expiry, token validation and refresh.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithHTTPClient replaces the client built from the config.
func WithHTTPClient(c *httpclient.Client) Option { return func(o *options) { o.http = c } }

// WithKeySet replaces the remote JWKS, e.g. with a StaticKeySet.
func WithKeySet(k KeySet) Option { return func(o *options) { o.keys = k } }

func WithClaimTransformer(t ClaimTransformer) Option {
	return func(o *options) { o.transformer = t }
}

func WithURLDecorator(d URLDecorator) Option {
	return func(o *options) { o.decorator = d }
}

// LoginOption customizes one authorization request.
type LoginOption func(*loginOptions)

type loginOptions struct {
	returnTo string
	params   map[string]string
}

// WithReturnTo records a local path to send the user to after login. Only
// relative paths are accepted.
func WithReturnTo(path string) LoginOption {
	return func(o *loginOptions) { o.returnTo = path }
}

// WithAuthParam adds a request-specific authorize parameter such as prompt
// or login_hint. Protocol parameters cannot be overridden.
func WithAuthParam(key, value string) LoginOption {
	return func(o *loginOptions) {
		if o.params == nil {
			o.params = map[string]string{}
		}
		o.params[key] = value
	}
}
