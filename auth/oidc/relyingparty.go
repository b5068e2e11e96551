package oidc

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/kbukum/oidcrp/errors"
	"github.com/kbukum/oidcrp/httpclient"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/observability"
)

// RelyingParty runs the authorization code flow against one provider.
type RelyingParty struct {
	name        string
	cfg         ClientConfig
	oauth       *oauth2.Config
	policy      Policy
	states      StateStore
	tokens      *TokenClient
	verifier    *Verifier
	sessions    *SessionManager
	host        Host
	transformer ClaimTransformer
	decorator   URLDecorator
	metrics     *observability.AuthMetrics
	log         *logger.Logger
	now         func() time.Time
}

// New validates cfg, runs discovery when enabled and wires the flow.
func New(ctx context.Context, cfg ClientConfig, opts ...Option) (*RelyingParty, error) {
	o := options{name: "default", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	log := o.log.WithComponent("oidc").WithFields(logger.Fields(logger.FieldProvider, o.name))

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := o.http
	if hc == nil {
		var err error
		if hc, err = httpclient.New(cfg.HTTPClientConfig()); err != nil {
			return nil, apperrors.ConfigError("http", err.Error())
		}
	}

	if cfg.Discovery {
		md, err := Discover(ctx, hc, cfg.Issuer)
		if err != nil {
			return nil, err
		}
		md.Apply(&cfg)
		if cfg.PKCEEnabled() && !md.SupportsPKCE() {
			log.Warn("provider does not advertise S256 PKCE", logger.Fields("methods", md.CodeChallengeMethods))
		}
	}
	if err := cfg.validateEndpoints(); err != nil {
		return nil, err
	}
	if cfg.TokenEndpointAuthMethod == "" {
		cfg.TokenEndpointAuthMethod = AuthMethodSecretPost
	}

	keys := o.keys
	if keys == nil {
		if cfg.Endpoints.JWKS == "" {
			return nil, apperrors.ConfigError("endpoints.jwks", "is required unless a key set is supplied")
		}
		keys = NewRemoteKeySet(cfg.Endpoints.JWKS, hc,
			WithKeySetMetrics(o.name, o.metrics),
			WithKeySetLogger(log),
		)
	}

	states := o.states
	if states == nil {
		states = NewMemoryStateStore(WithStoreClock(o.now), WithStoreLogger(log))
	}

	tokens := NewTokenClient(&cfg, hc, log)
	tokens.now = o.now
	verifier := NewVerifier(VerifierConfig{
		Issuer:               cfg.Issuer,
		ClientID:             cfg.ClientID,
		SupportedSigningAlgs: cfg.SupportedSigningAlgs,
		ClockSkew:            durationOr(cfg.ClockSkew, defaultClockSkew),
		Now:                  o.now,
	}, keys, log)

	rp := &RelyingParty{
		name: o.name,
		cfg:  cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: cfg.Endpoints.Authorize, TokenURL: cfg.Endpoints.Token},
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(cfg.Scope),
		},
		policy:      PolicyFromConfig(&cfg),
		states:      states,
		tokens:      tokens,
		verifier:    verifier,
		host:        o.host,
		transformer: o.transformer,
		decorator:   o.decorator,
		metrics:     o.metrics,
		log:         log,
		now:         o.now,
	}
	if o.host != nil {
		rp.sessions = &SessionManager{
			tokens:   tokens,
			store:    o.host,
			verifier: verifier,
			margin:   durationOr(cfg.RefreshMargin, defaultRefreshMargin),
			retry:    cfg.RefreshRetry,
			provider: o.name,
			metrics:  o.metrics,
			now:      o.now,
			log:      log,
		}
	}
	return rp, nil
}

// Name returns the relying party name.
func (rp *RelyingParty) Name() string { return rp.name }

// Config returns the effective configuration, including discovered endpoints.
func (rp *RelyingParty) Config() ClientConfig { return rp.cfg }

// States returns the state store, e.g. to run a Sweeper on it.
func (rp *RelyingParty) States() StateStore { return rp.states }

// BeginLogin issues a state and returns the provider authorize URL to
// redirect the user agent to.
func (rp *RelyingParty) BeginLogin(ctx context.Context, opts ...LoginOption) (_ string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanBeginLogin)
	defer func() { observability.EndSpan(span, err) }()

	var lo loginOptions
	for _, opt := range opts {
		opt(&lo)
	}
	if lo.returnTo != "" && !isLocalPath(lo.returnTo) {
		return "", apperrors.InvalidInput("return_to", "must be a local path")
	}

	issue := []IssueOption{WithStateProvider(rp.name)}
	if lo.returnTo != "" {
		issue = append(issue, WithStateReturnTo(lo.returnTo))
	}
	var verifier string
	if rp.cfg.PKCEEnabled() {
		verifier = oauth2.GenerateVerifier()
		issue = append(issue, WithCodeVerifier(verifier))
	}
	st, err := rp.states.Issue(ctx, rp.cfg.StateTTL, issue...)
	if err != nil {
		return "", err
	}

	params := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", st.Nonce)}
	if verifier != "" {
		params = append(params, oauth2.S256ChallengeOption(verifier))
	}
	for k, v := range rp.cfg.AuthParams {
		params = append(params, oauth2.SetAuthURLParam(k, v))
	}
	for k, v := range lo.params {
		if slices.Contains(reservedAuthParams, k) {
			continue
		}
		params = append(params, oauth2.SetAuthURLParam(k, v))
	}
	redirect := rp.oauth.AuthCodeURL(st.Value, params...)

	if rp.decorator != nil {
		u, err := url.Parse(redirect)
		if err != nil {
			return "", apperrors.Internal(err)
		}
		if err := rp.decorator.DecorateAuthorizeURL(ctx, u); err != nil {
			return "", err
		}
		q := u.Query()
		if q.Get("state") != st.Value || q.Get("nonce") != st.Nonce {
			return "", apperrors.ConfigError("url_decorator", "must keep state and nonce")
		}
		redirect = u.String()
	}

	rp.metrics.StateIssued(ctx, rp.name)
	rp.log.WithContext(ctx).Debug("login started", logger.Fields("state_ref", stateRef(st.Value), "pkce", verifier != ""))
	return redirect, nil
}

// HandleCallback validates the provider redirect and resolves the identity.
// A REJECT decision is returned as a ResolvedIdentity with a nil error; see
// ResolvedIdentity.Err. The state is consumed before the code is exchanged
// and stays consumed whatever happens next.
func (rp *RelyingParty) HandleCallback(ctx context.Context, query url.Values) (id *ResolvedIdentity, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanHandleCallback)
	start := time.Now()
	log := rp.log.WithContext(ctx)
	defer func() {
		observability.EndSpan(span, err)
		var label string
		if err != nil {
			label = outcome(err)
			log.Warn("callback failed", logger.Fields(
				logger.FieldStatus, label,
				logger.FieldError, err.Error(),
				logger.FieldDuration, time.Since(start).String(),
			))
		} else {
			label = string(id.Action)
			fields := logger.Fields(logger.FieldAction, label, logger.FieldSubject, id.Subject)
			if id.Reason != "" {
				fields[logger.FieldReason] = string(id.Reason)
			}
			log.Info("callback resolved", fields)
		}
		rp.metrics.Callback(ctx, rp.name, label)
	}()

	if code := query.Get("error"); code != "" {
		return nil, &OAuthError{
			Code:        code,
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
		}
	}
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		return nil, ErrStateNotFound
	}

	st, err := rp.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	// A shared store holds states of every provider.
	if st.Provider != "" && st.Provider != rp.name {
		log.Warn("state issued for another provider", logger.Fields("state_ref", stateRef(state), "issued_for", st.Provider))
		return nil, ErrStateNotFound
	}
	tokens, err := rp.tokens.Exchange(ctx, code, st.CodeVerifier)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == "" {
		return nil, rejected(ReasonMissingClaim, "id_token", nil)
	}
	idc, err := rp.verifier.Verify(ctx, tokens.IDToken, st.Nonce)
	if err != nil {
		return nil, err
	}

	claims := idc.Raw()
	if rp.wantUserInfo(claims) {
		info, err := rp.tokens.UserInfo(ctx, tokens.AccessToken)
		if err != nil {
			return nil, err
		}
		if claims, err = Merge(claims, info); err != nil {
			return nil, err
		}
	}
	if rp.transformer != nil {
		if claims, err = rp.transformer.TransformClaims(ctx, claims); err != nil {
			return nil, err
		}
	}

	var lookup LookupFunc
	if rp.host != nil {
		lookup = rp.host.FindLocalIdentity
	}
	id, err = ResolveContext(ctx, claims, rp.policy, lookup)
	if err != nil {
		return nil, err
	}
	id.ReturnTo = st.ReturnTo
	id.Provider = rp.name
	id.Tokens = tokens
	return id, nil
}

func (rp *RelyingParty) wantUserInfo(claims Claims) bool {
	if rp.cfg.Endpoints.UserInfo == "" {
		return false
	}
	switch rp.cfg.UserInfoMode {
	case UserInfoAlways:
		return true
	case UserInfoFallback:
		for _, name := range rp.policy.claimsNeeded() {
			if _, ok := claims.String(name); !ok {
				return true
			}
		}
	}
	return false
}

// Complete executes a resolved identity through the host and stores its
// tokens. A new account is removed again when its tokens cannot be stored
// and the host implements IdentityRemover.
func (rp *RelyingParty) Complete(ctx context.Context, id *ResolvedIdentity) (LocalRef, error) {
	if id == nil {
		return "", apperrors.InvalidInput("identity", "is nil")
	}
	if err := id.Err(); err != nil {
		return "", err
	}
	if rp.host == nil {
		return "", apperrors.ConfigError("host", "no host configured")
	}
	if id.Tokens == nil {
		return "", apperrors.InvalidInput("tokens", "resolved identity carries no tokens")
	}
	log := rp.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldAction, string(id.Action), logger.FieldSubject, id.Subject))

	switch id.Action {
	case ActionCreate:
		ref, err := rp.host.CreateLocalIdentity(ctx, id)
		if err != nil {
			return "", err
		}
		if err := rp.host.StoreTokens(ctx, ref, id.Tokens); err != nil {
			if remover, ok := rp.host.(IdentityRemover); ok {
				if rbErr := remover.DeleteLocalIdentity(ctx, ref); rbErr != nil {
					log.Error("rollback of created identity failed", logger.Fields(logger.FieldError, rbErr.Error()))
					return "", errors.Join(err, rbErr)
				}
			}
			return "", err
		}
		log.Info("local identity created", logger.Fields("local_ref", string(ref)))
		return ref, nil
	case ActionLogin, ActionLink:
		if err := rp.host.UpdateLocalIdentity(ctx, id.LocalRef, id); err != nil {
			return "", err
		}
		if err := rp.host.StoreTokens(ctx, id.LocalRef, id.Tokens); err != nil {
			return "", err
		}
		if id.Bind || id.Action == ActionLink {
			log.Info("local identity linked to subject", logger.Fields("local_ref", string(id.LocalRef)))
		}
		log.Info("local identity signed in", logger.Fields("local_ref", string(id.LocalRef)))
		return id.LocalRef, nil
	default:
		return "", apperrors.InvalidInput("action", "unknown action "+string(id.Action))
	}
}

// RefreshIfNeeded refreshes the stored tokens of ref when they are close to
// expiry and returns the tokens now in effect.
func (rp *RelyingParty) RefreshIfNeeded(ctx context.Context, ref LocalRef) (*TokenResponse, error) {
	if rp.sessions == nil {
		return nil, apperrors.ConfigError("host", "no host configured")
	}
	return rp.sessions.RefreshIfNeeded(ctx, ref)
}

// EndSessionURL builds the RP-initiated logout URL. Both arguments are
// optional.
func (rp *RelyingParty) EndSessionURL(idTokenHint, postLogoutRedirect string) (string, error) {
	if rp.cfg.Endpoints.EndSession == "" {
		return "", apperrors.ConfigError("endpoints.end_session", "is not configured")
	}
	u, err := url.Parse(rp.cfg.Endpoints.EndSession)
	if err != nil {
		return "", apperrors.ConfigError("endpoints.end_session", err.Error())
	}
	q := u.Query()
	q.Set("client_id", rp.cfg.ClientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// isLocalPath accepts "/path?query" and rejects anything that could leave
// the site, including scheme-relative "//host" forms.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
