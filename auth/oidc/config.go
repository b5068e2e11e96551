package oidc

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/kbukum/oidcrp/errors"
	"github.com/kbukum/oidcrp/httpclient"
	"github.com/kbukum/oidcrp/resilience"
	"github.com/kbukum/oidcrp/security"
	"github.com/kbukum/oidcrp/validation"
)

const (
	defaultScope             = "openid email profile"
	defaultStateTTL          = 3 * time.Minute
	defaultHTTPTimeout       = 5 * time.Second
	defaultIdentityKey       = "email"
	defaultNicknameKey       = "preferred_username"
	defaultDisplayNameFormat = "{name}"
	defaultEmailFormat       = "{email}"
	defaultRefreshMargin     = 60 * time.Second
	defaultClockSkew         = 60 * time.Second
	maxClockSkew             = 5 * time.Minute
)

// UserInfoMode controls when the UserInfo endpoint is called.
type UserInfoMode string

const (
	// UserInfoNever relies on ID token claims only.
	UserInfoNever UserInfoMode = "never"
	// UserInfoAlways merges UserInfo claims on every login.
	UserInfoAlways UserInfoMode = "always"
	// UserInfoFallback calls UserInfo only when the ID token lacks a claim the
	// identity policy needs.
	UserInfoFallback UserInfoMode = "fallback"
)

// Token endpoint client authentication methods.
const (
	AuthMethodSecretBasic = "client_secret_basic"
	AuthMethodSecretPost  = "client_secret_post"
	AuthMethodNone        = "none"
)

// Endpoints are the provider URLs. Unset endpoints are filled by discovery.
type Endpoints struct {
	Authorize  string `yaml:"authorize" mapstructure:"authorize" validate:"omitempty,url"`
	Token      string `yaml:"token" mapstructure:"token" validate:"omitempty,url"`
	UserInfo   string `yaml:"userinfo" mapstructure:"userinfo" validate:"omitempty,url"`
	EndSession string `yaml:"end_session" mapstructure:"end_session" validate:"omitempty,url"`
	JWKS       string `yaml:"jwks" mapstructure:"jwks" validate:"omitempty,url"`
}

// ClientConfig configures one relying party. Treat it as read-only once
// passed to New.
type ClientConfig struct {
	ClientID     string    `yaml:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret string    `yaml:"client_secret" mapstructure:"client_secret"`
	Scope        string    `yaml:"scope" mapstructure:"scope"`
	Endpoints    Endpoints `yaml:"endpoints" mapstructure:"endpoints"`
	Issuer       string    `yaml:"issuer" mapstructure:"issuer" validate:"required,url"`
	RedirectURI  string    `yaml:"redirect_uri" mapstructure:"redirect_uri" validate:"required,url"`
	// TokenEndpointAuthMethod is filled from discovery when unset and falls
	// back to client_secret_post.
	TokenEndpointAuthMethod string `yaml:"token_endpoint_auth_method" mapstructure:"token_endpoint_auth_method" validate:"omitempty,oneof=client_secret_basic client_secret_post none"`

	StateTTL    time.Duration `yaml:"state_ttl" mapstructure:"state_ttl" validate:"gt=0"`
	HTTPTimeout time.Duration `yaml:"http_timeout" mapstructure:"http_timeout" validate:"gt=0"`
	// VerifyTLS defaults to true. Setting it false is the only way to skip
	// certificate verification.
	VerifyTLS *bool  `yaml:"verify_tls" mapstructure:"verify_tls"`
	CAFile    string `yaml:"ca_file" mapstructure:"ca_file"`

	IdentityKey          string `yaml:"identity_key" mapstructure:"identity_key" validate:"required"`
	NicknameKey          string `yaml:"nickname_key" mapstructure:"nickname_key"`
	DisplayNameFormat    string `yaml:"display_name_format" mapstructure:"display_name_format"`
	EmailFormat          string `yaml:"email_format" mapstructure:"email_format"`
	CreateIfDoesNotExist bool   `yaml:"create_if_does_not_exist" mapstructure:"create_if_does_not_exist"`
	LinkExistingUsers    bool   `yaml:"link_existing_users" mapstructure:"link_existing_users"`
	// EnforcePrivacy asks the host to require a session on every page.
	EnforcePrivacy bool `yaml:"enforce_privacy" mapstructure:"enforce_privacy"`

	UsePKCE *bool `yaml:"use_pkce" mapstructure:"use_pkce"`
	// RefreshMargin and ClockSkew default to 60s when unset; an explicit 0
	// disables them.
	RefreshMargin        *time.Duration `yaml:"refresh_margin" mapstructure:"refresh_margin" validate:"omitempty,gte=0"`
	ClockSkew            *time.Duration `yaml:"clock_skew" mapstructure:"clock_skew" validate:"omitempty,gte=0"`
	SupportedSigningAlgs []string       `yaml:"supported_signing_algs" mapstructure:"supported_signing_algs" validate:"dive,oneof=RS256 RS384 RS512 PS256 PS384 PS512 ES256 ES384 ES512"`
	UserInfoMode         UserInfoMode   `yaml:"userinfo_mode" mapstructure:"userinfo_mode" validate:"oneof=never always fallback"`
	Discovery            bool           `yaml:"discovery" mapstructure:"discovery"`
	// AuthParams are added verbatim to every authorize URL, e.g. prompt or acr_values.
	AuthParams map[string]string `yaml:"auth_params" mapstructure:"auth_params"`
	// RefreshRetry bounds retries of transport failures during refresh.
	RefreshRetry resilience.RetryConfig `yaml:"refresh_retry" mapstructure:"refresh_retry"`
}

// reservedAuthParams cannot be overridden through AuthParams.
var reservedAuthParams = []string{
	"response_type", "client_id", "redirect_uri", "scope", "state", "nonce",
	"code_challenge", "code_challenge_method",
}

// ApplyDefaults fills unset fields.
func (c *ClientConfig) ApplyDefaults() {
	if c.Scope == "" {
		c.Scope = defaultScope
	}
	if c.StateTTL <= 0 {
		c.StateTTL = defaultStateTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.VerifyTLS == nil {
		c.VerifyTLS = boolPtr(true)
	}
	if c.IdentityKey == "" {
		c.IdentityKey = defaultIdentityKey
	}
	if c.NicknameKey == "" {
		c.NicknameKey = defaultNicknameKey
	}
	if c.DisplayNameFormat == "" {
		c.DisplayNameFormat = defaultDisplayNameFormat
	}
	if c.EmailFormat == "" {
		c.EmailFormat = defaultEmailFormat
	}
	if c.UsePKCE == nil {
		c.UsePKCE = boolPtr(true)
	}
	if c.RefreshMargin == nil {
		c.RefreshMargin = durationPtr(defaultRefreshMargin)
	}
	if c.ClockSkew == nil {
		c.ClockSkew = durationPtr(defaultClockSkew)
	}
	if len(c.SupportedSigningAlgs) == 0 {
		c.SupportedSigningAlgs = []string{"RS256"}
	}
	if c.UserInfoMode == "" {
		c.UserInfoMode = UserInfoFallback
	}
	c.RefreshRetry.ApplyDefaults()
	c.Issuer = strings.TrimSuffix(c.Issuer, "/")
}

// Validate checks field constraints. Endpoints are only required after
// discovery had a chance to fill them; see validateEndpoints.
func (c *ClientConfig) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.ClockSkew != nil && *c.ClockSkew > maxClockSkew {
		return apperrors.ConfigError("clock_skew", "must not exceed "+maxClockSkew.String())
	}
	if !strings.Contains(" "+c.Scope+" ", " openid ") {
		return apperrors.ConfigError("scope", "must include openid")
	}
	for k := range c.AuthParams {
		if slices.Contains(reservedAuthParams, k) {
			return apperrors.ConfigError("auth_params", fmt.Sprintf("%q is set by the client and cannot be overridden", k))
		}
	}
	if c.CAFile != "" {
		if err := c.tlsConfig().Validate(); err != nil {
			return apperrors.ConfigError("ca_file", err.Error())
		}
	}
	if !c.Discovery {
		return c.validateEndpoints()
	}
	return nil
}

func (c *ClientConfig) validateEndpoints() error {
	if c.Endpoints.Authorize == "" {
		return apperrors.ConfigError("endpoints.authorize", "is required")
	}
	if c.Endpoints.Token == "" {
		return apperrors.ConfigError("endpoints.token", "is required")
	}
	return nil
}

// TLSVerified reports whether certificates are verified.
func (c *ClientConfig) TLSVerified() bool {
	return c.VerifyTLS == nil || *c.VerifyTLS
}

// PKCEEnabled reports whether authorization requests carry a code challenge.
func (c *ClientConfig) PKCEEnabled() bool {
	return c.UsePKCE == nil || *c.UsePKCE
}

func (c *ClientConfig) tlsConfig() *security.TLSConfig {
	if c.TLSVerified() && c.CAFile == "" {
		return nil
	}
	return &security.TLSConfig{SkipVerify: !c.TLSVerified(), CAFile: c.CAFile}
}

// HTTPClientConfig derives the outbound client settings. Retries are left to
// the callers that want them.
func (c *ClientConfig) HTTPClientConfig() httpclient.Config {
	return httpclient.Config{
		Timeout: c.HTTPTimeout,
		TLS:     c.tlsConfig(),
	}
}

func boolPtr(b bool) *bool { return &b }

func durationPtr(d time.Duration) *time.Duration { return &d }

func durationOr(d *time.Duration, def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return *d
}

// legacyKeys maps flat settings from older deployments onto the nested layout.
var legacyKeys = map[string]string{
	"login_endpoint_url":     "endpoints.authorize",
	"endpoint_login":         "endpoints.authorize",
	"token_endpoint_url":     "endpoints.token",
	"endpoint_token":         "endpoints.token",
	"userinfo_endpoint_url":  "endpoints.userinfo",
	"endpoint_userinfo":      "endpoints.userinfo",
	"endpoint_end_session":   "endpoints.end_session",
	"end_session_endpoint":   "endpoints.end_session",
	"endpoint_jwks":          "endpoints.jwks",
	"jwks_uri":               "endpoints.jwks",
	"displayname_format":     "display_name_format",
	"alternate_redirect_uri": "redirect_uri",
}

// legacySeconds were integer seconds and become durations.
var legacySeconds = map[string]string{
	"state_time_limit":     "state_ttl",
	"http_request_timeout": "http_timeout",
}

// legacyDropped only affected the old admin UI.
var legacyDropped = []string{"login_type", "enable_logging", "log_limit", "redirect_user_back", "redirect_on_logout", "token_refresh_enable", "identify_with_username"}

// MigrateLegacy rewrites an old flat settings map into the current key
// layout. It returns the migrated map and the legacy keys it rewrote or
// dropped. Current keys win over legacy ones when both are present.
func MigrateLegacy(raw map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(raw))
	endpoints := map[string]any{}
	if existing, ok := raw["endpoints"].(map[string]any); ok {
		for k, v := range existing {
			endpoints[k] = v
		}
	}
	var touched []string

	set := func(target string, v any) {
		if sub, ok := strings.CutPrefix(target, "endpoints."); ok {
			if _, exists := endpoints[sub]; !exists {
				endpoints[sub] = v
			}
			return
		}
		if _, exists := raw[target]; !exists {
			out[target] = v
		}
	}

	for k, v := range raw {
		switch {
		case k == "endpoints":
		case legacyKeys[k] != "":
			set(legacyKeys[k], v)
			touched = append(touched, k)
		case legacySeconds[k] != "":
			if secs, ok := toInt(v); ok {
				set(legacySeconds[k], (time.Duration(secs) * time.Second).String())
			}
			touched = append(touched, k)
		case k == "no_sslverify":
			if b, ok := toBool(v); ok {
				set("verify_tls", !b)
			}
			touched = append(touched, k)
		case k == "acr_values":
			params, _ := out["auth_params"].(map[string]any)
			if params == nil {
				params = map[string]any{}
				if existing, ok := raw["auth_params"].(map[string]any); ok {
					for pk, pv := range existing {
						params[pk] = pv
					}
				}
				out["auth_params"] = params
			}
			if _, exists := params["acr_values"]; !exists && v != "" {
				params["acr_values"] = v
			}
			touched = append(touched, k)
		case slices.Contains(legacyDropped, k):
			touched = append(touched, k)
		default:
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	if len(endpoints) > 0 {
		out["endpoints"] = endpoints
	}
	slices.Sort(touched)
	return out, touched
}

// DecodeClientConfig migrates raw, decodes it into a ClientConfig and
// applies defaults. It does not validate.
func DecodeClientConfig(raw map[string]any) (*ClientConfig, []string, error) {
	migrated, touched := MigrateLegacy(raw)
	v := viper.New()
	if err := v.MergeConfigMap(migrated); err != nil {
		return nil, touched, apperrors.ConfigError("config", err.Error())
	}
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, touched, apperrors.ConfigError("config", err.Error())
	}
	cfg.ApplyDefaults()
	return &cfg, touched, nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case int:
		return b != 0, true
	case float64:
		return b != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "on":
			return true, true
		case "", "0", "false", "no", "off":
			return false, true
		}
	}
	return false, false
}
