package oidc

import (
	"reflect"
	"testing"
	"time"

	apperrors "github.com/kbukum/oidcrp/errors"
)

func baseConfig() ClientConfig {
	return ClientConfig{
		ClientID:    "rp",
		Issuer:      "https://idp.example.com/",
		RedirectURI: "https://rp.example.com/cb",
		Endpoints: Endpoints{
			Authorize: "https://idp.example.com/authorize",
			Token:     "https://idp.example.com/token",
		},
	}
}

func TestClientConfig_Defaults(t *testing.T) {
	cfg := baseConfig()
	cfg.ApplyDefaults()

	if cfg.Scope != "openid email profile" {
		t.Errorf("expected default scope, got %q", cfg.Scope)
	}
	if cfg.StateTTL != 3*time.Minute || cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("unexpected ttl/timeout %v/%v", cfg.StateTTL, cfg.HTTPTimeout)
	}
	if !cfg.TLSVerified() || !cfg.PKCEEnabled() {
		t.Error("expected TLS verification and PKCE on by default")
	}
	if cfg.IdentityKey != "email" || cfg.NicknameKey != "preferred_username" {
		t.Errorf("unexpected identity/nickname keys %q/%q", cfg.IdentityKey, cfg.NicknameKey)
	}
	if cfg.DisplayNameFormat != "{name}" || cfg.EmailFormat != "{email}" {
		t.Errorf("unexpected formats %q/%q", cfg.DisplayNameFormat, cfg.EmailFormat)
	}
	if *cfg.ClockSkew != time.Minute || *cfg.RefreshMargin != time.Minute {
		t.Errorf("unexpected skew/margin %v/%v", *cfg.ClockSkew, *cfg.RefreshMargin)
	}
	if !reflect.DeepEqual(cfg.SupportedSigningAlgs, []string{"RS256"}) {
		t.Errorf("expected RS256, got %v", cfg.SupportedSigningAlgs)
	}
	if cfg.UserInfoMode != UserInfoFallback {
		t.Errorf("expected fallback userinfo mode, got %q", cfg.UserInfoMode)
	}
	if cfg.Issuer != "https://idp.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Issuer)
	}
	if cfg.HTTPClientConfig().TLS != nil {
		t.Error("expected no TLS override when verifying with system roots")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestClientConfig_Validate(t *testing.T) {
	cases := map[string]func(*ClientConfig){
		"missing client id":     func(c *ClientConfig) { c.ClientID = "" },
		"relative redirect":     func(c *ClientConfig) { c.RedirectURI = "/cb" },
		"missing token":         func(c *ClientConfig) { c.Endpoints.Token = "" },
		"skew too large":        func(c *ClientConfig) { c.ClockSkew = durationPtr(10 * time.Minute) },
		"negative margin":       func(c *ClientConfig) { c.RefreshMargin = durationPtr(-time.Second) },
		"alg none":              func(c *ClientConfig) { c.SupportedSigningAlgs = []string{"none"} },
		"unknown userinfo mode": func(c *ClientConfig) { c.UserInfoMode = "sometimes" },
		"scope without openid":  func(c *ClientConfig) { c.Scope = "email profile" },
		"reserved auth param":   func(c *ClientConfig) { c.AuthParams = map[string]string{"state": "x"} },
		"missing ca file":       func(c *ClientConfig) { c.CAFile = "/nonexistent/ca.pem" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.ApplyDefaults()
			mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if apperrors.From(err).Code != apperrors.ErrCodeConfig {
				t.Errorf("expected CONFIG_ERROR, got %s", apperrors.From(err).Code)
			}
		})
	}
}

func TestClientConfig_DiscoveryDefersEndpoints(t *testing.T) {
	cfg := baseConfig()
	cfg.Endpoints = Endpoints{}
	cfg.Discovery = true
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected endpoints to be optional with discovery, got %v", err)
	}
}

func TestClientConfig_ExplicitZeroDurations(t *testing.T) {
	cfg := baseConfig()
	cfg.RefreshMargin = durationPtr(0)
	cfg.ClockSkew = durationPtr(0)
	cfg.ApplyDefaults()
	if *cfg.RefreshMargin != 0 || *cfg.ClockSkew != 0 {
		t.Errorf("expected explicit zero to survive defaults, got %v/%v", *cfg.RefreshMargin, *cfg.ClockSkew)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected zero margin and skew to be valid, got %v", err)
	}

	decoded, _, err := DecodeClientConfig(map[string]any{
		"client_id":      "rp",
		"refresh_margin": "0s",
		"clock_skew":     "0s",
	})
	if err != nil {
		t.Fatalf("DecodeClientConfig: %v", err)
	}
	if *decoded.RefreshMargin != 0 || *decoded.ClockSkew != 0 {
		t.Errorf("expected decoded zero durations, got %v/%v", *decoded.RefreshMargin, *decoded.ClockSkew)
	}
}

func TestClientConfig_VerifyTLSOff(t *testing.T) {
	cfg := baseConfig()
	cfg.VerifyTLS = boolPtr(false)
	cfg.ApplyDefaults()
	tls := cfg.HTTPClientConfig().TLS
	if tls == nil || !tls.SkipVerify {
		t.Errorf("expected SkipVerify when verify_tls is false, got %+v", tls)
	}
}

func TestMigrateLegacy(t *testing.T) {
	raw := map[string]any{
		"client_id":            "rp",
		"endpoint_login":       "https://idp.example.com/authorize",
		"login_endpoint_url":   "https://ignored.example.com/authorize",
		"endpoint_token":       "https://idp.example.com/token",
		"no_sslverify":         "1",
		"http_request_timeout": 10,
		"state_time_limit":     "300",
		"displayname_format":   "{given_name}",
		"acr_values":           "urn:mfa",
		"enable_logging":       true,
		"identity_key":         "sub",
	}
	out, touched := MigrateLegacy(raw)

	endpoints, ok := out["endpoints"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested endpoints, got %T", out["endpoints"])
	}
	if endpoints["token"] != "https://idp.example.com/token" {
		t.Errorf("unexpected token endpoint %v", endpoints["token"])
	}
	if endpoints["authorize"] == nil {
		t.Error("expected authorize endpoint")
	}
	if out["verify_tls"] != false {
		t.Errorf("expected verify_tls=false, got %v", out["verify_tls"])
	}
	if out["http_timeout"] != "10s" || out["state_ttl"] != "5m0s" {
		t.Errorf("unexpected durations %v / %v", out["http_timeout"], out["state_ttl"])
	}
	if out["display_name_format"] != "{given_name}" {
		t.Errorf("unexpected display format %v", out["display_name_format"])
	}
	if params, _ := out["auth_params"].(map[string]any); params["acr_values"] != "urn:mfa" {
		t.Errorf("expected acr_values in auth_params, got %v", out["auth_params"])
	}
	if _, ok := out["enable_logging"]; ok {
		t.Error("expected UI-only key to be dropped")
	}
	if out["identity_key"] != "sub" {
		t.Error("expected current keys to pass through")
	}
	if len(touched) != 9 {
		t.Errorf("expected 9 migrated keys, got %v", touched)
	}
}

func TestMigrateLegacy_CurrentKeysWin(t *testing.T) {
	out, _ := MigrateLegacy(map[string]any{
		"verify_tls":     true,
		"no_sslverify":   true,
		"endpoints":      map[string]any{"token": "https://new.example.com/token"},
		"endpoint_token": "https://old.example.com/token",
	})
	if out["verify_tls"] != true {
		t.Errorf("expected verify_tls to keep its explicit value, got %v", out["verify_tls"])
	}
	if out["endpoints"].(map[string]any)["token"] != "https://new.example.com/token" {
		t.Errorf("expected nested endpoint to win, got %v", out["endpoints"])
	}
}

func TestDecodeClientConfig(t *testing.T) {
	cfg, touched, err := DecodeClientConfig(map[string]any{
		"client_id":           "rp",
		"issuer":              "https://idp.example.com",
		"redirect_uri":        "https://rp.example.com/cb",
		"endpoint_login":      "https://idp.example.com/authorize",
		"endpoint_token":      "https://idp.example.com/token",
		"no_sslverify":        0,
		"state_time_limit":    120,
		"link_existing_users": true,
	})
	if err != nil {
		t.Fatalf("DecodeClientConfig: %v", err)
	}
	if len(touched) != 4 {
		t.Errorf("expected 4 migrated keys, got %v", touched)
	}
	if cfg.Endpoints.Authorize != "https://idp.example.com/authorize" || cfg.StateTTL != 2*time.Minute {
		t.Errorf("unexpected decoded config %+v", cfg)
	}
	if !cfg.TLSVerified() || !cfg.LinkExistingUsers {
		t.Errorf("expected verify_tls and link_existing_users true, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected decoded config to validate, got %v", err)
	}
}
