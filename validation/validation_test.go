package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/oidcrp/errors"
)

type endpoints struct {
	Authorize string `mapstructure:"authorize" validate:"required,url"`
	Token     string `mapstructure:"token" validate:"required,url"`
}

type clientCfg struct {
	ClientID  string        `mapstructure:"client_id" validate:"required"`
	Mode      string        `mapstructure:"userinfo_mode" validate:"oneof=never always fallback"`
	StateTTL  time.Duration `mapstructure:"state_ttl" validate:"gt=0"`
	Endpoints endpoints     `mapstructure:"endpoints"`
}

func TestStruct_Valid(t *testing.T) {
	cfg := clientCfg{
		ClientID: "rp", Mode: "fallback", StateTTL: time.Minute,
		Endpoints: endpoints{Authorize: "https://idp/authorize", Token: "https://idp/token"},
	}
	if err := Struct(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_ReportsConfigPaths(t *testing.T) {
	cfg := clientCfg{Mode: "sometimes", Endpoints: endpoints{Authorize: "not a url"}}
	err := Struct(cfg)
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeConfig {
		t.Errorf("expected CONFIG_ERROR, got %s", appErr.Code)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		t.Fatalf("expected field details, got %T", appErr.Details["fields"])
	}
	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	for _, want := range []string{"client_id", "userinfo_mode", "state_ttl", "endpoints.authorize", "endpoints.token"} {
		if _, ok := got[want]; !ok {
			t.Errorf("expected error for %s, got %v", want, got)
		}
	}
	if !strings.Contains(got["endpoints.authorize"], "absolute URL") {
		t.Errorf("unexpected message %q", got["endpoints.authorize"])
	}
}
