package oidc

import (
	"context"
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/kbukum/oidcrp/errors"
)

func defaultPolicy() Policy {
	cfg := ClientConfig{}
	cfg.ApplyDefaults()
	return PolicyFromConfig(&cfg)
}

func janeClaims() Claims {
	return Claims{"sub": "abc123", "email": "jane@example.com", "name": "Jane Doe"}
}

func TestResolve_CreateNewUser(t *testing.T) {
	p := defaultPolicy()
	p.CreateIfDoesNotExist = true

	id := Resolve(janeClaims(), p, nil)
	if id.Action != ActionCreate {
		t.Fatalf("expected CREATE, got %s (%s)", id.Action, id.Reason)
	}
	if id.SubjectIdentity != "jane@example.com" || id.DisplayName != "Jane Doe" || id.Email != "jane@example.com" {
		t.Errorf("unexpected identity %+v", id)
	}
	if id.Subject != "abc123" {
		t.Errorf("expected subject abc123, got %q", id.Subject)
	}
	if id.Nickname != "jane@example.com" {
		t.Errorf("expected nickname to fall back to the identity, got %q", id.Nickname)
	}
	if id.Err() != nil {
		t.Errorf("expected no error for CREATE, got %v", id.Err())
	}
}

func TestResolve_LoginBoundUser(t *testing.T) {
	p := defaultPolicy()
	p.LinkExistingUsers = true

	id := Resolve(janeClaims(), p, &LocalIdentity{Ref: "u1", Subject: "abc123"})
	if id.Action != ActionLogin || id.LocalRef != "u1" {
		t.Errorf("expected LOGIN u1, got %s %q", id.Action, id.LocalRef)
	}
}

func TestResolve_LinkingLogsInUnboundUser(t *testing.T) {
	p := defaultPolicy()
	p.LinkExistingUsers = true

	id := Resolve(Claims{"sub": "abc123", "email": "a@b.com"}, p, &LocalIdentity{Ref: "u1"})
	if id.Action != ActionLogin || id.LocalRef != "u1" {
		t.Fatalf("expected LOGIN u1, got %s %q", id.Action, id.LocalRef)
	}
	if !id.Bind {
		t.Error("expected the subject to be marked for binding")
	}
}

func TestResolve_DecisionTable(t *testing.T) {
	bound := &LocalIdentity{Ref: "u1", Subject: "abc123"}
	unbound := &LocalIdentity{Ref: "u1"}
	foreign := &LocalIdentity{Ref: "u1", Subject: "other-sub"}

	cases := []struct {
		name   string
		link   bool
		create bool
		found  *LocalIdentity
		action Action
		reason PolicyReason
		bind   bool
	}{
		{"bound, linking off", false, false, bound, ActionLogin, "", false},
		{"bound, linking on", true, false, bound, ActionLogin, "", false},
		{"unbound, linking on", true, false, unbound, ActionLogin, "", true},
		{"foreign subject, linking on", true, false, foreign, ActionLogin, "", true},
		{"unbound, linking off", false, true, unbound, ActionReject, ReasonUserNotFound, false},
		{"foreign subject, linking off", false, false, foreign, ActionReject, ReasonUserNotFound, false},
		{"absent, create on", false, true, nil, ActionCreate, "", false},
		{"absent, create off", true, false, nil, ActionReject, ReasonUserNotFound, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := defaultPolicy()
			p.LinkExistingUsers = tc.link
			p.CreateIfDoesNotExist = tc.create
			id := Resolve(janeClaims(), p, tc.found)
			if id.Action != tc.action || id.Reason != tc.reason {
				t.Errorf("expected %s/%s, got %s/%s", tc.action, tc.reason, id.Action, id.Reason)
			}
			if id.Bind != tc.bind {
				t.Errorf("expected bind=%v, got %v", tc.bind, id.Bind)
			}
			if id.Action == ActionReject && id.LocalRef != "" {
				t.Errorf("expected no local ref on REJECT, got %q", id.LocalRef)
			}
		})
	}
}

func TestResolve_MissingIdentityClaim(t *testing.T) {
	p := defaultPolicy()
	p.CreateIfDoesNotExist = true
	id := Resolve(Claims{"sub": "abc123", "name": "Jane"}, p, nil)
	if id.Action != ActionReject || id.Reason != ReasonMissingIdentityClaim {
		t.Fatalf("expected REJECT MissingIdentityClaim, got %s %s", id.Action, id.Reason)
	}
	appErr := apperrors.From(id.Err())
	if appErr.Code != apperrors.ErrCodeMissingIdentityClaim || appErr.Details["claim"] != "email" {
		t.Errorf("expected MISSING_IDENTITY_CLAIM for email, got %s %v", appErr.Code, appErr.Details)
	}
}

func TestResolve_TemplateMissingClaim(t *testing.T) {
	p := defaultPolicy()
	p.CreateIfDoesNotExist = true
	p.DisplayNameFormat = "{given_name} {family_name}"

	id := Resolve(janeClaims(), p, nil)
	if id.Action != ActionReject || id.Reason != ReasonTemplateError {
		t.Fatalf("expected REJECT TemplateError, got %s %s", id.Action, id.Reason)
	}
	var pe *PolicyError
	if !errors.As(id.Err(), &pe) || pe.Claim != "given_name" {
		t.Errorf("expected PolicyError for given_name, got %v", id.Err())
	}
}

func TestResolve_TemplatesAndNestedIdentity(t *testing.T) {
	p := defaultPolicy()
	p.CreateIfDoesNotExist = true
	p.IdentityKey = "ext.employee_id"
	p.NicknameKey = "preferred_username"
	p.DisplayNameFormat = "{given_name} {family_name} ({ext.employee_id})"
	p.EmailFormat = "{preferred_username}@corp.example.com"

	claims := Claims{
		"sub":                "abc123",
		"given_name":         "Jane",
		"family_name":        "Doe",
		"preferred_username": "jdoe",
		"ext":                map[string]any{"employee_id": float64(1042)},
	}
	id := Resolve(claims, p, nil)
	if id.Action != ActionCreate {
		t.Fatalf("expected CREATE, got %s %s", id.Action, id.Reason)
	}
	if id.SubjectIdentity != "1042" {
		t.Errorf("expected identity 1042, got %q", id.SubjectIdentity)
	}
	if id.DisplayName != "Jane Doe (1042)" {
		t.Errorf("expected display name %q, got %q", "Jane Doe (1042)", id.DisplayName)
	}
	if id.Email != "jdoe@corp.example.com" || id.Nickname != "jdoe" {
		t.Errorf("unexpected email/nickname %q / %q", id.Email, id.Nickname)
	}
}

func TestResolve_IsDeterministic(t *testing.T) {
	p := defaultPolicy()
	p.CreateIfDoesNotExist = true
	p.LinkExistingUsers = true
	for _, found := range []*LocalIdentity{nil, {Ref: "u1"}, {Ref: "u1", Subject: "abc123"}} {
		first := Resolve(janeClaims(), p, found)
		for i := 0; i < 5; i++ {
			if again := Resolve(janeClaims(), p, found); !reflect.DeepEqual(first, again) {
				t.Fatalf("expected identical results, got %+v and %+v", first, again)
			}
		}
	}
}

func TestResolveContext_LookupByIdentity(t *testing.T) {
	p := defaultPolicy()
	var asked string
	lookup := func(_ context.Context, identity string) (*LocalIdentity, error) {
		asked = identity
		return &LocalIdentity{Ref: "u1", Subject: "abc123"}, nil
	}
	id, err := ResolveContext(context.Background(), janeClaims(), p, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if asked != "jane@example.com" || id.Action != ActionLogin {
		t.Errorf("expected lookup by email and LOGIN, got %q %s", asked, id.Action)
	}

	boom := errors.New("db down")
	_, err = ResolveContext(context.Background(), janeClaims(), p, func(context.Context, string) (*LocalIdentity, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected lookup error, got %v", err)
	}
}

func TestRenderTemplate(t *testing.T) {
	claims := Claims{"name": "Jane", "email": "jane@example.com"}
	cases := map[string]string{
		"{name}":           "Jane",
		"Dr. {name}":       "Dr. Jane",
		"{name} <{email}>": "Jane <jane@example.com>",
		"no placeholders":  "no placeholders",
		"{}":               "{}",
		"open { brace":     "open { brace",
		"  {name}  ":       "Jane",
		"":                 "",
	}
	for tpl, want := range cases {
		got, err := renderTemplate(tpl, claims)
		if err != nil {
			t.Errorf("%q: unexpected error %v", tpl, err)
			continue
		}
		if got != want {
			t.Errorf("%q: expected %q, got %q", tpl, want, got)
		}
	}
}
