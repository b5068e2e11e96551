package host

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/oidcrp/auth/authctx"
	"github.com/kbukum/oidcrp/auth/oidc"
	"github.com/kbukum/oidcrp/encryption"
)

func TestStore_CreateDuplicateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	id := &oidc.ResolvedIdentity{Action: oidc.ActionCreate, Subject: "abc", SubjectIdentity: "jane@example.com", Provider: "corp"}

	ref, err := s.CreateLocalIdentity(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateLocalIdentity(ctx, id); err == nil {
		t.Error("expected a second account for the same identity to be refused")
	}
	if err := s.StoreTokens(ctx, ref, &oidc.TokenResponse{AccessToken: "at"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteLocalIdentity(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if li, _ := s.FindLocalIdentity(ctx, "jane@example.com"); li != nil {
		t.Errorf("expected identity to be gone, got %+v", li)
	}
	if tokens, _ := s.LoadTokens(ctx, ref); tokens != nil {
		t.Error("expected tokens to be removed with the account")
	}
	if err := s.StoreTokens(ctx, ref, &oidc.TokenResponse{}); err == nil {
		t.Error("expected storing tokens for a removed account to fail")
	}
}

func TestStore_LoadTokensReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	ref := s.AddAccount("jane@example.com", "Jane")
	if err := s.StoreTokens(ctx, ref, &oidc.TokenResponse{AccessToken: "at"}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.LoadTokens(ctx, ref)
	got.AccessToken = "changed"
	again, _ := s.LoadTokens(ctx, ref)
	if again.AccessToken != "at" {
		t.Errorf("expected stored tokens to be isolated, got %s", again.AccessToken)
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions(50 * time.Millisecond)
	id := s.Create(&authctx.Principal{Ref: "u1", Provider: "corp"})
	if p, ok := s.Get(id); !ok || p.Ref != "u1" {
		t.Fatalf("expected session, got %+v", p)
	}
	if _, ok := s.Get(""); ok {
		t.Error("expected empty id to miss")
	}
	time.Sleep(80 * time.Millisecond)
	if _, ok := s.Get(id); ok {
		t.Error("expected session to expire")
	}
}

func TestStore_SealedTokens(t *testing.T) {
	ctx := context.Background()
	sealer, err := encryption.NewSealer("a-test-key-of-sufficient-length")
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(nil, WithTokenSealer(sealer))
	ref := s.AddAccount("jane@example.com", "Jane")
	other := s.AddAccount("john@example.com", "John")
	if err := s.StoreTokens(ctx, ref, &oidc.TokenResponse{AccessToken: "at", RefreshToken: "rt-secret"}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(s.tokens[ref], "rt-secret") {
		t.Error("expected refresh token to be sealed")
	}
	got, err := s.LoadTokens(ctx, ref)
	if err != nil || got.RefreshToken != "rt-secret" {
		t.Fatalf("expected sealed tokens to open, got %+v (%v)", got, err)
	}

	// A box moved to another account does not open.
	s.tokens[other] = s.tokens[ref]
	if _, err := s.LoadTokens(ctx, other); !errors.Is(err, encryption.ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}
