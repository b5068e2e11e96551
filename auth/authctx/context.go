// Package authctx carries the signed-in principal through request contexts.
//
//	ctx = authctx.Set(ctx, &authctx.Principal{Ref: ref, Provider: "corp"})
//	p, ok := authctx.Get(ctx)
package authctx

import (
	"context"

	"github.com/kbukum/oidcrp/auth/oidc"
	apperrors "github.com/kbukum/oidcrp/errors"
)

type contextKey struct{}

var principalKey = contextKey{}

// Principal identifies the local account behind a request.
type Principal struct {
	Ref      oidc.LocalRef
	Provider string
	Subject  string
}

// Set stores p in ctx.
func Set(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Get returns the principal stored in ctx.
func Get(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// MustGet panics when ctx carries no principal. Use only behind
// middleware that guarantees one.
func MustGet(ctx context.Context) *Principal {
	p, ok := Get(ctx)
	if !ok {
		panic("authctx: no principal in context")
	}
	return p
}

// GetOrError returns an UNAUTHORIZED error when ctx carries no principal.
func GetOrError(ctx context.Context) (*Principal, error) {
	p, ok := Get(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("no session")
	}
	return p, nil
}
