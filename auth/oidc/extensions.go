package oidc

import (
	"context"
	"net/url"
)

// ClaimTransformer rewrites merged claims before identity resolution.
type ClaimTransformer interface {
	TransformClaims(ctx context.Context, claims Claims) (Claims, error)
}

// ClaimTransformerFunc adapts a function to ClaimTransformer.
type ClaimTransformerFunc func(ctx context.Context, claims Claims) (Claims, error)

func (f ClaimTransformerFunc) TransformClaims(ctx context.Context, claims Claims) (Claims, error) {
	return f(ctx, claims)
}

// URLDecorator adjusts the authorize URL before the redirect is issued.
// It must not remove state, nonce or the PKCE challenge.
type URLDecorator interface {
	DecorateAuthorizeURL(ctx context.Context, u *url.URL) error
}

// URLDecoratorFunc adapts a function to URLDecorator.
type URLDecoratorFunc func(ctx context.Context, u *url.URL) error

func (f URLDecoratorFunc) DecorateAuthorizeURL(ctx context.Context, u *url.URL) error {
	return f(ctx, u)
}
