// Package oidc implements the relying-party side of the OpenID Connect
// Authorization Code flow.
//
// A RelyingParty issues single-use state and nonce values, exchanges the
// authorization code at the token endpoint, verifies the ID token against
// the provider's keys, optionally merges UserInfo claims and resolves the
// result into an identity action (LOGIN, CREATE, LINK or REJECT) that the
// host application executes. Hosts plug in through the Host interface and
// never see half-validated tokens.
//
//	rp, err := oidc.New(ctx, cfg, oidc.WithHost(store))
//	redirect, err := rp.BeginLogin(ctx, oidc.WithReturnTo("/app"))
//	// ... provider redirects back ...
//	id, err := rp.HandleCallback(ctx, r.URL.Query())
//	ref, err := rp.Complete(ctx, id)
package oidc
