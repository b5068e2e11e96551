// Package auth groups the relying parties of an application.
//
//   - auth/oidc     the OpenID Connect relying party: state, token exchange,
//     ID token validation, identity resolution and refresh
//   - auth/authctx  request context propagation of the signed-in principal
//
// The top-level package provides the Authenticator contract, a Config that
// holds several named providers, and a Registry built from it:
//
//	auth:
//	  default: corp
//	  state_store: redis
//	  providers:
//	    corp:
//	      client_id: rp-client
//	      issuer: https://idp.example.com
//	      redirect_uri: https://app.example.com/oauth/callback/corp
//	      discovery: true
//
//	reg, err := auth.Build(ctx, cfg.Auth, oidc.WithHost(store))
package auth
