package oidc

import "context"

// Host is the application side of the flow: account storage and token
// persistence. Implementations must be safe for concurrent use.
type Host interface {
	// FindLocalIdentity returns nil, nil when no account matches.
	FindLocalIdentity(ctx context.Context, subjectIdentity string) (*LocalIdentity, error)
	// CreateLocalIdentity creates an account bound to id.Subject.
	CreateLocalIdentity(ctx context.Context, id *ResolvedIdentity) (LocalRef, error)
	// UpdateLocalIdentity binds ref to id.Subject and refreshes its profile.
	UpdateLocalIdentity(ctx context.Context, ref LocalRef, id *ResolvedIdentity) error
	StoreTokens(ctx context.Context, ref LocalRef, tokens *TokenResponse) error
	// LoadTokens returns nil, nil when ref has no stored tokens.
	LoadTokens(ctx context.Context, ref LocalRef) (*TokenResponse, error)
}

// IdentityRemover is implemented by hosts that can undo a creation. Complete
// uses it to roll back when storing tokens for a new account fails.
type IdentityRemover interface {
	DeleteLocalIdentity(ctx context.Context, ref LocalRef) error
}
