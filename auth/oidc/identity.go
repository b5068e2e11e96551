package oidc

import (
	"context"
)

// Action is what the host must do with a resolved identity.
type Action string

const (
	ActionLogin  Action = "LOGIN"
	ActionCreate Action = "CREATE"
	// ActionLink is accepted by Complete for hosts that link explicitly.
	// Resolve reports linking as LOGIN with Bind set.
	ActionLink   Action = "LINK"
	ActionReject Action = "REJECT"
)

// LocalRef identifies a local account. Its format belongs to the host.
type LocalRef string

// LocalIdentity is a host account matched by the identity claim.
type LocalIdentity struct {
	Ref LocalRef
	// Subject is the provider subject the account is bound to, or empty.
	Subject string
}

// LookupFunc finds the local account for a subject identity. It returns
// nil, nil when there is none and must not write.
type LookupFunc func(ctx context.Context, subjectIdentity string) (*LocalIdentity, error)

// ResolvedIdentity is the outcome of a callback. It lives for one request.
type ResolvedIdentity struct {
	Action          Action
	Reason          PolicyReason
	SubjectIdentity string
	Subject         string
	DisplayName     string
	Email           string
	Nickname        string
	RawClaims       Claims
	// LocalRef is set for LOGIN and LINK.
	LocalRef LocalRef
	// Bind is set on LOGIN when the matched account is not yet bound to
	// Subject. UpdateLocalIdentity records the binding.
	Bind     bool
	ReturnTo string
	Provider string
	// Tokens are the verified token endpoint answer; Complete stores them.
	Tokens *TokenResponse `json:"-"`

	missingClaim string
}

// Err returns a *PolicyError for REJECT and nil otherwise.
func (r *ResolvedIdentity) Err() error {
	if r.Action != ActionReject {
		return nil
	}
	return &PolicyError{Reason: r.Reason, Claim: r.missingClaim}
}

// Policy is the identity part of ClientConfig.
type Policy struct {
	IdentityKey          string
	NicknameKey          string
	DisplayNameFormat    string
	EmailFormat          string
	CreateIfDoesNotExist bool
	LinkExistingUsers    bool
}

// PolicyFromConfig extracts the identity policy from cfg.
func PolicyFromConfig(cfg *ClientConfig) Policy {
	return Policy{
		IdentityKey:          cfg.IdentityKey,
		NicknameKey:          cfg.NicknameKey,
		DisplayNameFormat:    cfg.DisplayNameFormat,
		EmailFormat:          cfg.EmailFormat,
		CreateIfDoesNotExist: cfg.CreateIfDoesNotExist,
		LinkExistingUsers:    cfg.LinkExistingUsers,
	}
}

// claimsNeeded lists every claim the policy reads.
func (p Policy) claimsNeeded() []string {
	names := []string{p.IdentityKey}
	names = append(names, templateClaims(p.DisplayNameFormat)...)
	return append(names, templateClaims(p.EmailFormat)...)
}

// Resolve decides the action for claims given the host's lookup result.
// It is deterministic and performs no I/O. found is nil when the host has no
// account for the subject identity.
//
// A match by identity claim is trusted as is: whether the provider verified
// that claim (for example email_verified) is the provider's responsibility.
func Resolve(claims Claims, p Policy, found *LocalIdentity) *ResolvedIdentity {
	sub, _ := claims.String("sub")
	out := &ResolvedIdentity{Subject: sub, RawClaims: claims.Clone()}

	identity, ok := claims.String(p.IdentityKey)
	if !ok {
		return out.reject(ReasonMissingIdentityClaim, p.IdentityKey)
	}
	out.SubjectIdentity = identity

	switch {
	case found != nil && found.Subject != "" && found.Subject == sub:
		out.Action = ActionLogin
		out.LocalRef = found.Ref
	case found != nil && p.LinkExistingUsers:
		out.Action = ActionLogin
		out.LocalRef = found.Ref
		out.Bind = true
	case found != nil:
		return out.reject(ReasonUserNotFound, "")
	case p.CreateIfDoesNotExist:
		out.Action = ActionCreate
	default:
		return out.reject(ReasonUserNotFound, "")
	}

	var err error
	if out.DisplayName, err = renderTemplate(p.DisplayNameFormat, claims); err != nil {
		return out.rejectTemplate(err)
	}
	if out.Email, err = renderTemplate(p.EmailFormat, claims); err != nil {
		return out.rejectTemplate(err)
	}
	if nick, ok := claims.String(p.NicknameKey); ok {
		out.Nickname = nick
	} else {
		out.Nickname = identity
	}
	return out
}

// ResolveContext looks the identity claim up through lookup, then resolves.
// A nil lookup behaves as if no account exists.
func ResolveContext(ctx context.Context, claims Claims, p Policy, lookup LookupFunc) (*ResolvedIdentity, error) {
	identity, ok := claims.String(p.IdentityKey)
	if !ok || lookup == nil {
		return Resolve(claims, p, nil), nil
	}
	found, err := lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	return Resolve(claims, p, found), nil
}

func (r *ResolvedIdentity) reject(reason PolicyReason, claim string) *ResolvedIdentity {
	r.Action = ActionReject
	r.Reason = reason
	r.LocalRef = ""
	r.Bind = false
	r.missingClaim = claim
	return r
}

func (r *ResolvedIdentity) rejectTemplate(err error) *ResolvedIdentity {
	claim := ""
	if pe, ok := err.(*PolicyError); ok {
		claim = pe.Claim
	}
	r.DisplayName, r.Email = "", ""
	return r.reject(ReasonTemplateError, claim)
}
