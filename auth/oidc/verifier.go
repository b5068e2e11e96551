package oidc

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/oidcrp/logger"
)

// VerifierConfig configures ID token verification.
type VerifierConfig struct {
	Issuer   string
	ClientID string
	// SupportedSigningAlgs defaults to RS256. "none" is never accepted.
	SupportedSigningAlgs []string
	ClockSkew            time.Duration
	Now                  func() time.Time
}

// Verifier checks ID token signatures and claims.
type Verifier struct {
	cfg    VerifierConfig
	keys   KeySet
	parser *jwt.Parser
	log    *logger.Logger
}

// NewVerifier creates a verifier that resolves keys through keys.
func NewVerifier(cfg VerifierConfig, keys KeySet, log *logger.Logger) *Verifier {
	if len(cfg.SupportedSigningAlgs) == 0 {
		cfg.SupportedSigningAlgs = []string{"RS256"}
	}
	algs := make([]string, 0, len(cfg.SupportedSigningAlgs))
	for _, a := range cfg.SupportedSigningAlgs {
		if a != "none" && a != "" {
			algs = append(algs, a)
		}
	}
	cfg.SupportedSigningAlgs = algs
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Verifier{
		cfg:  cfg,
		keys: keys,
		log:  log,
		parser: jwt.NewParser(
			jwt.WithValidMethods(algs),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.ClientID),
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}
}

// Verify validates raw and checks its nonce against expectedNonce.
func (v *Verifier) Verify(ctx context.Context, raw, expectedNonce string) (*IDTokenClaims, error) {
	claims, err := v.verify(ctx, raw, expectedNonce, true)
	if err != nil {
		v.logRejection(ctx, err)
	}
	return claims, err
}

// VerifyRefreshed validates an ID token returned by a refresh grant. Such
// tokens carry no nonce, so only signature and claims are checked.
func (v *Verifier) VerifyRefreshed(ctx context.Context, raw string) (*IDTokenClaims, error) {
	claims, err := v.verify(ctx, raw, "", false)
	if err != nil {
		v.logRejection(ctx, err)
	}
	return claims, err
}

func (v *Verifier) verify(ctx context.Context, raw, expectedNonce string, checkNonce bool) (*IDTokenClaims, error) {
	mc := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, mc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid, t.Method.Alg())
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, rejected(ReasonMissingClaim, "sub", nil)
	}
	if _, ok := mc["iat"]; !ok {
		return nil, rejected(ReasonMissingClaim, "iat", nil)
	}

	aud, _ := mc.GetAudience()
	azp, _ := mc["azp"].(string)
	if (len(aud) > 1 || azp != "") && azp != v.cfg.ClientID {
		return nil, rejected(ReasonInvalidAudience, "azp does not match client_id", nil)
	}

	nonce, _ := mc["nonce"].(string)
	if checkNonce && (nonce == "" || subtle.ConstantTimeCompare([]byte(nonce), []byte(expectedNonce)) != 1) {
		return nil, rejected(ReasonNonceMismatch, "", nil)
	}

	out := &IDTokenClaims{
		Subject:         sub,
		Audience:        aud,
		AuthorizedParty: azp,
		Nonce:           nonce,
		raw:             Claims(mc),
	}
	out.Issuer, _ = mc.GetIssuer()
	if exp, _ := mc.GetExpirationTime(); exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, _ := mc.GetIssuedAt(); iat != nil {
		out.IssuedAt = iat.Time
	}
	out.Email, _ = mc["email"].(string)
	out.Name, _ = mc["name"].(string)
	return out, nil
}

// classifyParseError maps golang-jwt errors to a rejection reason. Transport
// failures while fetching keys are passed through unchanged.
func classifyParseError(err error) error {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return rejected(ReasonMalformed, "", err)
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return rejected(ReasonBadSignature, "", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return rejected(ReasonMissingClaim, "", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return rejected(ReasonExpired, "", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return rejected(ReasonInvalidIssuer, "", err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return rejected(ReasonInvalidAudience, "", err)
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return rejected(ReasonIssuedInFuture, "", err)
	default:
		return rejected(ReasonMalformed, "", err)
	}
}

func (v *Verifier) logRejection(ctx context.Context, err error) {
	fields := logger.Fields(logger.FieldError, err.Error())
	var tve *TokenValidationError
	if errors.As(err, &tve) {
		fields[logger.FieldReason] = string(tve.Reason)
	}
	v.log.WithContext(ctx).Error("id token rejected", fields)
}
