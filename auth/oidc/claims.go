package oidc

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Claims is a decoded claim set.
type Claims map[string]any

// Lookup finds a claim by name. A name that is not a top-level key is
// tried as a dotted path through nested objects, e.g. "address.country".
func (c Claims) Lookup(name string) (any, bool) {
	if v, ok := c[name]; ok {
		return v, v != nil
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	var cur any = map[string]any(c)
	for _, part := range strings.Split(name, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns a scalar claim as text. Empty strings, objects and arrays
// count as absent.
func (c Claims) String(name string) (string, bool) {
	v, ok := c.Lookup(name)
	if !ok {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Clone returns a deep copy of the nested objects and arrays.
func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Claims:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Claims:
		return t, true
	}
	return nil, false
}

// Merge overlays userinfo onto idToken. Keys present in both take the
// userinfo value; everything else is kept. The userinfo sub must match.
func Merge(idToken, userinfo Claims) (Claims, error) {
	idSub, _ := idToken.String("sub")
	uiSub, _ := userinfo.String("sub")
	if uiSub != idSub {
		return nil, rejected(ReasonSubjectMismatch, "userinfo subject does not match id token", nil)
	}
	out := idToken.Clone()
	maps.Copy(out, userinfo.Clone())
	return out, nil
}

// IDTokenClaims are the verified claims of an ID token.
type IDTokenClaims struct {
	Issuer          string
	Subject         string
	Audience        []string
	AuthorizedParty string
	ExpiresAt       time.Time
	IssuedAt        time.Time
	Nonce           string
	Email           string
	Name            string

	raw Claims
}

// Raw returns a copy of every claim in the token.
func (c *IDTokenClaims) Raw() Claims {
	return c.raw.Clone()
}

// Extra returns a claim that has no dedicated field.
func (c *IDTokenClaims) Extra(name string) (any, bool) {
	return c.raw.Lookup(name)
}
