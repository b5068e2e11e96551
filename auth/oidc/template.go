package oidc

import (
	"strings"
)

// renderTemplate substitutes {claim} placeholders in tpl. A placeholder whose
// claim is absent fails the whole render. Text outside braces is literal; an
// unmatched "{" is kept as is.
func renderTemplate(tpl string, claims Claims) (string, error) {
	var b strings.Builder
	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		name := strings.TrimSpace(rest[open+1 : open+end])
		if name == "" {
			b.WriteString("{}")
		} else {
			v, ok := claims.String(name)
			if !ok {
				return "", &PolicyError{Reason: ReasonTemplateError, Claim: name}
			}
			b.WriteString(v)
		}
		rest = rest[open+end+1:]
	}
	return strings.TrimSpace(b.String()), nil
}

// templateClaims lists the claim names a template refers to.
func templateClaims(tpl string) []string {
	var names []string
	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return names
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return names
		}
		if name := strings.TrimSpace(rest[open+1 : open+end]); name != "" {
			names = append(names, name)
		}
		rest = rest[open+end+1:]
	}
}
