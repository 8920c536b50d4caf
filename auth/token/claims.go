// Package token implements format-agnostic bearer-token validation:
// PASETO v4 (local and public purpose) and JWT (RS/ES/HS families)
// behind a single Validator interface, plus the Authorization-header
// middleware that extracts a Claims value onto the request context.
package token

import "strings"

// Claims is the format-agnostic claim set produced by any Validator.
type Claims struct {
	Subject     string
	Email       string
	Username    string
	Roles       []string
	Permissions []string
	ExpiresAt   int64
	IssuedAt    int64
	TokenID     string
	Issuer      string
	Audience    string
}

// HasRole reports whether the claim set carries the given role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the claim set carries the given permission.
func (c Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsUser reports whether the subject identifies a user principal.
func (c Claims) IsUser() bool {
	return strings.HasPrefix(c.Subject, "user:")
}

// IsClient reports whether the subject identifies a client principal.
func (c Claims) IsClient() bool {
	return strings.HasPrefix(c.Subject, "client:")
}

// UserID returns the user id if this is a user principal.
func (c Claims) UserID() (string, bool) {
	if !c.IsUser() {
		return "", false
	}
	return strings.TrimPrefix(c.Subject, "user:"), true
}

// ClientID returns the client id if this is a client principal.
func (c Claims) ClientID() (string, bool) {
	if !c.IsClient() {
		return "", false
	}
	return strings.TrimPrefix(c.Subject, "client:"), true
}
