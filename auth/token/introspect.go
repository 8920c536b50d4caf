package token

import (
	"encoding/json"
	"net/http"
)

// Introspection is the RFC 7662-flavored response IntrospectHandler
// writes: Active is always present, every other field is omitted when
// the token didn't validate.
type Introspection struct {
	Active      bool     `json:"active"`
	Subject     string   `json:"sub,omitempty"`
	Email       string   `json:"email,omitempty"`
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
	Issuer      string   `json:"iss,omitempty"`
	Audience    string   `json:"aud,omitempty"`
}

// IntrospectHandler decodes a JSON body {"token": "..."}, validates it
// with validator, and writes the Introspection result. An invalid or
// expired token is not an error: it introspects as
// Introspection{Active: false}, per RFC 7662. Generalizes the teacher's
// AuthHandler.IntrospectToken from a single provider-specific token
// service to any Validator.
func IntrospectHandler(validator Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		claims, err := validator.Validate(r.Context(), req.Token)
		resp := Introspection{Active: err == nil}
		if err == nil {
			resp.Subject = claims.Subject
			resp.Email = claims.Email
			resp.Username = claims.Username
			resp.Roles = claims.Roles
			resp.Permissions = claims.Permissions
			resp.ExpiresAt = claims.ExpiresAt
			resp.IssuedAt = claims.IssuedAt
			resp.Issuer = claims.Issuer
			resp.Audience = claims.Audience
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
