package token

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aras-services/svccore/errors"
)

// JWTValidator validates RS/ES/HS-family JWTs per the configured
// algorithm and signing key, and enforces issuer/audience when set.
type JWTValidator struct {
	algorithm  string
	key        interface{} // *rsa.PublicKey, *ecdsa.PublicKey, or []byte for HMAC
	issuer     string
	audience   string
}

// NewJWTValidatorRSA constructs a validator for RS256/RS384/RS512 tokens.
func NewJWTValidatorRSA(algorithm string, publicKey *rsa.PublicKey, issuer, audience string) *JWTValidator {
	return &JWTValidator{algorithm: algorithm, key: publicKey, issuer: issuer, audience: audience}
}

// NewJWTValidatorECDSA constructs a validator for ES256/ES384 tokens.
func NewJWTValidatorECDSA(algorithm string, publicKey *ecdsa.PublicKey, issuer, audience string) *JWTValidator {
	return &JWTValidator{algorithm: algorithm, key: publicKey, issuer: issuer, audience: audience}
}

// NewJWTValidatorHMAC constructs a validator for HS256/HS384/HS512 tokens.
func NewJWTValidatorHMAC(algorithm string, secret []byte, issuer, audience string) *JWTValidator {
	return &JWTValidator{algorithm: algorithm, key: secret, issuer: issuer, audience: audience}
}

func (v *JWTValidator) Validate(ctx context.Context, tokenStr string) (Claims, error) {
	parsed, err := jwt.Parse(tokenStr, v.keyFunc, jwt.WithValidMethods([]string{v.algorithm}))
	if err != nil {
		return Claims{}, errors.Wrap(errors.JWT, "invalid jwt", err)
	}
	if !parsed.Valid {
		return Claims{}, errors.New(errors.JWT, "jwt failed validation")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New(errors.JWT, "unexpected claims type")
	}

	claims, err := claimsFromMap(mapClaims)
	if err != nil {
		return Claims{}, errors.Wrap(errors.JWT, "malformed claims", err)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return Claims{}, errors.New(errors.JWT, "issuer mismatch")
	}
	if v.audience != "" && claims.Audience != v.audience {
		return Claims{}, errors.New(errors.JWT, "audience mismatch")
	}

	return claims, nil
}

func (v *JWTValidator) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != v.algorithm {
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
	return v.key, nil
}

// claimsFromMap adapts golang-jwt's generic MapClaims into the
// framework's format-agnostic Claims, tolerating both RFC-3339 and
// Unix-seconds encodings for time fields.
func claimsFromMap(m jwt.MapClaims) (Claims, error) {
	c := Claims{}

	if sub, ok := m["sub"].(string); ok {
		c.Subject = sub
	}
	if email, ok := m["email"].(string); ok {
		c.Email = email
	}
	if username, ok := m["username"].(string); ok {
		c.Username = username
	}
	if jti, ok := m["jti"].(string); ok {
		c.TokenID = jti
	}
	if iss, ok := m["iss"].(string); ok {
		c.Issuer = iss
	}
	c.Audience = audienceString(m["aud"])
	c.Roles = stringSlice(m["roles"])
	c.Permissions = stringSlice(m["perms"])

	exp, err := timeClaim(m["exp"])
	if err != nil {
		return Claims{}, fmt.Errorf("exp: %w", err)
	}
	c.ExpiresAt = exp

	if m["iat"] != nil {
		iat, err := timeClaim(m["iat"])
		if err != nil {
			return Claims{}, fmt.Errorf("iat: %w", err)
		}
		c.IssuedAt = iat
	}

	if time.Now().Unix() > c.ExpiresAt {
		return Claims{}, fmt.Errorf("token expired at %d", c.ExpiresAt)
	}

	return c, nil
}

func audienceString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// timeClaim accepts a numeric Unix-seconds value or an RFC-3339 string,
// since tokens minted by non-Go issuers vary in how they encode time.
func timeClaim(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.Unix(), nil
		}
		return 0, fmt.Errorf("unparseable time claim %q", t)
	default:
		return 0, fmt.Errorf("missing or invalid time claim")
	}
}
