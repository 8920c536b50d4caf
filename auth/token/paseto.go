package token

import (
	"context"
	"encoding/json"
	"time"

	paseto "aidantwoods.com/go-paseto"

	"github.com/aras-services/svccore/errors"
)

// PASETOPurpose distinguishes the two v4 token purposes.
type PASETOPurpose string

const (
	PASETOLocal  PASETOPurpose = "local"
	PASETOPublic PASETOPurpose = "public"
)

// PASETOValidator validates v4.local or v4.public PASETO tokens.
type PASETOValidator struct {
	purpose      PASETOPurpose
	symmetricKey paseto.V4SymmetricKey
	publicKey    paseto.V4AsymmetricPublicKey
	issuer       string
	audience     string
}

// NewPASETOLocalValidator constructs a validator for v4.local tokens.
func NewPASETOLocalValidator(key paseto.V4SymmetricKey, issuer, audience string) *PASETOValidator {
	return &PASETOValidator{purpose: PASETOLocal, symmetricKey: key, issuer: issuer, audience: audience}
}

// NewPASETOPublicValidator constructs a validator for v4.public tokens.
func NewPASETOPublicValidator(key paseto.V4AsymmetricPublicKey, issuer, audience string) *PASETOValidator {
	return &PASETOValidator{purpose: PASETOPublic, publicKey: key, issuer: issuer, audience: audience}
}

func (v *PASETOValidator) Validate(ctx context.Context, tokenStr string) (Claims, error) {
	parser := paseto.NewParser()
	if v.issuer != "" {
		parser.AddRule(paseto.IssuedBy(v.issuer))
	}
	if v.audience != "" {
		parser.AddRule(paseto.ForAudience(v.audience))
	}
	parser.AddRule(paseto.NotExpired())

	var (
		tok *paseto.Token
		err error
	)
	switch v.purpose {
	case PASETOLocal:
		tok, err = parser.ParseV4Local(v.symmetricKey, tokenStr, nil)
	case PASETOPublic:
		tok, err = parser.ParseV4Public(v.publicKey, tokenStr, nil)
	default:
		return Claims{}, errors.New(errors.PASETO, "unconfigured paseto purpose")
	}
	if err != nil {
		return Claims{}, errors.Wrap(errors.PASETO, "invalid paseto token", err)
	}

	return claimsFromPASETO(tok)
}

func claimsFromPASETO(tok *paseto.Token) (Claims, error) {
	raw, err := json.Marshal(tok.ClaimsJSON())
	if err != nil {
		return Claims{}, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Claims{}, err
	}

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

	if expStr, ok := m["exp"].(string); ok {
		t, err := time.Parse(time.RFC3339, expStr)
		if err != nil {
			return Claims{}, err
		}
		c.ExpiresAt = t.Unix()
	}
	if iatStr, ok := m["iat"].(string); ok {
		t, err := time.Parse(time.RFC3339, iatStr)
		if err == nil {
			c.IssuedAt = t.Unix()
		}
	}

	return c, nil
}
