package token

import (
	"context"

	"github.com/aras-services/svccore/errors"
)

// RevocationCache is the subset of revocation.Cache a Validator needs;
// declared here rather than imported directly so this package stays
// free of a dependency on auth/revocation.
type RevocationCache interface {
	IsRevoked(tokenID string) bool
}

// revocationCheckingValidator wraps a Validator, rejecting tokens whose
// ID the revocation cache reports as revoked after the inner Validator
// has already confirmed the signature and expiry are otherwise valid.
type revocationCheckingValidator struct {
	inner Validator
	cache RevocationCache
}

// RevocationChecking decorates validator so that a token whose ID is in
// cache is rejected even if it would otherwise validate, closing the
// window between a token being issued and its natural expiry.
func RevocationChecking(validator Validator, cache RevocationCache) Validator {
	return &revocationCheckingValidator{inner: validator, cache: cache}
}

func (v *revocationCheckingValidator) Validate(ctx context.Context, tokenStr string) (Claims, error) {
	claims, err := v.inner.Validate(ctx, tokenStr)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenID != "" && v.cache.IsRevoked(claims.TokenID) {
		return Claims{}, errors.Unauthorizedf("token has been revoked")
	}
	return claims, nil
}
