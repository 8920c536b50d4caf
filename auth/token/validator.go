package token

import (
	"context"
	"net/http"
	"strings"

	"github.com/aras-services/svccore/errors"
)

// Validator validates a bearer token string and extracts its Claims.
type Validator interface {
	Validate(ctx context.Context, tokenStr string) (Claims, error)
}

// ExtractBearer pulls the token out of a request's Authorization header,
// enforcing the "Bearer <token>" scheme.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthorizedf("missing Authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.Unauthorizedf("invalid Authorization header format")
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", errors.Unauthorizedf("empty bearer token")
	}
	return tok, nil
}

// contextKey is an unexported type so context values set by this
// package never collide with keys set elsewhere.
type contextKey int

const claimsContextKey contextKey = iota

// WithClaims returns a context carrying the validated Claims.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// FromContext retrieves Claims previously attached by WithClaims.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(Claims)
	return c, ok
}

// skipPaths never require authentication, regardless of pipeline config.
var skipPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// Middleware returns an http middleware that authenticates every request
// not in skipPaths using validator, attaching Claims to the context on
// success and writing a 401 ErrorModel response on failure.
func Middleware(validator Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			tok, err := ExtractBearer(r)
			if err != nil {
				errors.WriteError(w, err)
				return
			}

			claims, err := validator.Validate(r.Context(), tok)
			if err != nil {
				errors.WriteError(w, errors.Wrap(errors.Unauthorized, "token validation failed", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
