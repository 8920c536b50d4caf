package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/aras-services/svccore/ids"
)

// PropagateHeaders are forwarded between services for distributed tracing.
var PropagateHeaders = []string{
	"x-request-id",
	"x-trace-id",
	"x-span-id",
	"x-correlation-id",
	"x-client-id",
}

// SensitiveHeaders must never appear unredacted in logs.
var SensitiveHeaders = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"x-auth-token",
}

type requestIDKey struct{}

// RequestIDFromContext returns the request id attached by RequestTracking.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// RequestTracking generates a request id when the incoming request has
// none, otherwise forwards the caller's id unchanged, and always writes
// the final value to the response header and request context. It folds
// together what the source framework splits into a generation layer and
// a propagation layer, since in net/http both operate on the same
// request/response pair and there is no separate outbound-request leg
// to propagate onto.
func RequestTracking(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ids.HeaderName)
		if id == "" {
			id = ids.New().String()
		}

		w.Header().Set(ids.HeaderName, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type maskedHeadersKey struct{}

// MarkSensitiveHeaders snapshots the incoming request's headers with
// SensitiveHeaders redacted and attaches the snapshot to the request
// context, so downstream logging never needs to reason about which
// headers are safe to print.
func MarkSensitiveHeaders(next http.Handler) http.Handler {
	sensitive := make(map[string]bool, len(SensitiveHeaders))
	for _, h := range SensitiveHeaders {
		sensitive[strings.ToLower(h)] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		masked := make(map[string]string, len(r.Header))
		for name, values := range r.Header {
			if sensitive[strings.ToLower(name)] {
				masked[name] = "***REDACTED***"
				continue
			}
			masked[name] = strings.Join(values, ",")
		}

		ctx := context.WithValue(r.Context(), maskedHeadersKey{}, masked)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MaskedHeadersFromContext returns the redacted header snapshot attached
// by MarkSensitiveHeaders.
func MaskedHeadersFromContext(ctx context.Context) (map[string]string, bool) {
	m, ok := ctx.Value(maskedHeadersKey{}).(map[string]string)
	return m, ok
}
