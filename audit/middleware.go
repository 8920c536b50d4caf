package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aras-services/svccore/auth/token"
)

// Route annotates a specific handler with a custom audit event name,
// overriding the default http.request kind for that route. Attach it to
// a request's context with WithRoute before it reaches Middleware.
type Route struct {
	Name string
}

type routeContextKey int

const routeKey routeContextKey = iota

// WithRoute returns a context carrying a per-route audit annotation.
// Use from a route-specific wrapper installed ahead of the global audit
// middleware in the pipeline.
func WithRoute(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, routeKey, Route{Name: name})
}

func routeFromContext(ctx context.Context) (Route, bool) {
	r, ok := ctx.Value(routeKey).(Route)
	return r, ok
}

// AnnotateRoute wraps a handler so every request it serves carries a
// per-route audit annotation, picked up by Middleware to emit a
// custom-named event instead of the generic http.request kind.
func AnnotateRoute(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRoute(r.Context(), name)))
	})
}

// Middleware captures HTTP request/response details as audit events. It
// decides whether to audit a request as follows:
//
//  1. A per-route annotation (WithRoute/AnnotateRoute) always audits,
//     using the annotated name as a custom event kind.
//  2. Otherwise, a path matching ExcludedRoutes is never audited.
//  3. Otherwise, AuditAllRequests audits everything else.
//  4. Otherwise, a path matching AuditedRoutes is audited.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, annotated := routeFromContext(r.Context())
			cfg := logger.Config()

			shouldAudit := annotated
			if !shouldAudit {
				switch {
				case pathMatchesPatterns(r.URL.Path, cfg.ExcludedRoutes):
					shouldAudit = false
				case cfg.AuditAllRequests:
					shouldAudit = true
				default:
					shouldAudit = pathMatchesPatterns(r.URL.Path, cfg.AuditedRoutes)
				}
			}

			if !shouldAudit {
				next.ServeHTTP(w, r)
				return
			}

			source := extractSource(r)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(rec, r)
			durationMs := uint64(time.Since(start).Milliseconds())

			kind := KindHTTPRequest
			if annotated {
				kind = CustomKind(route.Name)
			}

			severity := SeverityInformational
			switch {
			case rec.status >= 500:
				severity = SeverityError
			case rec.status >= 400:
				severity = SeverityWarning
			}

			event := NewEvent(kind, severity, logger.ServiceName()).
				WithSource(source).
				WithHTTP(r.Method, r.URL.Path, uint16(rec.status), durationMs)

			logger.Log(r.Context(), event)
		})
	}
}

func extractSource(r *http.Request) Source {
	ip := r.Header.Get("x-forwarded-for")
	if ip == "" {
		ip = r.Header.Get("x-real-ip")
	}
	if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)

	var subject string
	if claims, ok := token.FromContext(r.Context()); ok {
		subject = claims.Subject
	}

	return Source{
		IP:        ip,
		UserAgent: r.Header.Get("user-agent"),
		Subject:   subject,
		RequestID: r.Header.Get("x-request-id"),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// pathMatchesPatterns reports whether path matches any of patterns.
func pathMatchesPatterns(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pathMatchesGlob(path, pattern) {
			return true
		}
	}
	return false
}

// pathMatchesGlob supports four pattern shapes: an exact match, a
// trailing "/*" matching any path that starts with the part before "/*"
// and is longer than it (one or more further segments, but not the bare
// prefix), a trailing "/**" matching the prefix itself or anything that
// starts with it, and a single "*" splitting the pattern into a required
// prefix and suffix.
func pathMatchesGlob(path, pattern string) bool {
	if path == pattern {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return strings.HasPrefix(path, prefix)
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(path, prefix) && len(path) > len(prefix)
	}

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(path, parts[0]) && strings.HasSuffix(path, parts[1])
		}
	}

	return false
}
