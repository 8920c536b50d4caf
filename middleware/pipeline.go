// Package middleware implements the fixed outer-to-inner HTTP request
// pipeline: security headers, CORS, compression, timeout, body-size
// cap, tracing span, sensitive-header marking, request-id handling, and
// a panic catcher, with rate limiting, auth, and resilience layered in
// conditionally per configuration.
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aras-services/svccore/auth/token"
	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/errors"
)

// Pipeline assembles the full middleware chain from configuration and
// the optional collaborators (rate limiter store, token validator,
// metrics registry) each layer needs.
type Pipeline struct {
	cfg         config.MiddlewareConfig
	tlsEnabled  bool
	validator   token.Validator
	rateLimiter *RateLimiter
	breaker     *gobreaker.CircuitBreaker
	bulkhead    *Bulkhead
	tracer      trace.Tracer
	logger      *zap.Logger
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithTLS marks whether the server terminates TLS itself, gating HSTS.
func WithTLS(enabled bool) Option {
	return func(p *Pipeline) { p.tlsEnabled = enabled }
}

// WithAuth enables the auth layer using validator.
func WithAuth(validator token.Validator) Option {
	return func(p *Pipeline) { p.validator = validator }
}

// WithRateLimiter enables rate limiting backed by client.
func WithRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) Option {
	return func(p *Pipeline) { p.rateLimiter = NewRateLimiter(client, cfg, logger) }
}

// WithResilience enables the bulkhead + circuit breaker layer.
func WithResilience(cfg config.ResilienceConfig, metrics *PipelineMetrics, logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.breaker = NewCircuitBreaker(cfg, metrics, logger)
		p.bulkhead = NewBulkhead(cfg.BulkheadMaxConcurrency, cfg.BulkheadMaxWait, metrics)
	}
}

// WithLogger attaches a zap logger; a no-op logger is used if omitted.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer overrides the otel tracer used for the per-request span;
// otel.Tracer("svccore") is used if omitted.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// NewPipeline builds a Pipeline from cfg plus any layered options.
func NewPipeline(cfg config.MiddlewareConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		tracer: otel.Tracer("svccore"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wrap applies the full pipeline to handler in the fixed order mandated
// outer-to-inner: security headers, CORS, compression, timeout, body
// limit, tracing span, sensitive-header marking, request tracking,
// panic recovery, then the optional auth / rate-limit / resilience
// layers (in that order) closest to the handler, so the rate limiter
// sees the claims the auth layer attached.
func (p *Pipeline) Wrap(handler http.Handler) http.Handler {
	h := handler

	if p.breaker != nil {
		h = Resilience(p.breaker, p.bulkhead)(h)
	}
	if p.rateLimiter != nil {
		h = p.rateLimiter.Middleware(h)
	}
	if p.validator != nil {
		h = token.Middleware(p.validator)(h)
	}

	h = recoverer(p.logger)(h)
	h = RequestTracking(h)
	h = MarkSensitiveHeaders(h)
	h = p.tracingSpan(h)
	h = p.bodyLimit(h)
	h = p.timeout(h)
	h = middleware.Compress(5)(h)
	h = CORS(p.cfg)(h)
	h = SecurityHeaders(p.cfg.SecurityHeaders, p.tlsEnabled)(h)

	return h
}

// timeout bounds request handling to cfg.RequestTimeout, responding 408
// if the deadline passes before the handler finishes.
func (p *Pipeline) timeout(next http.Handler) http.Handler {
	if p.cfg.RequestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), p.cfg.RequestTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			next.ServeHTTP(w, r.WithContext(ctx))
		}()

		select {
		case <-done:
		case <-ctx.Done():
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusRequestTimeout)
			_, _ = w.Write([]byte(`{"error":"request timed out","code":"REQUEST_TIMEOUT","status":408}`))
		}
	})
}

// bodyLimit rejects request bodies larger than cfg.BodyLimitMB.
func (p *Pipeline) bodyLimit(next http.Handler) http.Handler {
	if p.cfg.BodyLimitMB <= 0 {
		return next
	}
	limit := int64(p.cfg.BodyLimitMB) * 1024 * 1024
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// tracingSpan opens one otel span per request, named by method and path.
func (p *Pipeline) tracingSpan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverer converts a panic in the handler chain into a 500 with a
// generic body, logging the original panic value for diagnosis.
func recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered in http handler",
						zap.Any("panic", rec), zap.String("path", r.URL.Path))
					errors.WriteError(w, errors.New(errors.Internal, "internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
