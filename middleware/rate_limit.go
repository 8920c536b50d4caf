package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aras-services/svccore/auth/token"
	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/errors"
)

const rateLimitWindowSecs = 60

// RateLimiter enforces distributed, Redis-backed request quotas: a
// per-route override when the normalized path matches one, otherwise a
// global per-user or per-client quota keyed off the validated token's
// subject.
type RateLimiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	routes map[string]config.RouteRateLimit
	logger *zap.Logger
}

// NewRateLimiter compiles cfg.Routes (keyed by their normalized path
// pattern) against a Redis client used for the INCR/EXPIRE counters.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := make(map[string]config.RouteRateLimit, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes[NormalizePath(r.Path)] = r
	}
	return &RateLimiter{client: client, cfg: cfg, routes: routes, logger: logger}
}

type rateLimitResult struct {
	limit     int
	count     int64
	resetSecs int64
}

// Middleware enforces the configured limits and attaches the standard
// X-RateLimit-* response headers on success.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := rl.check(r)
		if err != nil {
			if ferr, ok := err.(*errors.Error); ok && ferr.Kind == errors.RateLimitExceeded {
				w.Header().Set("Retry-After", strconv.FormatInt(result.resetSecs, 10))
			}
			errors.WriteError(w, err)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.limit))
		remaining := int64(result.limit) - result.count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Unix()+result.resetSecs, 10))

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) check(r *http.Request) (rateLimitResult, error) {
	normalized := NormalizePath(r.URL.Path)
	claims, hasClaims := token.FromContext(r.Context())

	if route, ok := rl.routes[normalized]; ok {
		key := fmt.Sprintf("route:%s:global", normalized)
		if route.PerUser && hasClaims {
			key = fmt.Sprintf("route:%s:user:%s", normalized, claims.Subject)
		}
		return rl.checkAndIncrement(r.Context(), key, route.RequestsPerMinute)
	}

	if hasClaims {
		key := fmt.Sprintf("ratelimit:user:%s", claims.Subject)
		limit := rl.cfg.PerUserRPM
		if claims.IsClient() {
			key = fmt.Sprintf("ratelimit:client:%s", claims.Subject)
			limit = rl.cfg.PerClientRPM
		}
		return rl.checkAndIncrement(r.Context(), key, limit)
	}

	rl.logger.Debug("rate limiter called without claims and no per-route match, allowing",
		zap.String("path", normalized))
	return rateLimitResult{limit: rl.cfg.PerUserRPM, count: 0, resetSecs: rateLimitWindowSecs}, nil
}

func (rl *RateLimiter) checkAndIncrement(ctx context.Context, key string, limit int) (rateLimitResult, error) {
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return rateLimitResult{}, errors.Wrap(errors.Cache, "rate limit counter increment failed", err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rateLimitWindowSecs*time.Second).Err(); err != nil {
			return rateLimitResult{}, errors.Wrap(errors.Cache, "rate limit counter expire failed", err)
		}
	}

	ttl, err := rl.client.TTL(ctx, key).Result()
	resetSecs := int64(rateLimitWindowSecs)
	if err == nil && ttl > 0 {
		resetSecs = int64(ttl.Seconds())
	}

	result := rateLimitResult{limit: limit, count: count, resetSecs: resetSecs}
	if limit > 0 && count > int64(limit) {
		rl.logger.Warn("rate limit exceeded", zap.String("key", key), zap.Int64("count", count), zap.Int("limit", limit))
		return result, errors.New(errors.RateLimitExceeded, "rate limit exceeded")
	}
	return result, nil
}
