package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/aras-services/svccore/config"
)

// CORS builds the cross-origin layer for the configured posture.
// Restrictive mode only allows cfg.AllowedOrigins; permissive mode
// allows any origin ("*") and any request header (credentials are never
// enabled in permissive mode, since that combination is rejected by
// browsers anyway); disabled mode is a no-op passthrough.
func CORS(cfg config.MiddlewareConfig) func(http.Handler) http.Handler {
	switch cfg.CorsMode {
	case config.CorsDisabled, "":
		return func(next http.Handler) http.Handler { return next }
	case config.CorsRestrictive:
		return cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		})
	default: // config.CorsPermissive
		return cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: false,
			MaxAge:           300,
		})
	}
}
