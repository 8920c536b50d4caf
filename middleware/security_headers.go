package middleware

import (
	"fmt"
	"net/http"

	"github.com/aras-services/svccore/config"
)

// SecurityHeaders returns a middleware that applies the standard header
// set from cfg. HSTS is only emitted when tlsEnabled is true, since the
// header has no effect (and can be misleading) over plain HTTP.
//
// Every header here is written before the handler runs. Strict-Transport-
// Security replaces any value an outer layer set; every other header is
// applied only if it is not already present at that point. A handler
// that sets any of these headers itself, Strict-Transport-Security
// included, replaces the value written here.
func SecurityHeaders(cfg config.SecurityHeadersConfig, tlsEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			if tlsEnabled && cfg.HSTSMaxAgeSecs > 0 {
				h.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAgeSecs))
			}
			if cfg.ContentTypeOptions {
				setIfAbsent(h, "X-Content-Type-Options", "nosniff")
			}
			if cfg.FrameOptions != "" {
				setIfAbsent(h, "X-Frame-Options", cfg.FrameOptions)
			}
			if cfg.XSSProtection {
				setIfAbsent(h, "X-XSS-Protection", "0")
			}
			if cfg.ReferrerPolicy != "" {
				setIfAbsent(h, "Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.PermissionsPolicy != "" {
				setIfAbsent(h, "Permissions-Policy", cfg.PermissionsPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setIfAbsent(h http.Header, key, value string) {
	if h.Get(key) == "" {
		h.Set(key, value)
	}
}
