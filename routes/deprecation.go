package routes

import (
	"fmt"
	"net/http"
)

// DeprecationInfo describes a version's sunset plan. Attached to a
// version's sub-router, it adds Deprecation/Sunset/Link/Warning
// response headers to every response under that version.
type DeprecationInfo struct {
	Version    ApiVersion
	ReplacedBy ApiVersion
	SunsetDate string
	Message    string
}

// NewDeprecationInfo records that version is deprecated in favor of replacedBy.
func NewDeprecationInfo(version, replacedBy ApiVersion) DeprecationInfo {
	return DeprecationInfo{Version: version, ReplacedBy: replacedBy}
}

// WithSunsetDate sets the RFC-3339 date advertised in the Sunset header.
func (d DeprecationInfo) WithSunsetDate(date string) DeprecationInfo {
	d.SunsetDate = date
	return d
}

// WithMessage sets the human-readable migration note advertised via Warning.
func (d DeprecationInfo) WithMessage(message string) DeprecationInfo {
	d.Message = message
	return d
}

// middleware returns the header-setting middleware for this deprecation notice.
func (d DeprecationInfo) middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Deprecation", "true")
			if d.SunsetDate != "" {
				h.Set("Sunset", d.SunsetDate)
			}
			h.Set("Link", fmt.Sprintf("</api/%s>; rel=\"successor-version\"", d.ReplacedBy.String()))
			if d.Message != "" {
				h.Set("Warning", fmt.Sprintf("299 - %q", d.Message))
			}
			next.ServeHTTP(w, r)
		})
	}
}
