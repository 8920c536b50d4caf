package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthCheck reports current readiness for the default /ready handler
// BuildRoutes installs; /health does not consult it. A nil HealthCheck
// leaves /ready always reporting ready.
type HealthCheck func() (healthy bool, detail string)

// VersionedRoutes is the opaque result of a Builder: a fully assembled
// router that is guaranteed to carry /health and /ready at the root
// and every other route under an explicit API version. Its router
// field is unexported so no caller outside this package can mount an
// unversioned route onto it after the fact.
type VersionedRoutes struct {
	router chi.Router
}

// Handler exposes the assembled routes as a plain http.Handler, the
// only way code outside this package can use a VersionedRoutes value.
func (v *VersionedRoutes) Handler() http.Handler {
	return v.router
}

// Empty is the initial builder state: no base path, no versions yet.
type Empty struct{}

// NewBuilder starts the versioned-route builder.
func NewBuilder() Empty {
	return Empty{}
}

// WithBasePath fixes the path prefix every version mounts under, e.g. "/api".
func (Empty) WithBasePath(basePath string) Base {
	return Base{basePath: basePath, root: chi.NewRouter()}
}

// Base has a base path but no versions mounted yet.
type Base struct {
	basePath string
	root     chi.Router
}

// AddVersion mounts fn's routes under {basePath}/{version}.
func (b Base) AddVersion(version ApiVersion, fn func(chi.Router)) Versions {
	mount(b.root, b.basePath, version, fn, nil)
	return Versions{basePath: b.basePath, root: b.root}
}

// AddVersionDeprecated mounts fn's routes under {basePath}/{version} and
// adds the Deprecation/Sunset/Link/Warning headers info describes to
// every response from that version.
func (b Base) AddVersionDeprecated(version ApiVersion, fn func(chi.Router), info DeprecationInfo) Versions {
	mount(b.root, b.basePath, version, fn, &info)
	return Versions{basePath: b.basePath, root: b.root}
}

// BuildRoutes finalizes a base with no versions mounted yet, matching
// the source framework's VersionedRoutes::default() (health/ready only).
func (b Base) BuildRoutes(check HealthCheck) *VersionedRoutes {
	b.root.Get("/health", livenessHandler())
	b.root.Get("/ready", readinessHandler(check))
	return &VersionedRoutes{router: b.root}
}

// Versions has at least one version mounted; BuildRoutes is now available.
type Versions struct {
	basePath string
	root     chi.Router
}

// AddVersion mounts another version's routes.
func (b Versions) AddVersion(version ApiVersion, fn func(chi.Router)) Versions {
	mount(b.root, b.basePath, version, fn, nil)
	return b
}

// AddVersionDeprecated mounts another deprecated version's routes.
func (b Versions) AddVersionDeprecated(version ApiVersion, fn func(chi.Router), info DeprecationInfo) Versions {
	mount(b.root, b.basePath, version, fn, &info)
	return b
}

// BuildRoutes finalizes the route tree, always adding /health and
// /ready at the root. /health reports process liveness unconditionally;
// /ready is backed by check, if non-nil, and otherwise reports ready
// unconditionally.
func (b Versions) BuildRoutes(check HealthCheck) *VersionedRoutes {
	b.root.Get("/health", livenessHandler())
	b.root.Get("/ready", readinessHandler(check))
	return &VersionedRoutes{router: b.root}
}

// DefaultVersionedRoutes returns a VersionedRoutes with only /health and
// /ready, the same default ServiceAssembly substitutes when no routes
// are supplied.
func DefaultVersionedRoutes() *VersionedRoutes {
	return NewBuilder().WithBasePath("/api").BuildRoutes(nil)
}

func mount(root chi.Router, basePath string, version ApiVersion, fn func(chi.Router), deprecation *DeprecationInfo) {
	sub := chi.NewRouter()
	if deprecation != nil {
		sub.Use(deprecation.middleware())
	}
	fn(sub)
	root.Mount(basePath+"/"+version.String(), sub)
}

// livenessHandler always reports 200 "healthy": /health answers whether
// the process is alive, never whether its dependencies are, so a pool
// outage must never drop it to 503.
func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	}
}

// readinessHandler reports 200 "ready" iff check reports healthy (or
// check is nil), 503 with check's detail otherwise.
func readinessHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		healthy, detail := check()
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(detail))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
