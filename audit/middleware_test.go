package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aras-services/svccore/config"
)

func TestPathMatchesExact(t *testing.T) {
	if !pathMatchesGlob("/api/v1/users", "/api/v1/users") {
		t.Fatal("expected exact match")
	}
	if pathMatchesGlob("/api/v1/users", "/api/v1/posts") {
		t.Fatal("expected no match")
	}
}

func TestPathMatchesTrailingWildcard(t *testing.T) {
	if !pathMatchesGlob("/api/v1/admin/users", "/api/v1/admin/*") {
		t.Fatal("expected single-segment wildcard match")
	}
	if !pathMatchesGlob("/api/v1/admin/settings", "/api/v1/admin/*") {
		t.Fatal("expected single-segment wildcard match")
	}
	if pathMatchesGlob("/api/v1/users", "/api/v1/admin/*") {
		t.Fatal("expected no match for unrelated prefix")
	}
}

func TestPathMatchesDoubleWildcard(t *testing.T) {
	if !pathMatchesGlob("/api/v1/admin/users/123", "/api/v1/admin/**") {
		t.Fatal("expected recursive wildcard match")
	}
	if !pathMatchesGlob("/api/v1/admin", "/api/v1/admin/**") {
		t.Fatal("expected recursive wildcard to match the prefix itself")
	}
}

func TestPathMatchesPatternsList(t *testing.T) {
	patterns := []string{"/api/v1/admin/*", "/api/v1/users/*/delete"}
	if !pathMatchesPatterns("/api/v1/admin/settings", patterns) {
		t.Fatal("expected match against first pattern")
	}
	if !pathMatchesPatterns("/api/v1/users/123/delete", patterns) {
		t.Fatal("expected match against second pattern")
	}
	if pathMatchesPatterns("/api/v1/posts", patterns) {
		t.Fatal("expected no match")
	}
}

func TestMiddlewareAuditsAllRequestsWhenConfigured(t *testing.T) {
	logger, storage := newTestLogger(t, config.AuditConfig{ServiceName: "svc", AuditAllRequests: true})

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	events := waitForEvents(t, storage, 1)
	if events[0].Kind.String() != KindHTTPRequest.String() {
		t.Fatalf("kind = %q, want %q", events[0].Kind, KindHTTPRequest)
	}
	if events[0].StatusCode == nil || *events[0].StatusCode != http.StatusTeapot {
		t.Fatal("expected captured status code 418")
	}
}

func TestMiddlewareSkipsExcludedRoutes(t *testing.T) {
	logger, storage := newTestLogger(t, config.AuditConfig{
		ServiceName:      "svc",
		AuditAllRequests: true,
		ExcludedRoutes:   []string{"/health"},
	})

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := storage.snapshot(); len(got) != 0 {
		t.Fatalf("expected no audit events for excluded route, got %d", len(got))
	}
}

func TestMiddlewareAnnotatedRouteAlwaysAudits(t *testing.T) {
	logger, storage := newTestLogger(t, config.AuditConfig{ServiceName: "svc"})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AnnotateRoute("user.delete", Middleware(logger)(inner))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/admin/users/1", nil))

	events := waitForEvents(t, storage, 1)
	if events[0].Kind.String() != "custom.user.delete" {
		t.Fatalf("kind = %q, want custom.user.delete", events[0].Kind)
	}
}

func TestMiddlewareSkipsWhenNotAuditedOrExcluded(t *testing.T) {
	logger, storage := newTestLogger(t, config.AuditConfig{ServiceName: "svc"})

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

	if got := storage.snapshot(); len(got) != 0 {
		t.Fatalf("expected no audit events, got %d", len(got))
	}
}

func TestExtractSourcePrefersForwardedForAndClaimsSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("x-forwarded-for", "203.0.113.9, 10.0.0.1")
	req.Header.Set("x-real-ip", "ignored")
	req.Header.Set("user-agent", "test-agent")
	req.Header.Set("x-request-id", "req-42")

	source := extractSource(req)
	if source.IP != "203.0.113.9" {
		t.Fatalf("IP = %q, want 203.0.113.9", source.IP)
	}
	if source.UserAgent != "test-agent" || source.RequestID != "req-42" {
		t.Fatalf("unexpected source: %+v", source)
	}
}
