package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aras-services/svccore/ids"
)

func TestRequestTrackingGeneratesIDWhenAbsent(t *testing.T) {
	var seen string
	h := RequestTracking(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := RequestIDFromContext(r.Context())
		if !ok {
			t.Fatal("expected request id in context")
		}
		seen = id
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("generated id %q missing req_ prefix", seen)
	}
	if w.Header().Get(ids.HeaderName) != seen {
		t.Fatalf("response header = %q, want %q", w.Header().Get(ids.HeaderName), seen)
	}
}

func TestRequestTrackingForwardsIncomingID(t *testing.T) {
	h := RequestTracking(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(ids.HeaderName, "req_caller-supplied-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get(ids.HeaderName); got != "req_caller-supplied-id" {
		t.Fatalf("header = %q, want forwarded value", got)
	}
}

func TestMarkSensitiveHeadersRedactsAuthorization(t *testing.T) {
	var masked map[string]string
	h := MarkSensitiveHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		masked, _ = MaskedHeadersFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	r.Header.Set("X-Custom", "visible")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if masked["Authorization"] != "***REDACTED***" {
		t.Fatalf("Authorization = %q, want redacted", masked["Authorization"])
	}
	if masked["X-Custom"] != "visible" {
		t.Fatalf("X-Custom = %q, want unmasked", masked["X-Custom"])
	}
}
