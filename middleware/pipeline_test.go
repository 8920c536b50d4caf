package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/ids"
)

func testMiddlewareConfig() config.MiddlewareConfig {
	return config.MiddlewareConfig{
		BodyLimitMB:     1,
		CorsMode:        config.CorsPermissive,
		RequestTimeout:  50 * time.Millisecond,
		SecurityHeaders: config.SecurityHeadersConfig{Enabled: true, ContentTypeOptions: true},
	}
}

func TestPipelineWrapsAndCallsHandler(t *testing.T) {
	p := NewPipeline(testMiddlewareConfig())
	called := false
	h := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatal("expected wrapped handler to run")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get(ids.HeaderName) == "" {
		t.Fatal("expected a request id header on the response")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers applied")
	}
}

func TestPipelineRecoversPanics(t *testing.T) {
	p := NewPipeline(testMiddlewareConfig())
	h := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 after recovered panic", w.Code)
	}
}

func TestPipelineEnforcesTimeout(t *testing.T) {
	cfg := testMiddlewareConfig()
	cfg.RequestTimeout = 10 * time.Millisecond
	p := NewPipeline(cfg)

	h := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("status = %d, want 408 (timeout response) before the slow handler returns", w.Code)
	}
}

func TestPipelineAllowsBodylessRequestUnderBodyLimit(t *testing.T) {
	cfg := testMiddlewareConfig()
	p := NewPipeline(cfg)

	h := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := http.MaxBytesReader(w, r.Body, 1<<20).Read(make([]byte, 1))
		if err != nil && err.Error() == "" {
			t.Fatal("unexpected empty error")
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
