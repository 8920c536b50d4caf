package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/aras-services/svccore/audit"
	"github.com/aras-services/svccore/auth/revocation"
	"github.com/aras-services/svccore/auth/token"
	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/routes"
)

func TestBuildWithAllDefaultsServesHealthAndReady(t *testing.T) {
	svc, err := NewAssembly().Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		svc.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, w.Code)
		}
	}
}

func TestBuildWithConfigOnlyUsesDefaultRoutesAndState(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	svc, err := NewAssembly().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if svc.Config().Service.Name != "widgets" {
		t.Fatalf("Config().Service.Name = %q", svc.Config().Service.Name)
	}
}

func testRoutes() *routes.VersionedRoutes {
	return routes.NewBuilder().WithBasePath("/api").
		AddVersion(routes.V1, func(r chi.Router) {
			r.Get("/widgets", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		}).
		BuildRoutes(nil)
}

func TestBuildWithRoutesMountsVersionedPath(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	svc, err := NewAssembly().WithConfig(cfg).WithRoutes(testRoutes()).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	w := httptest.NewRecorder()
	svc.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

type fakeValidator struct{ err error }

func (f fakeValidator) Validate(ctx context.Context, tokenStr string) (token.Claims, error) {
	if f.err != nil {
		return token.Claims{}, f.err
	}
	return token.Claims{Subject: "user:1"}, nil
}

func TestBuildWithValidatorEnforcesAuth(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	svc, err := NewAssembly().WithConfig(cfg).WithRoutes(testRoutes()).
		WithState(State{Validator: fakeValidator{}}).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	w := httptest.NewRecorder()
	svc.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a bearer token", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	req.Header.Set("Authorization", "Bearer anything")
	svc.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with a valid bearer token", w.Code)
	}
}

type memoryStorage struct{ events []audit.Event }

func (m *memoryStorage) Append(_ context.Context, e audit.Event) error {
	m.events = append(m.events, e)
	return nil
}
func (m *memoryStorage) Latest(_ context.Context) (*audit.Event, error) {
	if len(m.events) == 0 {
		return nil, nil
	}
	e := m.events[len(m.events)-1]
	return &e, nil
}
func (m *memoryStorage) QueryRange(_ context.Context, from, to time.Time, limit int) ([]audit.Event, error) {
	return m.events, nil
}
func (m *memoryStorage) VerifyChain(_ context.Context, fromSequence uint64) (*uint64, error) {
	return nil, nil
}

func TestBuildWithAuditLoggerRecordsRequests(t *testing.T) {
	storage := &memoryStorage{}
	agent := audit.NewAgent("widgets", storage, nil, nil, 16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent.Start(ctx)

	logger := audit.NewLogger(agent, config.AuditConfig{Enabled: true, AuditAllRequests: true}, "widgets")

	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	svc, err := NewAssembly().WithConfig(cfg).WithRoutes(testRoutes()).
		WithState(State{AuditLogger: logger}).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	w := httptest.NewRecorder()
	svc.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestBuildStartsAgentsDuringBuildAndCancelAgentsStopsThem(t *testing.T) {
	started := false
	stopped := make(chan struct{})

	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	svc, err := NewAssembly().WithConfig(cfg).WithRoutes(testRoutes()).WithState(State{
		AgentStarters: []func(context.Context) error{
			func(ctx context.Context) error {
				started = true
				go func() {
					<-ctx.Done()
					close(stopped)
				}()
				return nil
			},
		},
	}).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if !started {
		t.Fatal("expected agent starter to run during Build")
	}

	svc.cancelAgents()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expected agent to observe context cancellation")
	}
}

func TestBuildFailureFromAgentStarterCancelsAlreadyStartedAgents(t *testing.T) {
	firstStopped := make(chan struct{})

	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	_, err := NewAssembly().WithConfig(cfg).WithRoutes(testRoutes()).WithState(State{
		AgentStarters: []func(context.Context) error{
			func(ctx context.Context) error {
				go func() {
					<-ctx.Done()
					close(firstStopped)
				}()
				return nil
			},
			func(ctx context.Context) error {
				return fmt.Errorf("boom")
			},
		},
	}).Build()
	if err == nil {
		t.Fatal("expected Build to return an error when an agent starter fails")
	}

	select {
	case <-firstStopped:
	case <-time.After(time.Second):
		t.Fatal("expected earlier agent's context to be canceled when a later one fails")
	}
}

func TestBuildWithRevocationCacheRejectsRevokedToken(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cache := revocation.New(client)
	cache.Revoke(context.Background(), "tok-revoked", time.Now().Add(time.Hour))

	cfg := &config.Config{Service: config.ServiceConfig{Name: "widgets"}}
	svc, err := NewAssembly().WithConfig(cfg).WithRoutes(testRoutes()).WithState(State{
		Validator:       fakeValidatorWithTokenID{tokenID: "tok-revoked"},
		RevocationCache: cache,
	}).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	svc.handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for a revoked token", w.Code)
	}
}

type fakeValidatorWithTokenID struct{ tokenID string }

func (f fakeValidatorWithTokenID) Validate(ctx context.Context, tokenStr string) (token.Claims, error) {
	return token.Claims{Subject: "user:1", TokenID: f.tokenID}, nil
}

// ActonService.Serve itself is a thin wrapper around the already-tested
// DualProtocolServer.Serve (see server package tests for shutdown-signal
// behavior); what belongs to this package is that Build wires agent
// cancellation and the given Closers into that return path. The tests
// above assert the cancelAgents half directly rather than by sending
// the process a real OS signal; the Closers are not exercised here.
