package audit

import (
	"context"
	"testing"

	"github.com/aras-services/svccore/config"
)

func newTestLogger(t *testing.T, cfg config.AuditConfig) (*Logger, *memoryStorage) {
	t.Helper()
	storage := newMemoryStorage()
	agent := NewAgent(cfg.ServiceName, storage, nil, nil, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	agent.Start(ctx)
	return NewLogger(agent, cfg, cfg.ServiceName), storage
}

func TestLoggerLoginFailedIncludesReason(t *testing.T) {
	logger, storage := newTestLogger(t, config.AuditConfig{ServiceName: "svc"})
	logger.LoginFailed(context.Background(), Source{IP: "10.0.0.1"}, "bad_password")

	events := waitForEvents(t, storage, 1)
	if events[0].Kind.String() != KindAuthLoginFailed.String() {
		t.Fatalf("kind = %q, want %q", events[0].Kind, KindAuthLoginFailed)
	}
	if events[0].Metadata["reason"] != "bad_password" {
		t.Fatalf("metadata = %+v", events[0].Metadata)
	}
	if events[0].Severity != SeverityWarning {
		t.Fatalf("severity = %v, want Warning", events[0].Severity)
	}
}

func TestLoggerHTTPRequestSeverityByStatus(t *testing.T) {
	logger, storage := newTestLogger(t, config.AuditConfig{ServiceName: "svc"})

	logger.HTTPRequest(context.Background(), Source{}, "GET", "/ok", 200, 5)
	logger.HTTPRequest(context.Background(), Source{}, "GET", "/client-error", 404, 5)
	logger.HTTPRequest(context.Background(), Source{}, "GET", "/server-error", 500, 5)

	events := waitForEvents(t, storage, 3)
	want := []Severity{SeverityInformational, SeverityWarning, SeverityError}
	for i, sev := range want {
		if events[i].Severity != sev {
			t.Errorf("event %d severity = %v, want %v", i, events[i].Severity, sev)
		}
	}
}

func TestLoggerConfigAndServiceNameAccessors(t *testing.T) {
	cfg := config.AuditConfig{ServiceName: "svc", AuditAllRequests: true}
	logger, _ := newTestLogger(t, cfg)

	if logger.ServiceName() != "svc" {
		t.Fatalf("ServiceName() = %q, want svc", logger.ServiceName())
	}
	if !logger.Config().AuditAllRequests {
		t.Fatal("expected Config() to round-trip AuditAllRequests")
	}
}
