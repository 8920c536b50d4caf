package audit

import (
	"context"

	"github.com/aras-services/svccore/config"
)

// Logger is the handle application code holds to emit audit events. It
// wraps an Agent's mailbox so callers never touch the chain, storage, or
// export machinery directly.
type Logger struct {
	agent       *Agent
	cfg         config.AuditConfig
	serviceName string
}

// NewLogger builds a Logger around an already-started Agent.
func NewLogger(agent *Agent, cfg config.AuditConfig, serviceName string) *Logger {
	return &Logger{agent: agent, cfg: cfg, serviceName: serviceName}
}

// Config returns the audit configuration this logger was built with.
func (l *Logger) Config() config.AuditConfig {
	return l.cfg
}

// ServiceName returns the service name stamped onto every event emitted
// through this logger.
func (l *Logger) ServiceName() string {
	return l.serviceName
}

// Log submits event for sealing and export. The context is accepted for
// call-site symmetry with other I/O in the codebase; submission itself
// is local channel send, not a network call.
func (l *Logger) Log(_ context.Context, event Event) {
	l.agent.Submit(event)
}

// LoginSuccess records a successful authentication.
func (l *Logger) LoginSuccess(ctx context.Context, source Source) {
	l.Log(ctx, NewEvent(KindAuthLoginSuccess, SeverityInformational, l.serviceName).WithSource(source))
}

// LoginFailed records a failed authentication attempt.
func (l *Logger) LoginFailed(ctx context.Context, source Source, reason string) {
	event := NewEvent(KindAuthLoginFailed, SeverityWarning, l.serviceName).WithSource(source)
	if reason != "" {
		event = event.WithMetadata(map[string]any{"reason": reason})
	}
	l.Log(ctx, event)
}

// TokenRevoked records that a token was revoked.
func (l *Logger) TokenRevoked(ctx context.Context, source Source, jti string) {
	event := NewEvent(KindAuthTokenRevoked, SeverityInformational, l.serviceName).WithSource(source)
	if jti != "" {
		event = event.WithMetadata(map[string]any{"jti": jti})
	}
	l.Log(ctx, event)
}

// AccountLocked records that an account crossed the lockout threshold.
func (l *Logger) AccountLocked(ctx context.Context, source Source, attemptCount uint32) {
	event := NewEvent(KindAuthAccountLocked, SeverityWarning, l.serviceName).WithSource(source).
		WithMetadata(map[string]any{"attempt_count": attemptCount})
	l.Log(ctx, event)
}

// AccountUnlocked records that a previously locked account was cleared.
func (l *Logger) AccountUnlocked(ctx context.Context, source Source, reason string) {
	event := NewEvent(KindAuthAccountUnlocked, SeverityInformational, l.serviceName).WithSource(source).
		WithMetadata(map[string]any{"reason": reason})
	l.Log(ctx, event)
}

// HTTPRequest records a completed HTTP request.
func (l *Logger) HTTPRequest(ctx context.Context, source Source, method, path string, statusCode uint16, durationMs uint64) {
	severity := SeverityInformational
	switch {
	case statusCode >= 500:
		severity = SeverityError
	case statusCode >= 400:
		severity = SeverityWarning
	}
	event := NewEvent(KindHTTPRequest, severity, l.serviceName).
		WithSource(source).
		WithHTTP(method, path, statusCode, durationMs)
	l.Log(ctx, event)
}
