// Package audit implements the tamper-evident audit trail: events are
// chained with BLAKE3 hashes by a single sequential writer, persisted to
// a pluggable storage backend, optionally mirrored to syslog, and counted
// on an OpenTelemetry metric. Event contents are not exported as OTLP log
// records.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind categorizes an audit event. Auth events are emitted
// automatically by the auth packages; HTTP events come from the audit
// middleware; Custom events are application-defined (route-annotated).
type EventKind struct {
	name   string
	custom string
}

func (k EventKind) String() string {
	if k.name == kindCustomName {
		return "custom." + k.custom
	}
	return k.name
}

const kindCustomName = "__custom__"

var (
	KindAuthLoginSuccess     = EventKind{name: "auth.login.success"}
	KindAuthLoginFailed      = EventKind{name: "auth.login.failed"}
	KindAuthLogout           = EventKind{name: "auth.logout"}
	KindAuthTokenRefresh     = EventKind{name: "auth.token.refresh"}
	KindAuthTokenRevoked     = EventKind{name: "auth.token.revoked"}
	KindAuthPasswordChanged  = EventKind{name: "auth.password.changed"}
	KindAuthAPIKeyCreated    = EventKind{name: "auth.apikey.created"}
	KindAuthAPIKeyRevoked    = EventKind{name: "auth.apikey.revoked"}
	KindAuthOAuthCallback    = EventKind{name: "auth.oauth.callback"}
	KindAuthPermissionDenied = EventKind{name: "auth.permission.denied"}
	KindAuthAccountLocked    = EventKind{name: "auth.account.locked"}
	KindAuthAccountUnlocked  = EventKind{name: "auth.account.unlocked"}
	KindHTTPRequest          = EventKind{name: "http.request"}
	KindHTTPRequestDenied    = EventKind{name: "http.request.denied"}
)

// CustomKind builds an application-defined event kind; String() renders
// it as "custom.<name>".
func CustomKind(name string) EventKind {
	return EventKind{name: kindCustomName, custom: name}
}

// ParseKind reverses EventKind.String for storage round-trips.
func ParseKind(s string) EventKind {
	for _, k := range []EventKind{
		KindAuthLoginSuccess, KindAuthLoginFailed, KindAuthLogout,
		KindAuthTokenRefresh, KindAuthTokenRevoked, KindAuthPasswordChanged,
		KindAuthAPIKeyCreated, KindAuthAPIKeyRevoked, KindAuthOAuthCallback,
		KindAuthPermissionDenied, KindAuthAccountLocked, KindAuthAccountUnlocked,
		KindHTTPRequest, KindHTTPRequestDenied,
	} {
		if k.name == s {
			return k
		}
	}
	const prefix = "custom."
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return CustomKind(s[len(prefix):])
	}
	return CustomKind(s)
}

// Severity maps directly onto RFC-5424 syslog severity values (0-7).
type Severity uint8

const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInformational
	SeverityDebug
)

// Syslog returns the numeric syslog severity (0-7).
func (s Severity) Syslog() uint8 { return uint8(s) }

func (s Severity) String() string {
	switch s {
	case SeverityEmergency:
		return "EMERGENCY"
	case SeverityAlert:
		return "ALERT"
	case SeverityCritical:
		return "CRITICAL"
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityNotice:
		return "NOTICE"
	case SeverityInformational:
		return "INFO"
	case SeverityDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("SEVERITY(%d)", uint8(s))
	}
}

// Source carries request-correlation metadata for an event.
type Source struct {
	IP        string
	UserAgent string
	Subject   string
	RequestID string
}

// Event is a single audit trail entry. Chain fields (Hash, PreviousHash,
// Sequence) are populated by Chain.Seal and must not be set directly.
type Event struct {
	ID           uuid.UUID
	Timestamp    time.Time
	Kind         EventKind
	Severity     Severity
	Source       Source
	Method       string
	Path         string
	StatusCode   *uint16
	DurationMs   *uint64
	ServiceName  string
	Metadata     map[string]any
	Hash         string
	PreviousHash string
	Sequence     uint64
}

// NewEvent constructs an event ready to be sealed by a Chain.
func NewEvent(kind EventKind, severity Severity, serviceName string) Event {
	return Event{
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC(),
		Kind:        kind,
		Severity:    severity,
		ServiceName: serviceName,
	}
}

// WithSource attaches request-correlation metadata.
func (e Event) WithSource(source Source) Event {
	e.Source = source
	return e
}

// WithHTTP attaches HTTP request/response details.
func (e Event) WithHTTP(method, path string, statusCode uint16, durationMs uint64) Event {
	e.Method = method
	e.Path = path
	e.StatusCode = &statusCode
	e.DurationMs = &durationMs
	return e
}

// WithMetadata attaches arbitrary structured metadata.
func (e Event) WithMetadata(metadata map[string]any) Event {
	e.Metadata = metadata
	return e
}
