package audit

import "testing"

func TestEventKindStringRoundTrip(t *testing.T) {
	cases := []EventKind{
		KindAuthLoginSuccess,
		KindAuthLoginFailed,
		KindAuthAccountLocked,
		KindHTTPRequest,
		CustomKind("user.delete"),
	}

	for _, kind := range cases {
		if got := ParseKind(kind.String()); got.String() != kind.String() {
			t.Errorf("ParseKind(%q).String() = %q, want %q", kind.String(), got.String(), kind.String())
		}
	}
}

func TestCustomKindStringHasPrefix(t *testing.T) {
	kind := CustomKind("user.delete")
	if got := kind.String(); got != "custom.user.delete" {
		t.Fatalf("String() = %q, want custom.user.delete", got)
	}
}

func TestParseKindUnknownBecomesCustom(t *testing.T) {
	kind := ParseKind("something.unseen")
	if kind.String() != "custom.something.unseen" {
		t.Fatalf("String() = %q, want custom.something.unseen", kind.String())
	}
}

func TestSeveritySyslogValues(t *testing.T) {
	cases := map[Severity]uint8{
		SeverityEmergency:     0,
		SeverityAlert:         1,
		SeverityCritical:      2,
		SeverityError:         3,
		SeverityWarning:       4,
		SeverityNotice:        5,
		SeverityInformational: 6,
		SeverityDebug:         7,
	}
	for sev, want := range cases {
		if got := sev.Syslog(); got != want {
			t.Errorf("%v.Syslog() = %d, want %d", sev, got, want)
		}
	}
}

func TestNewEventDefaults(t *testing.T) {
	event := NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")

	if event.ID.String() == "" {
		t.Fatal("expected a generated ID")
	}
	if event.Timestamp.IsZero() {
		t.Fatal("expected a non-zero timestamp")
	}
	if event.ServiceName != "svc" {
		t.Fatalf("service name = %q, want svc", event.ServiceName)
	}
	if event.Hash != "" || event.Sequence != 0 {
		t.Fatal("expected chain fields to be unset before sealing")
	}
}

func TestWithHTTPSetsPointerFields(t *testing.T) {
	event := NewEvent(KindHTTPRequest, SeverityInformational, "svc").WithHTTP("GET", "/widgets", 200, 12)

	if event.Method != "GET" || event.Path != "/widgets" {
		t.Fatalf("unexpected method/path: %q %q", event.Method, event.Path)
	}
	if event.StatusCode == nil || *event.StatusCode != 200 {
		t.Fatal("expected status code 200")
	}
	if event.DurationMs == nil || *event.DurationMs != 12 {
		t.Fatal("expected duration 12ms")
	}
}

func TestWithSourceAndMetadata(t *testing.T) {
	source := Source{IP: "10.0.0.1", Subject: "user:42"}
	event := NewEvent(KindAuthLoginFailed, SeverityWarning, "svc").
		WithSource(source).
		WithMetadata(map[string]any{"reason": "bad_password"})

	if event.Source.IP != "10.0.0.1" || event.Source.Subject != "user:42" {
		t.Fatalf("unexpected source: %+v", event.Source)
	}
	if event.Metadata["reason"] != "bad_password" {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
}
