package audit

import (
	"strconv"
	"strings"
	"testing"

	"github.com/aras-services/svccore/config"
)

func TestFormatRFC5424IncludesPriAndStructuredData(t *testing.T) {
	sender := NewSyslogSender(config.SyslogConfig{
		Transport: "udp",
		Address:   "127.0.0.1:5514",
		Facility:  10,
		AppName:   "test-svc",
	})

	code := uint16(401)
	event := NewEvent(KindAuthLoginFailed, SeverityWarning, "test-svc").
		WithSource(Source{IP: "203.0.113.5", Subject: "user:42", RequestID: "req-1"}).
		WithHTTP("POST", "/login", code, 7)
	event.Hash = "abc123"
	event.Sequence = 9

	msg := sender.formatRFC5424(event)

	wantPri := 10*8 + int(SeverityWarning.Syslog())
	if !strings.HasPrefix(msg, "<"+strconv.Itoa(wantPri)+">1 ") {
		t.Fatalf("unexpected PRI/version prefix: %q", msg)
	}
	if !strings.Contains(msg, "test-svc") {
		t.Fatalf("expected app-name in message: %q", msg)
	}
	if !strings.Contains(msg, `src_ip="203.0.113.5"`) {
		t.Fatalf("expected src_ip structured data: %q", msg)
	}
	if !strings.Contains(msg, `subject="user:42"`) {
		t.Fatalf("expected subject structured data: %q", msg)
	}
	if !strings.Contains(msg, `status="401"`) {
		t.Fatalf("expected status structured data: %q", msg)
	}
	if !strings.Contains(msg, "seq=9") {
		t.Fatalf("expected sequence in message body: %q", msg)
	}
}

func TestFormatRFC5424MinimalStructuredDataWhenEmpty(t *testing.T) {
	sender := NewSyslogSender(config.SyslogConfig{Facility: 0, AppName: "svc"})
	event := NewEvent(KindAuthLogout, SeverityInformational, "svc")

	msg := sender.formatRFC5424(event)
	if !strings.Contains(msg, "[audit@49610 seq=\"0\"]") {
		t.Fatalf("expected a minimal structured-data block with just seq: %q", msg)
	}
}

func TestEscapeSDValue(t *testing.T) {
	cases := map[string]string{
		`plain`:        `plain`,
		`has "quotes"`: `has \"quotes\"`,
		`back\slash`:   `back\\slash`,
		`bracket]`:     `bracket\]`,
	}
	for in, want := range cases {
		if got := escapeSDValue(in); got != want {
			t.Errorf("escapeSDValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewSyslogSenderDefaultsToUDPAndAppName(t *testing.T) {
	sender := NewSyslogSender(config.SyslogConfig{Transport: "", AppName: ""})
	if sender.network != "udp" {
		t.Fatalf("network = %q, want udp", sender.network)
	}
	if sender.appName != "svccore" {
		t.Fatalf("appName = %q, want svccore", sender.appName)
	}
}

func TestNewSyslogSenderTCP(t *testing.T) {
	sender := NewSyslogSender(config.SyslogConfig{Transport: "tcp"})
	if sender.network != "tcp" {
		t.Fatalf("network = %q, want tcp", sender.network)
	}
}
