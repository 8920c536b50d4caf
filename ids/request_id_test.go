package ids

import (
	"regexp"
	"testing"
	"time"
)

var reqIDPattern = regexp.MustCompile(`^req_[0-9a-z]{26}$`)

func TestNewMatchesPattern(t *testing.T) {
	id := New()
	if !reqIDPattern.MatchString(id.String()) {
		t.Fatalf("request id %q does not match %s", id.String(), reqIDPattern)
	}
}

func TestRoundTrip(t *testing.T) {
	id := New()
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.String() != id.String() {
		t.Fatalf("round trip mismatch: %s != %s", parsed.String(), id.String())
	}
}

func TestParseWrongPrefix(t *testing.T) {
	id := New()
	bad := "usr_" + id.String()[4:]
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for wrong prefix")
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"", "req_", "req_invalid!!", "notarequestid"} {
		if IsValid(s) {
			t.Fatalf("%q should not be valid", s)
		}
	}
}

func TestOrderingMatchesTime(t *testing.T) {
	first := New()
	time.Sleep(2 * time.Millisecond)
	second := New()
	if !(first.String() < second.String()) {
		t.Fatalf("expected %s < %s", first.String(), second.String())
	}
}

func TestMakeRequestId(t *testing.T) {
	m := MakeRequestId{}
	got := m.Make(nil)
	if !reqIDPattern.MatchString(got) {
		t.Fatalf("generated id %q does not match pattern", got)
	}
}
