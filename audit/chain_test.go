package audit

import "testing"

func TestSealSetsChainFields(t *testing.T) {
	c := NewChain("svc")
	event := NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")

	sealed := c.Seal(event)

	if sealed.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", sealed.Sequence)
	}
	if sealed.PreviousHash != "" {
		t.Fatalf("previous hash of first event = %q, want empty", sealed.PreviousHash)
	}
	if sealed.Hash == "" {
		t.Fatal("expected a non-empty hash")
	}
	if sealed.ServiceName != "svc" {
		t.Fatalf("service name = %q, want svc", sealed.ServiceName)
	}
}

func TestSealLinksSuccessiveEvents(t *testing.T) {
	c := NewChain("svc")
	first := c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc"))
	second := c.Seal(NewEvent(KindAuthLoginFailed, SeverityWarning, "svc"))

	if second.PreviousHash != first.Hash {
		t.Fatalf("second.PreviousHash = %q, want %q", second.PreviousHash, first.Hash)
	}
	if second.Sequence != 2 {
		t.Fatalf("sequence = %d, want 2", second.Sequence)
	}
}

func TestSealIsDeterministicForIdenticalInput(t *testing.T) {
	event := NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")

	c1 := NewChain("svc")
	c2 := NewChain("svc")

	h1 := c1.Seal(event)
	h2 := c2.Seal(event)

	if h1.Hash != h2.Hash {
		t.Fatalf("hashes diverged for identical input: %q vs %q", h1.Hash, h2.Hash)
	}
}

func TestResumeChainContinuesSequence(t *testing.T) {
	c := ResumeChain("svc", "deadbeef", 41)
	sealed := c.Seal(NewEvent(KindAuthLogout, SeverityInformational, "svc"))

	if sealed.Sequence != 42 {
		t.Fatalf("sequence = %d, want 42", sealed.Sequence)
	}
	if sealed.PreviousHash != "deadbeef" {
		t.Fatalf("previous hash = %q, want deadbeef", sealed.PreviousHash)
	}
}

func TestVerifyChainAcceptsValidChain(t *testing.T) {
	c := NewChain("svc")
	events := []Event{
		c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")),
		c.Seal(NewEvent(KindAuthLogout, SeverityInformational, "svc")),
		c.Seal(NewEvent(KindAuthLoginFailed, SeverityWarning, "svc")),
	}

	if err := VerifyChain(events); err != nil {
		t.Fatalf("unexpected verification error: %v", err)
	}
}

func TestVerifyChainAcceptsEmptyAndSingleEvent(t *testing.T) {
	if err := VerifyChain(nil); err != nil {
		t.Fatalf("empty chain should verify: %v", err)
	}

	c := NewChain("svc")
	events := []Event{c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc"))}
	if err := VerifyChain(events); err != nil {
		t.Fatalf("single event chain should verify: %v", err)
	}
}

func TestVerifyChainDetectsTamperedLink(t *testing.T) {
	c := NewChain("svc")
	events := []Event{
		c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")),
		c.Seal(NewEvent(KindAuthLogout, SeverityInformational, "svc")),
	}
	events[1].PreviousHash = "tampered"

	err := VerifyChain(events)
	if err == nil {
		t.Fatal("expected verification to fail on tampered link")
	}
	verr, ok := err.(*VerificationError)
	if !ok {
		t.Fatalf("expected *VerificationError, got %T", err)
	}
	if verr.Sequence != events[1].Sequence {
		t.Fatalf("broken sequence = %d, want %d", verr.Sequence, events[1].Sequence)
	}
}

func TestVerifyChainDetectsTamperedHash(t *testing.T) {
	c := NewChain("svc")
	events := []Event{
		c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")),
		c.Seal(NewEvent(KindAuthLogout, SeverityInformational, "svc")),
	}
	events[0].Hash = "forged"
	events[1].PreviousHash = "forged"

	if err := VerifyChain(events); err == nil {
		t.Fatal("expected verification to fail when a hash doesn't match its recomputation")
	}
}
