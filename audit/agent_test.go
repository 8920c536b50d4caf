package audit

import (
	"context"
	"testing"
	"time"
)

func waitForEvents(t *testing.T, storage *memoryStorage, n int) []Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		events := storage.snapshot()
		if len(events) >= n {
			return events
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAgentSealsEventsInSubmissionOrder(t *testing.T) {
	storage := newMemoryStorage()
	agent := NewAgent("svc", storage, nil, nil, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent.Start(ctx)

	agent.Submit(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc"))
	agent.Submit(NewEvent(KindAuthLogout, SeverityInformational, "svc"))

	events := waitForEvents(t, storage, 2)
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("unexpected sequence order: %d, %d", events[0].Sequence, events[1].Sequence)
	}
	if events[1].PreviousHash != events[0].Hash {
		t.Fatal("expected second event to chain to the first")
	}
}

func TestAgentResumesChainFromStorage(t *testing.T) {
	storage := newMemoryStorage()
	seed := NewChain("svc").Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc"))
	storage.events = append(storage.events, seed)

	agent := NewAgent("svc", storage, nil, nil, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent.Start(ctx)

	agent.Submit(NewEvent(KindAuthLogout, SeverityInformational, "svc"))

	events := waitForEvents(t, storage, 2)
	resumed := events[1]
	if resumed.Sequence != 2 {
		t.Fatalf("sequence = %d, want 2", resumed.Sequence)
	}
	if resumed.PreviousHash != seed.Hash {
		t.Fatalf("previous hash = %q, want %q", resumed.PreviousHash, seed.Hash)
	}
}

func TestAgentPersistsRemainingEventsAfterAppendError(t *testing.T) {
	storage := newMemoryStorage()
	storage.failN = 1
	tracker := NewFailureTracker(failureAlertTestConfig(), "svc", nil)

	agent := NewAgent("svc", storage, nil, tracker, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent.Start(ctx)

	agent.Submit(NewEvent(KindAuthLoginFailed, SeverityWarning, "svc"))
	agent.Submit(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc"))

	waitForEvents(t, storage, 1)
}
