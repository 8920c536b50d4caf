package audit

import (
	"context"
	"sync"
	"time"
)

// memoryStorage is a minimal in-process Storage used across this
// package's tests; it is not part of the public API.
type memoryStorage struct {
	mu     sync.Mutex
	events []Event
	failN  int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{}
}

func (m *memoryStorage) Append(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return errFakeAppend
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStorage) Latest(_ context.Context) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil, nil
	}
	e := m.events[len(m.events)-1]
	return &e, nil
}

func (m *memoryStorage) QueryRange(_ context.Context, from, to time.Time, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if (e.Timestamp.Equal(from) || e.Timestamp.After(from)) && (e.Timestamp.Equal(to) || e.Timestamp.Before(to)) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryStorage) VerifyChain(_ context.Context, fromSequence uint64) (*uint64, error) {
	m.mu.Lock()
	var relevant []Event
	for _, e := range m.events {
		if e.Sequence >= fromSequence {
			relevant = append(relevant, e)
		}
	}
	m.mu.Unlock()
	return verifyStored(relevant)
}

func (m *memoryStorage) snapshot() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

type fakeAppendError struct{}

func (fakeAppendError) Error() string { return "fake append failure" }

var errFakeAppend error = fakeAppendError{}
