package audit

import (
	"context"
	"time"
)

// Storage persists sealed events and answers the queries the chain agent
// and verification tooling need. Implementations must never allow an
// append to silently drop a field the hash chain depends on.
type Storage interface {
	Append(ctx context.Context, event Event) error
	Latest(ctx context.Context) (*Event, error)
	QueryRange(ctx context.Context, from, to time.Time, limit int) ([]Event, error)
	VerifyChain(ctx context.Context, fromSequence uint64) (*uint64, error)
}

// verifyStored runs VerifyChain over events fetched from a Storage
// starting at fromSequence, returning the first broken sequence if any.
// Shared by every Storage implementation's VerifyChain method.
func verifyStored(events []Event) (*uint64, error) {
	if err := VerifyChain(events); err != nil {
		verr, ok := err.(*VerificationError)
		if !ok {
			return nil, err
		}
		seq := verr.Sequence
		return &seq, nil
	}
	return nil, nil
}
