package audit

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"
)

// Chain maintains the running hash-chain state (previous hash + sequence
// counter) for one service's audit trail. It is not safe for concurrent
// use: Agent owns one Chain exclusively and calls Seal from a single
// goroutine, which is what gives the chain its ordering guarantee.
type Chain struct {
	previousHash string
	sequence     uint64
	serviceName  string
}

// NewChain starts a fresh chain with no previous hash.
func NewChain(serviceName string) *Chain {
	return &Chain{serviceName: serviceName}
}

// ResumeChain continues an existing chain from its last known tip, as
// read back from storage at startup.
func ResumeChain(serviceName, previousHash string, sequence uint64) *Chain {
	return &Chain{serviceName: serviceName, previousHash: previousHash, sequence: sequence}
}

// Sequence reports the chain's current sequence number.
func (c *Chain) Sequence() uint64 { return c.sequence }

// PreviousHash reports the chain's current tip hash, or "" at genesis.
func (c *Chain) PreviousHash() string { return c.previousHash }

// Seal assigns the next sequence number and hash to event, chaining it to
// the previous tip, and advances the chain. The sealed event is returned.
func (c *Chain) Seal(event Event) Event {
	c.sequence++
	event.Sequence = c.sequence
	event.PreviousHash = c.previousHash
	event.ServiceName = c.serviceName

	hash := computeHash(event)
	event.Hash = hash
	c.previousHash = hash

	return event
}

// computeHash covers: sequence, previous_hash, id, timestamp, kind,
// severity, service_name, method, path, status_code, and source.subject.
// Every field folded in is part of the tamper-evidence guarantee; adding
// a field here is a breaking change to every previously sealed event.
func computeHash(event Event) string {
	h := blake3.New(32, nil)

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], event.Sequence)
	h.Write(seqBuf[:])

	if event.PreviousHash != "" {
		h.Write([]byte(event.PreviousHash))
	}

	h.Write(event.ID[:])
	h.Write([]byte(event.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00")))
	h.Write([]byte(event.Kind.String()))
	h.Write([]byte{event.Severity.Syslog()})
	h.Write([]byte(event.ServiceName))

	if event.Method != "" {
		h.Write([]byte(event.Method))
	}
	if event.Path != "" {
		h.Write([]byte(event.Path))
	}
	if event.StatusCode != nil {
		var codeBuf [2]byte
		binary.LittleEndian.PutUint16(codeBuf[:], *event.StatusCode)
		h.Write(codeBuf[:])
	}
	if event.Source.Subject != "" {
		h.Write([]byte(event.Source.Subject))
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// VerificationError reports the sequence number at which a chain's
// integrity check failed.
type VerificationError struct {
	Sequence             uint64
	ExpectedPreviousHash string
	ActualPreviousHash   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("audit chain broken at sequence %d: expected previous_hash %q, got %q",
		e.Sequence, e.ExpectedPreviousHash, e.ActualPreviousHash)
}

// VerifyChain recomputes hashes for events (which must be in sequence
// order) and confirms every link matches. It reports the first broken
// link, if any. A slice starting at sequence 1 must begin with an empty
// previous hash; a slice starting later takes its first event's
// previous hash as given, since the predecessor is not in the slice.
func VerifyChain(events []Event) error {
	var expectedPrev string
	if len(events) > 0 && events[0].Sequence > 1 {
		expectedPrev = events[0].PreviousHash
	}
	for _, event := range events {
		if event.PreviousHash != expectedPrev {
			return &VerificationError{
				Sequence:             event.Sequence,
				ExpectedPreviousHash: expectedPrev,
				ActualPreviousHash:   event.PreviousHash,
			}
		}

		recomputed := computeHash(event)
		if event.Hash != recomputed {
			return &VerificationError{
				Sequence:             event.Sequence,
				ExpectedPreviousHash: expectedPrev,
				ActualPreviousHash:   event.PreviousHash,
			}
		}

		expectedPrev = event.Hash
	}
	return nil
}
