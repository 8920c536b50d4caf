// Package ids provides typed, time-sortable identifiers for distributed
// tracing. Request IDs encode a UUIDv7 as base32 Crockford so that
// lexicographic order matches creation order.
package ids

import (
	"encoding/base32"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Prefix is the fixed three-character component prefix for request identifiers.
const Prefix = "req"

var crockford = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// RequestId is a prefixed, base32-encoded UUIDv7. It prints as
// "req_<26-char-base32>" and sorts lexicographically in time order.
type RequestId struct {
	uuid uuid.UUID
}

// New creates a fresh request identifier from a UUIDv7.
func New() RequestId {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system RNG is broken; fall back to
		// a random v4 rather than panic on a request path.
		id = uuid.New()
	}
	return RequestId{uuid: id}
}

// String renders the canonical "req_<suffix>" form.
func (r RequestId) String() string {
	return Prefix + "_" + crockford.EncodeToString(r.uuid[:])
}

// Parse validates and decodes a request id string, enforcing the exact prefix.
func Parse(s string) (RequestId, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return RequestId{}, fmt.Errorf("ids: malformed request id %q", s)
	}
	if parts[0] != Prefix {
		return RequestId{}, fmt.Errorf("ids: invalid prefix %q, want %q", parts[0], Prefix)
	}
	decoded, err := crockford.DecodeString(parts[1])
	if err != nil || len(decoded) != 16 {
		return RequestId{}, fmt.Errorf("ids: invalid request id suffix %q: %w", parts[1], err)
	}
	var u uuid.UUID
	copy(u[:], decoded)
	return RequestId{uuid: u}, nil
}

// IsValid reports whether s is a well-formed request id.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// HeaderName is the response/request header request ids are carried in.
const HeaderName = "X-Request-Id"

// MakeRequestId produces fresh request ids for middleware that needs a
// generator function rather than a bare constructor (mirrors the
// tower-http MakeRequestId adapter shape from the source framework).
type MakeRequestId struct{}

// Make returns a new header-ready request id string.
func (MakeRequestId) Make(*http.Request) string {
	return New().String()
}
