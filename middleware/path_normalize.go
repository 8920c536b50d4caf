package middleware

import (
	"regexp"
	"strings"
)

var (
	uuidLikeSegment = regexp.MustCompile(`^[0-9a-fA-F-]{8,}$`)
	numericSegment  = regexp.MustCompile(`^[0-9]+$`)
)

// Normalizer rewrites one path segment, or returns it unchanged.
type Normalizer func(segment string) string

// NormalizePath collapses dynamic path segments to stable placeholders
// so per-route rate limits and audit route patterns match regardless of
// the concrete ID in the URL: UUID-like segments become "{id}", pure
// numeric segments become "{n}". Extra normalizers run first, in order,
// on every segment, and win if one reports a change.
func NormalizePath(path string, extra ...Normalizer) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		segments[i] = normalizeSegment(seg, extra)
	}
	return strings.Join(segments, "/")
}

func normalizeSegment(seg string, extra []Normalizer) string {
	for _, n := range extra {
		if rewritten := n(seg); rewritten != seg {
			return rewritten
		}
	}
	switch {
	case numericSegment.MatchString(seg):
		return "{n}"
	case uuidLikeSegment.MatchString(seg):
		return "{id}"
	default:
		return seg
	}
}
