package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArchiveEvents writes events as newline-delimited JSON to
// archiveDir/audit_archive_YYYYMMDD_HHMMSS.jsonl, creating archiveDir if
// needed, and returns the path written. Intended to run immediately
// before a retention sweep permanently deletes the events from storage.
func ArchiveEvents(events []Event, archiveDir string, now time.Time) (string, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("no events to archive")
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory %s: %w", archiveDir, err)
	}

	filename := fmt.Sprintf("audit_archive_%s.jsonl", now.Format("20060102_150405"))
	path := filepath.Join(archiveDir, filename)

	var buf bytes.Buffer
	for _, event := range events {
		line, err := json.Marshal(toArchiveRecord(event))
		if err != nil {
			return "", fmt.Errorf("serializing audit event for archive: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing archive file %s: %w", path, err)
	}

	return path, nil
}

// archiveRecord is the JSONL wire shape: stable field names independent
// of Go's internal Event layout, since this file outlives the code that
// wrote it.
type archiveRecord struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Kind         string         `json:"kind"`
	Severity     uint8          `json:"severity"`
	SourceIP     string         `json:"source_ip,omitempty"`
	UserAgent    string         `json:"source_user_agent,omitempty"`
	Subject      string         `json:"source_subject,omitempty"`
	RequestID    string         `json:"source_request_id,omitempty"`
	Method       string         `json:"method,omitempty"`
	Path         string         `json:"path,omitempty"`
	StatusCode   *uint16        `json:"status_code,omitempty"`
	DurationMs   *uint64        `json:"duration_ms,omitempty"`
	ServiceName  string         `json:"service_name"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Hash         string         `json:"hash"`
	PreviousHash string         `json:"previous_hash,omitempty"`
	Sequence     uint64         `json:"sequence"`
}

func toArchiveRecord(e Event) archiveRecord {
	return archiveRecord{
		ID:           e.ID.String(),
		Timestamp:    e.Timestamp,
		Kind:         e.Kind.String(),
		Severity:     e.Severity.Syslog(),
		SourceIP:     e.Source.IP,
		UserAgent:    e.Source.UserAgent,
		Subject:      e.Source.Subject,
		RequestID:    e.Source.RequestID,
		Method:       e.Method,
		Path:         e.Path,
		StatusCode:   e.StatusCode,
		DurationMs:   e.DurationMs,
		ServiceName:  e.ServiceName,
		Metadata:     e.Metadata,
		Hash:         e.Hash,
		PreviousHash: e.PreviousHash,
		Sequence:     e.Sequence,
	}
}
