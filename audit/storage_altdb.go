package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aras-services/svccore/pool"
)

// AltDbStorage is the document-store audit backend, backed by a
// SurrealDB connection. Events are stored as plain documents in an
// audit_events table; immutability is enforced at the application layer
// (no UPDATE/DELETE statement is ever issued against this table) rather
// than by a database-side rule, since SurrealQL has no RULE-style
// mechanism equivalent to Postgres's.
type AltDbStorage struct {
	conn *pool.AltDbConn
}

// NewAltDbStorage wraps an existing SurrealDB connection.
func NewAltDbStorage(conn *pool.AltDbConn) *AltDbStorage {
	return &AltDbStorage{conn: conn}
}

type altDbDocument struct {
	ID           string         `json:"id,omitempty"`
	EventID      string         `json:"event_id"`
	Timestamp    string         `json:"timestamp"`
	Kind         string         `json:"kind"`
	Severity     int            `json:"severity"`
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

func toDocument(event Event) altDbDocument {
	return altDbDocument{
		EventID:      event.ID.String(),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		Kind:         event.Kind.String(),
		Severity:     int(event.Severity.Syslog()),
		SourceIP:     event.Source.IP,
		UserAgent:    event.Source.UserAgent,
		Subject:      event.Source.Subject,
		RequestID:    event.Source.RequestID,
		Method:       event.Method,
		Path:         event.Path,
		StatusCode:   event.StatusCode,
		DurationMs:   event.DurationMs,
		ServiceName:  event.ServiceName,
		Metadata:     event.Metadata,
		Hash:         event.Hash,
		PreviousHash: event.PreviousHash,
		Sequence:     event.Sequence,
	}
}

func (d altDbDocument) toEvent() (Event, error) {
	id, err := uuid.Parse(d.EventID)
	if err != nil {
		return Event{}, fmt.Errorf("parsing event id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, d.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("parsing event timestamp: %w", err)
	}
	return Event{
		ID:        id,
		Timestamp: ts,
		Kind:      ParseKind(d.Kind),
		Severity:  Severity(d.Severity),
		Source: Source{
			IP:        d.SourceIP,
			UserAgent: d.UserAgent,
			Subject:   d.Subject,
			RequestID: d.RequestID,
		},
		Method:       d.Method,
		Path:         d.Path,
		StatusCode:   d.StatusCode,
		DurationMs:   d.DurationMs,
		ServiceName:  d.ServiceName,
		Metadata:     d.Metadata,
		Hash:         d.Hash,
		PreviousHash: d.PreviousHash,
		Sequence:     d.Sequence,
	}, nil
}

func (s *AltDbStorage) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(toDocument(event))
	if err != nil {
		return fmt.Errorf("marshaling audit document: %w", err)
	}
	statement := fmt.Sprintf("CREATE audit_events CONTENT %s;", payload)
	if _, err := s.conn.Query(ctx, statement); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

func (s *AltDbStorage) Latest(ctx context.Context) (*Event, error) {
	raw, err := s.conn.Query(ctx, "SELECT * FROM audit_events ORDER BY sequence DESC LIMIT 1;")
	if err != nil {
		return nil, fmt.Errorf("fetching latest audit event: %w", err)
	}
	docs, err := parseAltDbResult(raw)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	event, err := docs[0].toEvent()
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *AltDbStorage) QueryRange(ctx context.Context, from, to time.Time, limit int) ([]Event, error) {
	statement := fmt.Sprintf(
		"SELECT * FROM audit_events WHERE timestamp >= %q AND timestamp <= %q ORDER BY sequence ASC LIMIT %d;",
		from.Format(time.RFC3339Nano), to.Format(time.RFC3339Nano), limit,
	)
	raw, err := s.conn.Query(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	docs, err := parseAltDbResult(raw)
	if err != nil {
		return nil, err
	}
	return eventsFromDocuments(docs)
}

func (s *AltDbStorage) VerifyChain(ctx context.Context, fromSequence uint64) (*uint64, error) {
	statement := fmt.Sprintf("SELECT * FROM audit_events WHERE sequence >= %d ORDER BY sequence ASC;", fromSequence)
	raw, err := s.conn.Query(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("fetching audit events for verification: %w", err)
	}
	docs, err := parseAltDbResult(raw)
	if err != nil {
		return nil, err
	}
	events, err := eventsFromDocuments(docs)
	if err != nil {
		return nil, err
	}
	return verifyStored(events)
}

func eventsFromDocuments(docs []altDbDocument) ([]Event, error) {
	events := make([]Event, 0, len(docs))
	for _, d := range docs {
		event, err := d.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// surrealResult mirrors the shape of SurrealDB's HTTP /sql response: a
// JSON array with one entry per statement, each carrying its own result
// array and status.
type surrealResult struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

func parseAltDbResult(raw []byte) ([]altDbDocument, error) {
	var results []surrealResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decoding surrealdb response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	last := results[len(results)-1]
	if last.Status != "" && !strings.EqualFold(last.Status, "OK") {
		return nil, fmt.Errorf("surrealdb statement failed: %s", last.Status)
	}

	var docs []altDbDocument
	if err := json.Unmarshal(last.Result, &docs); err != nil {
		return nil, fmt.Errorf("decoding surrealdb result set: %w", err)
	}
	return docs, nil
}
