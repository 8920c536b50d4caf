package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage is the relational audit backend. The audit_events table
// is append-only: Initialize installs Postgres RULEs that silently
// discard UPDATE/DELETE, so tampering requires superuser access to the
// rule catalog itself, not just table privileges.
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage wraps an existing pool. Call Initialize once at
// startup to create the table, indexes, and immutability rules.
func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Initialize creates the audit_events table, its sequence/timestamp
// indexes, and the RULEs blocking UPDATE/DELETE, if they don't already
// exist. Safe to call on every startup.
func (s *PostgresStorage) Initialize(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			kind TEXT NOT NULL,
			severity SMALLINT NOT NULL,
			source_ip TEXT,
			source_user_agent TEXT,
			source_subject TEXT,
			source_request_id TEXT,
			method TEXT,
			path TEXT,
			status_code SMALLINT,
			duration_ms BIGINT,
			service_name TEXT NOT NULL,
			metadata JSONB,
			hash TEXT NOT NULL,
			previous_hash TEXT,
			sequence BIGINT NOT NULL UNIQUE
		)
	`)
	if err != nil {
		return fmt.Errorf("creating audit_events table: %w", err)
	}

	if _, err := s.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_events_sequence ON audit_events (sequence)`); err != nil {
		return fmt.Errorf("creating sequence index: %w", err)
	}
	if _, err := s.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events (timestamp)`); err != nil {
		return fmt.Errorf("creating timestamp index: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_rules
				WHERE rulename = 'audit_no_update' AND tablename = 'audit_events'
			) THEN
				CREATE RULE audit_no_update AS ON UPDATE TO audit_events DO INSTEAD NOTHING;
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM pg_rules
				WHERE rulename = 'audit_no_delete' AND tablename = 'audit_events'
			) THEN
				CREATE RULE audit_no_delete AS ON DELETE TO audit_events DO INSTEAD NOTHING;
			END IF;
		END
		$$;
	`)
	if err != nil {
		return fmt.Errorf("creating immutability rules: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Append(ctx context.Context, event Event) error {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling audit metadata: %w", err)
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_events (
			id, timestamp, kind, severity,
			source_ip, source_user_agent, source_subject, source_request_id,
			method, path, status_code, duration_ms,
			service_name, metadata, hash, previous_hash, sequence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		event.ID, event.Timestamp, event.Kind.String(), int16(event.Severity.Syslog()),
		nullable(event.Source.IP), nullable(event.Source.UserAgent),
		nullable(event.Source.Subject), nullable(event.Source.RequestID),
		nullable(event.Method), nullable(event.Path),
		statusCodeParam(event.StatusCode), durationParam(event.DurationMs),
		event.ServiceName, metadata, event.Hash, nullable(event.PreviousHash), int64(event.Sequence),
	)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Latest(ctx context.Context) (*Event, error) {
	row := s.db.QueryRow(ctx, `SELECT * FROM audit_events ORDER BY sequence DESC LIMIT 1`)
	event, err := scanEventRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching latest audit event: %w", err)
	}
	return event, nil
}

func (s *PostgresStorage) QueryRange(ctx context.Context, from, to time.Time, limit int) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT * FROM audit_events
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY sequence ASC LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

func (s *PostgresStorage) VerifyChain(ctx context.Context, fromSequence uint64) (*uint64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT * FROM audit_events WHERE sequence >= $1 ORDER BY sequence ASC
	`, int64(fromSequence))
	if err != nil {
		return nil, fmt.Errorf("fetching audit events for verification: %w", err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, err
	}
	return verifyStored(events)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusCodeParam(code *uint16) *int16 {
	if code == nil {
		return nil
	}
	v := int16(*code)
	return &v
}

func durationParam(d *uint64) *int64 {
	if d == nil {
		return nil
	}
	v := int64(*d)
	return &v
}

type auditEventRow struct {
	id               uuid.UUID
	timestamp        time.Time
	kind             string
	severity         int16
	sourceIP         *string
	sourceUserAgent  *string
	sourceSubject    *string
	sourceRequestID  *string
	method           *string
	path             *string
	statusCode       *int16
	durationMs       *int64
	serviceName      string
	metadata         []byte
	hash             *string
	previousHash     *string
	sequence         int64
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (*Event, error) {
	var r auditEventRow
	err := row.Scan(
		&r.id, &r.timestamp, &r.kind, &r.severity,
		&r.sourceIP, &r.sourceUserAgent, &r.sourceSubject, &r.sourceRequestID,
		&r.method, &r.path, &r.statusCode, &r.durationMs,
		&r.serviceName, &r.metadata, &r.hash, &r.previousHash, &r.sequence,
	)
	if err != nil {
		return nil, err
	}
	event := eventFromRow(r)
	return &event, nil
}

func scanEventRows(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var r auditEventRow
		if err := rows.Scan(
			&r.id, &r.timestamp, &r.kind, &r.severity,
			&r.sourceIP, &r.sourceUserAgent, &r.sourceSubject, &r.sourceRequestID,
			&r.method, &r.path, &r.statusCode, &r.durationMs,
			&r.serviceName, &r.metadata, &r.hash, &r.previousHash, &r.sequence,
		); err != nil {
			return nil, fmt.Errorf("scanning audit event row: %w", err)
		}
		events = append(events, eventFromRow(r))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func eventFromRow(r auditEventRow) Event {
	event := Event{
		ID:          r.id,
		Timestamp:   r.timestamp,
		Kind:        ParseKind(r.kind),
		Severity:    Severity(r.severity),
		ServiceName: r.serviceName,
		Sequence:    uint64(r.sequence),
	}
	event.Source = Source{
		IP:        deref(r.sourceIP),
		UserAgent: deref(r.sourceUserAgent),
		Subject:   deref(r.sourceSubject),
		RequestID: deref(r.sourceRequestID),
	}
	event.Method = deref(r.method)
	event.Path = deref(r.path)
	if r.statusCode != nil {
		code := uint16(*r.statusCode)
		event.StatusCode = &code
	}
	if r.durationMs != nil {
		d := uint64(*r.durationMs)
		event.DurationMs = &d
	}
	if r.hash != nil {
		event.Hash = *r.hash
	}
	if r.previousHash != nil {
		event.PreviousHash = *r.previousHash
	}
	if len(r.metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(r.metadata, &meta); err == nil {
			event.Metadata = meta
		}
	}
	return event
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
