package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveEventsWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	c := NewChain("svc")
	events := []Event{
		c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")),
		c.Seal(NewEvent(KindAuthLogout, SeverityInformational, "svc")),
	}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	path, err := ArchiveEvents(events, dir, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("archive written outside requested directory: %q", path)
	}
	if filepath.Base(path) != "audit_archive_20260731_120000.jsonl" {
		t.Fatalf("unexpected archive filename: %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}

	var lines int
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var rec archiveRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		lines++
	}
	if lines != len(events) {
		t.Fatalf("wrote %d lines, want %d", lines, len(events))
	}
}

func TestArchiveEventsCreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")
	c := NewChain("svc")
	events := []Event{c.Seal(NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc"))}

	path, err := ArchiveEvents(events, dir, time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected archive file to exist: %v", err)
	}
}

func TestArchiveEventsRejectsEmptySlice(t *testing.T) {
	if _, err := ArchiveEvents(nil, t.TempDir(), time.Now().UTC()); err == nil {
		t.Fatal("expected an error for an empty event slice")
	}
}
