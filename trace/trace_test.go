package trace

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/hazyhaar/covgate/kit"
)

type captured struct {
	mu      sync.Mutex
	entries []*Entry
}

func (c *captured) Record(e *Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

func TestDriverRegistered(t *testing.T) {
	for _, d := range sql.Drivers() {
		if d == DriverName {
			return
		}
	}
	t.Fatal("sqlite-trace driver not registered")
}

func TestTracingDriver_RecordsStatements(t *testing.T) {
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rec := &captured{}
	SetRecorder(rec)
	defer SetRecorder(nil)

	ctx := kit.WithTraceID(context.Background(), "feedc0de")
	if _, err := db.ExecContext(ctx, "CREATE TABLE snapshots (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO snapshots VALUES ('a')"); err != nil {
		t.Fatal(err)
	}
	var id string
	if err := db.QueryRowContext(ctx, "SELECT id FROM snapshots").Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != "a" {
		t.Fatalf("query result: got %q", id)
	}
	// Duplicate key fails at execution time, after a successful prepare.
	if _, err := db.ExecContext(ctx, "INSERT INTO snapshots VALUES ('a')"); err == nil {
		t.Fatal("expected unique constraint violation")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var sawQuery, sawError bool
	for _, e := range rec.entries {
		if e.TraceID != "feedc0de" {
			t.Errorf("entry %q: trace id = %q", e.Query, e.TraceID)
		}
		if e.Op == OpQuery && strings.HasPrefix(e.Query, "SELECT") {
			sawQuery = true
		}
		if e.Error != "" && e.Op == OpExec {
			sawError = true
		}
	}
	if !sawQuery {
		t.Error("SELECT not recorded as Query")
	}
	if !sawError {
		t.Error("duplicate INSERT not recorded with an error")
	}
}

func TestSetRecorder_Reset(t *testing.T) {
	SetRecorder(RecorderFunc(func(*Entry) {}))
	if getRecorder() == nil {
		t.Fatal("recorder not installed")
	}
	SetRecorder(nil)
	if getRecorder() != nil {
		t.Fatal("expected nil after reset")
	}
}

func TestObserve_SkipsFastPragmas(t *testing.T) {
	rec := &captured{}
	SetRecorder(rec)
	defer SetRecorder(nil)

	observe(context.Background(), OpExec, "PRAGMA busy_timeout = 10", 0, nil)
	observe(context.Background(), OpQuery, "SELECT 1", 0, nil)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entries) != 1 || rec.entries[0].Query != "SELECT 1" {
		t.Fatalf("entries = %+v, want only SELECT 1", rec.entries)
	}
}
