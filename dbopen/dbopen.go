// CLAUDE:SUMMARY Opens the covgate SQLite ledger: per-connection pragmas through the DSN, optional tracing driver, inline schema.
// Package dbopen opens the SQLite database backing the coverage ledger.
//
// Pragmas are passed as _pragma DSN parameters so that every pooled
// connection gets them, not only the first:
//
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//	foreign_keys = 1
//
// Usage:
//
//	db, err := dbopen.Open("data/covgate.db", dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
//
// With SQL tracing (driver registered by the trace package):
//
//	import _ "github.com/hazyhaar/covgate/trace"
//	db, err := dbopen.Open("data/covgate.db", dbopen.WithTrace())
package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Memory is the DSN of a private in-memory database.
const Memory = ":memory:"

type config struct {
	driver      string
	busyTimeout int
	mkdirAll    bool
	schemas     []string
	ping        bool
}

// Option customises Open.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithTrace routes statements through the "sqlite-trace" driver.
func WithTrace() Option { return WithDriver("sqlite-trace") }

// WithBusyTimeout sets busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues DDL to run once the database is open. Statements must be idempotent.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// WithoutPing skips the connectivity check.
func WithoutPing() Option { return func(c *config) { c.ping = false } }

// Open opens the SQLite database at path.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := config{driver: "sqlite", busyTimeout: 10_000, ping: true}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, dsn(path, cfg.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == Memory {
		db.SetMaxOpenConns(1)
	}

	ctx := context.Background()
	if cfg.ping {
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
		}
	}
	for _, s := range cfg.schemas {
		if _, err := db.ExecContext(ctx, s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}
	return db, nil
}

// dsn appends the pragma parameters understood by modernc.org/sqlite.
func dsn(path string, busyTimeout int) string {
	q := url.Values{}
	for _, p := range []string{
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", busyTimeout),
		"synchronous(NORMAL)",
		"foreign_keys(1)",
	} {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// OpenMemory opens an in-memory database for tests. The handle is closed
// through t.Cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(Memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
