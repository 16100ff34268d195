// Package store provides the SQLite persistence layer for the coverage ledger.
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/hazyhaar/covgate/dbopen"
	"github.com/hazyhaar/covgate/idgen"
)

// Store is the coverage ledger database handle.
type Store struct {
	DB *sql.DB

	newID idgen.Generator
	now   func() time.Time

	mu   sync.Mutex
	last int64 // last created_at handed out, unix micros
}

// Open opens (or creates) the ledger database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	s := New(db)
	if err := s.seedClock(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database whose schema has been applied.
func New(db *sql.DB) *Store {
	return &Store{
		DB:    db,
		newID: idgen.Default,
		now:   time.Now,
	}
}

// SetClock replaces the wall clock used to stamp new snapshots.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetIDGenerator replaces the snapshot ID generator.
func (s *Store) SetIDGenerator(gen idgen.Generator) {
	s.mu.Lock()
	s.newID = gen
	s.mu.Unlock()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// seedClock loads the newest created_at so stamps stay monotonic across restarts.
func (s *Store) seedClock(ctx context.Context) error {
	var last sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, `SELECT MAX(created_at) FROM snapshots`).Scan(&last); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = last.Int64
	s.mu.Unlock()
	return nil
}

// stamp returns a strictly increasing creation time in unix micros, so
// insertion order and created_at order agree even within one microsecond.
func (s *Store) stamp() (string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixMicro()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return s.newID(), ts
}
