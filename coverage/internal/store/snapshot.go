// CLAUDE:SUMMARY Ledger queries: append, latest by key, full history, base-branch backfill window, discovery.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hazyhaar/covgate/dbopen"
)

// Key identifies a coverage series. All parts are case-sensitive.
type Key struct {
	ProjectName string `json:"projectName"`
	Branch      string `json:"branch"`
	TestName    string `json:"testName"`
}

// WithBranch returns a copy of k pointing at another branch.
func (k Key) WithBranch(branch string) Key {
	k.Branch = branch
	return k
}

// Counts holds the totals and covered subsets of one measurement.
type Counts struct {
	Statements          int64 `json:"statements"`
	Conditionals        int64 `json:"conditionals"`
	Methods             int64 `json:"methods"`
	CoveredStatements   int64 `json:"coveredStatements"`
	CoveredConditionals int64 `json:"coveredConditionals"`
	CoveredMethods      int64 `json:"coveredMethods"`
}

// Total is the number of countable units.
func (c Counts) Total() int64 { return c.Statements + c.Conditionals + c.Methods }

// Covered is the number of covered units.
func (c Counts) Covered() int64 {
	return c.CoveredStatements + c.CoveredConditionals + c.CoveredMethods
}

// Snapshot is one immutable coverage measurement.
type Snapshot struct {
	ID string `json:"id"`
	Key
	BaseBranch string `json:"baseBranch"`
	Counts
	Ref         string    `json:"ref,omitempty"`
	CreatedDate time.Time `json:"createdDate"`
}

// Order selects the created_at direction of AllForKey.
type Order int

const (
	Ascending Order = iota
	Descending
)

const snapshotColumns = `id, project_name, branch, base_branch, test_name,
	statements, conditionals, methods,
	covered_statements, covered_conditionals, covered_methods,
	ref, created_at`

// Append inserts a new snapshot. ID (when empty) and CreatedDate are assigned
// here and written back into snap.
func (s *Store) Append(ctx context.Context, snap *Snapshot) (string, error) {
	id, ts := s.stamp()
	if snap.ID == "" {
		snap.ID = id
	}

	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO snapshots (`+snapshotColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.ProjectName, snap.Branch, snap.BaseBranch, snap.TestName,
		snap.Statements, snap.Conditionals, snap.Methods,
		snap.CoveredStatements, snap.CoveredConditionals, snap.CoveredMethods,
		snap.Ref, ts,
	)
	if err != nil {
		return "", err
	}
	snap.CreatedDate = time.UnixMicro(ts).UTC()
	return snap.ID, nil
}

// Latest returns the most recent snapshot for k, or nil if there is none.
func (s *Store) Latest(ctx context.Context, k Key) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE project_name = ? AND branch = ? AND test_name = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, k.ProjectName, k.Branch, k.TestName)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// AllForKey returns every snapshot for k ordered by created_at.
func (s *Store) AllForKey(ctx context.Context, k Key, order Order) ([]*Snapshot, error) {
	dir := "ASC"
	if order == Descending {
		dir = "DESC"
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE project_name = ? AND branch = ? AND test_name = ?
		ORDER BY created_at `+dir+`, id `+dir,
		k.ProjectName, k.Branch, k.TestName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// PriorTo returns at most limit snapshots for k created strictly before
// cutoff, newest first.
func (s *Store) PriorTo(ctx context.Context, k Key, cutoff time.Time, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		return []*Snapshot{}, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE project_name = ? AND branch = ? AND test_name = ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		k.ProjectName, k.Branch, k.TestName, cutoff.UnixMicro(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// DistinctProjects lists every project name, sorted.
func (s *Store) DistinctProjects(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT project_name FROM snapshots ORDER BY project_name`)
}

// DistinctBranches lists the branches recorded for a project, sorted.
func (s *Store) DistinctBranches(ctx context.Context, project string) ([]string, error) {
	return s.distinct(ctx, `
		SELECT DISTINCT branch FROM snapshots
		WHERE project_name = ? ORDER BY branch`, project)
}

// DistinctTests lists the tests recorded for a project branch, sorted.
func (s *Store) DistinctTests(ctx context.Context, project, branch string) ([]string, error) {
	return s.distinct(ctx, `
		SELECT DISTINCT test_name FROM snapshots
		WHERE project_name = ? AND branch = ? ORDER BY test_name`, project, branch)
}

// Count returns the total number of snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

func (s *Store) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	snap := &Snapshot{}
	var created int64
	err := row.Scan(
		&snap.ID, &snap.ProjectName, &snap.Branch, &snap.BaseBranch, &snap.TestName,
		&snap.Statements, &snap.Conditionals, &snap.Methods,
		&snap.CoveredStatements, &snap.CoveredConditionals, &snap.CoveredMethods,
		&snap.Ref, &created,
	)
	if err != nil {
		return nil, err
	}
	snap.CreatedDate = time.UnixMicro(created).UTC()
	return snap, nil
}

func scanSnapshots(rows *sql.Rows) ([]*Snapshot, error) {
	out := []*Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
