package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/covgate/dbopen"
	"github.com/hazyhaar/covgate/idgen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	s := New(db)
	if err := s.seedClock(context.Background()); err != nil {
		t.Fatalf("seed clock: %v", err)
	}
	return s
}

// fixedClock returns the same instant on every call, which forces stamp()
// to break ties itself.
func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func snap(project, branch, base, test string, covered, total int64) *Snapshot {
	return &Snapshot{
		Key:        Key{ProjectName: project, Branch: branch, TestName: test},
		BaseBranch: base,
		Counts: Counts{
			Statements: total, Conditionals: total, Methods: total,
			CoveredStatements: covered, CoveredConditionals: covered, CoveredMethods: covered,
		},
	}
}

func TestSchemaApplies(t *testing.T) {
	s := openTestStore(t)
	var name string
	err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='snapshots'`).Scan(&name)
	if err != nil {
		t.Fatalf("snapshots table not found: %v", err)
	}
}

func TestAppendAssignsIDAndDate(t *testing.T) {
	s := openTestStore(t)
	s.SetIDGenerator(idgen.Sequence("snap"))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(fixedClock(base))
	ctx := context.Background()

	in := snap("P", "master", "master", "unit", 20, 20)
	in.Ref = "abc123"
	id, err := s.Append(ctx, in)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id != "snap-1" || in.ID != "snap-1" {
		t.Errorf("id: got %q / %q, want snap-1", id, in.ID)
	}
	if !in.CreatedDate.Equal(base) {
		t.Errorf("created: got %v, want %v", in.CreatedDate, base)
	}

	got, err := s.Latest(ctx, in.Key)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendKeepsCallerID(t *testing.T) {
	s := openTestStore(t)
	in := snap("P", "b", "b", "t", 1, 2)
	in.ID = "fixed"
	id, err := s.Append(context.Background(), in)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id != "fixed" {
		t.Errorf("id: got %q", id)
	}
}

func TestStampStrictlyIncreasing(t *testing.T) {
	// WHAT: Three appends within the same clock tick get distinct, ordered dates.
	// WHY: Latest must return the last insertion even when the clock stalls.
	s := openTestStore(t)
	s.SetClock(fixedClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	var prev time.Time
	for i := int64(1); i <= 3; i++ {
		in := snap("P", "master", "master", "unit", i, 10)
		if _, err := s.Append(ctx, in); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if !in.CreatedDate.After(prev) {
			t.Fatalf("append %d: created %v not after %v", i, in.CreatedDate, prev)
		}
		prev = in.CreatedDate
	}

	got, err := s.Latest(ctx, Key{"P", "master", "unit"})
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.CoveredStatements != 3 {
		t.Errorf("latest covered: got %d, want 3", got.CoveredStatements)
	}
}

func TestLatestMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Latest(context.Background(), Key{"P", "nope", "unit"})
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestLatestIsCaseSensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Append(ctx, snap("P", "Master", "Master", "unit", 1, 1)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Latest(ctx, Key{"P", "master", "unit"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("lookup should be case-sensitive, got %+v", got)
	}
}

func TestAllForKeyOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := Key{"P", "master", "unit"}
	for i := int64(1); i <= 4; i++ {
		if _, err := s.Append(ctx, snap("P", "master", "master", "unit", i, 10)); err != nil {
			t.Fatal(err)
		}
	}
	// Different key, must not leak in.
	if _, err := s.Append(ctx, snap("P", "dev", "master", "unit", 9, 10)); err != nil {
		t.Fatal(err)
	}

	covered := func(list []*Snapshot) []int64 {
		var out []int64
		for _, sn := range list {
			out = append(out, sn.CoveredStatements)
		}
		return out
	}

	asc, err := s.AllForKey(ctx, key, Ascending)
	if err != nil {
		t.Fatalf("asc: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4}, covered(asc)); diff != "" {
		t.Errorf("ascending (-want +got):\n%s", diff)
	}

	desc, err := s.AllForKey(ctx, key, Descending)
	if err != nil {
		t.Fatalf("desc: %v", err)
	}
	if diff := cmp.Diff([]int64{4, 3, 2, 1}, covered(desc)); diff != "" {
		t.Errorf("descending (-want +got):\n%s", diff)
	}

	empty, err := s.AllForKey(ctx, Key{"X", "y", "z"}, Ascending)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown key: got %d rows", len(empty))
	}
}

func TestPriorTo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Minute)
	})

	var all []*Snapshot
	for i := int64(1); i <= 15; i++ {
		in := snap("P", "master", "master", "unit", i, 20)
		if _, err := s.Append(ctx, in); err != nil {
			t.Fatal(err)
		}
		all = append(all, in)
	}
	key := Key{"P", "master", "unit"}

	// Cutoff at the 13th snapshot: 12 earlier rows, limited to 10, newest first.
	got, err := s.PriorTo(ctx, key, all[12].CreatedDate, 10)
	if err != nil {
		t.Fatalf("prior: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len: got %d, want 10", len(got))
	}
	if got[0].CoveredStatements != 12 || got[9].CoveredStatements != 3 {
		t.Errorf("window: first=%d last=%d, want 12..3",
			got[0].CoveredStatements, got[9].CoveredStatements)
	}

	// Strictly before: the cutoff row itself is excluded.
	got, err = s.PriorTo(ctx, key, all[0].CreatedDate, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("before first: got %d rows", len(got))
	}

	got, err = s.PriorTo(ctx, key, all[5].CreatedDate, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("zero limit: got %d rows", len(got))
	}
}

func TestDistinct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, k := range []Key{
		{"beta", "master", "unit"},
		{"alpha", "master", "unit"},
		{"alpha", "feature", "e2e"},
		{"alpha", "master", "e2e"},
		{"alpha", "master", "unit"},
	} {
		if _, err := s.Append(ctx, snap(k.ProjectName, k.Branch, "master", k.TestName, 1, 2)); err != nil {
			t.Fatal(err)
		}
	}

	projects, err := s.DistinctProjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, projects); diff != "" {
		t.Errorf("projects (-want +got):\n%s", diff)
	}

	branches, err := s.DistinctBranches(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"feature", "master"}, branches); diff != "" {
		t.Errorf("branches (-want +got):\n%s", diff)
	}

	tests, err := s.DistinctTests(ctx, "alpha", "master")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"e2e", "unit"}, tests); diff != "" {
		t.Errorf("tests (-want +got):\n%s", diff)
	}

	none, err := s.DistinctBranches(ctx, "gamma")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("unknown project: got %#v, want empty non-nil", none)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("count: got %d, want 5", n)
	}
}

func TestConcurrentAppendsSameKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			if _, err := s.Append(ctx, snap("P", "master", "master", "unit", i, 10)); err != nil {
				errs <- err
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	all, err := s.AllForKey(ctx, Key{"P", "master", "unit"}, Ascending)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 8 {
		t.Fatalf("rows: got %d, want 8", len(all))
	}
	for i := 1; i < len(all); i++ {
		if !all[i].CreatedDate.After(all[i-1].CreatedDate) {
			t.Errorf("row %d not after row %d", i, i-1)
		}
	}
}

func TestOpenReseedsClock(t *testing.T) {
	// WHAT: Reopening a file-backed ledger continues after the newest stored stamp.
	// WHY: A clock that moved backwards must not reorder history across restarts.
	path := filepath.Join(t.TempDir(), "ledger.db")
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SetClock(fixedClock(future))
	first := snap("P", "master", "master", "unit", 1, 2)
	if _, err := s.Append(ctx, first); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	s.SetClock(fixedClock(future.Add(-time.Hour)))
	second := snap("P", "master", "master", "unit", 2, 2)
	if _, err := s.Append(ctx, second); err != nil {
		t.Fatal(err)
	}
	if !second.CreatedDate.After(first.CreatedDate) {
		t.Errorf("second %v not after first %v", second.CreatedDate, first.CreatedDate)
	}
}
