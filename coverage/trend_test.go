package coverage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeTrend serves fixed rows and records PriorTo arguments.
type fakeTrend struct {
	rows      map[Key][]*Snapshot // ascending
	priorKey  Key
	priorCut  time.Time
	priorLim  int
	priorCall int
	err       error
}

func (f *fakeTrend) AllForKey(_ context.Context, k Key, order Order) ([]*Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if order != Ascending {
		panic("trend must ask for ascending order")
	}
	return f.rows[k], nil
}

func (f *fakeTrend) PriorTo(_ context.Context, k Key, cutoff time.Time, limit int) ([]*Snapshot, error) {
	f.priorCall++
	f.priorKey, f.priorCut, f.priorLim = k, cutoff, limit
	var out []*Snapshot
	rows := f.rows[k]
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		if rows[i].CreatedDate.Before(cutoff) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

var day0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func at(k Key, base string, day int, covered int64) *Snapshot {
	s := stored(k, base, covered, 100)
	s.CreatedDate = day0.AddDate(0, 0, day)
	return s
}

func TestBuildTrendNoBackfill(t *testing.T) {
	f := &fakeTrend{rows: map[Key][]*Snapshot{
		masterKey: {at(masterKey, "master", 1, 50), at(masterKey, "master", 2, 60), at(masterKey, "master", 3, 70)},
	}}
	got, err := BuildTrend(context.Background(), f, masterKey, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []Point{
		{Time: day0.AddDate(0, 0, 1), Percent: 50},
		{Time: day0.AddDate(0, 0, 2), Percent: 60},
		{Time: day0.AddDate(0, 0, 3), Percent: 70},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trend (-want +got):\n%s", diff)
	}
	if f.priorCall != 0 {
		t.Error("same-branch series must not backfill")
	}
}

func TestBuildTrendBackfillsDescendingTail(t *testing.T) {
	f := &fakeTrend{rows: map[Key][]*Snapshot{
		masterKey: {
			at(masterKey, "master", 1, 10),
			at(masterKey, "master", 2, 20),
			at(masterKey, "master", 3, 30),
			at(masterKey, "master", 9, 90), // after the feature branch started
		},
		featureKey: {at(featureKey, "master", 5, 40), at(featureKey, "master", 6, 45)},
	}}
	got, err := BuildTrend(context.Background(), f, featureKey, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Point{
		{Time: day0.AddDate(0, 0, 5), Percent: 40},
		{Time: day0.AddDate(0, 0, 6), Percent: 45},
		{Time: day0.AddDate(0, 0, 3), Percent: 30},
		{Time: day0.AddDate(0, 0, 2), Percent: 20},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trend (-want +got):\n%s", diff)
	}
	if f.priorKey != masterKey || !f.priorCut.Equal(day0.AddDate(0, 0, 5)) || f.priorLim != 2 {
		t.Errorf("PriorTo(%v, %v, %d)", f.priorKey, f.priorCut, f.priorLim)
	}
}

func TestBuildTrendEmpty(t *testing.T) {
	got, err := BuildTrend(context.Background(), &fakeTrend{}, featureKey, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil", got)
	}
}

func TestBuildTrendStorageError(t *testing.T) {
	_, err := BuildTrend(context.Background(), &fakeTrend{err: errors.New("gone")}, masterKey, 10)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("got %v", err)
	}
}
