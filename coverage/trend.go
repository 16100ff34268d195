package coverage

import (
	"context"
	"time"
)

// TrendSource is the read side of the ledger the trend builder needs.
type TrendSource interface {
	AllForKey(ctx context.Context, key Key, order Order) ([]*Snapshot, error)
	PriorTo(ctx context.Context, key Key, cutoff time.Time, limit int) ([]*Snapshot, error)
}

// Point is one sample of a coverage trend.
type Point struct {
	Time    time.Time `json:"time"`
	Percent float64   `json:"percent"`
}

// BuildTrend returns the snapshots of key in ascending time order. When the
// earliest one declares a different base branch, up to backfill earlier
// base-branch snapshots follow, newest first. The result is not re-sorted.
func BuildTrend(ctx context.Context, src TrendSource, key Key, backfill int) ([]Point, error) {
	snaps, err := src.AllForKey(ctx, key, Ascending)
	if err != nil {
		return nil, storageError("all_for_key", err)
	}

	if len(snaps) > 0 && backfill > 0 {
		first := snaps[0]
		if first.BaseBranch != "" && first.BaseBranch != key.Branch {
			prior, err := src.PriorTo(ctx, key.WithBranch(first.BaseBranch), first.CreatedDate, backfill)
			if err != nil {
				return nil, storageError("prior_to", err)
			}
			snaps = append(snaps, prior...)
		}
	}

	points := make([]Point, 0, len(snaps))
	for _, s := range snaps {
		points = append(points, Point{Time: s.CreatedDate, Percent: snapshotPercent(s)})
	}
	return points, nil
}
