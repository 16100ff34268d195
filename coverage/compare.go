// CLAUDE:SUMMARY Comparator: resolves the baseline (exact branch, then base branch) and decides pass/fail on rounded percents.
package coverage

import (
	"context"
	"fmt"
)

// BaselineSource is the read side of the ledger the comparator needs.
type BaselineSource interface {
	Latest(ctx context.Context, key Key) (*Snapshot, error)
}

// Verdict is the outcome of an evaluation. Accepted and Message are the
// decision; the other fields describe how it was reached.
type Verdict struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`

	NewPercent      float64   `json:"newPercent"`
	BaselinePercent *float64  `json:"baselinePercent,omitempty"`
	Baseline        *Snapshot `json:"baseline,omitempty"`
	FallbackBranch  string    `json:"fallbackBranch,omitempty"`
}

// Comparator evaluates new measurements against recorded history.
// It never writes to the ledger.
type Comparator struct {
	src BaselineSource
}

// NewComparator returns a Comparator reading baselines from src.
func NewComparator(src BaselineSource) *Comparator {
	return &Comparator{src: src}
}

// Evaluate decides whether counts are acceptable for key. The baseline is the
// latest snapshot on key, or failing that the latest on baseBranch when it
// differs from key.Branch.
func (c *Comparator) Evaluate(ctx context.Context, key Key, baseBranch string, counts Counts) (*Verdict, error) {
	newPct, err := Percent(counts)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}
	v := &Verdict{NewPercent: newPct}

	baseline, err := c.src.Latest(ctx, key)
	if err != nil {
		return nil, storageError("latest", err)
	}

	var note string
	if baseline == nil && baseBranch != "" && baseBranch != key.Branch {
		baseline, err = c.src.Latest(ctx, key.WithBranch(baseBranch))
		if err != nil {
			return nil, storageError("latest", err)
		}
		if baseline != nil {
			v.FallbackBranch = baseBranch
			note = fmt.Sprintf("Branch not found, trying base branch %s\n", baseBranch)
		}
	}

	p := FormatPercent(newPct)
	if baseline == nil {
		v.Accepted = true
		v.Message = p + "% >= 0"
		return v, nil
	}

	basePct := snapshotPercent(baseline)
	b := FormatPercent(basePct)
	v.Baseline = baseline
	v.BaselinePercent = &basePct

	if newPct >= basePct {
		v.Accepted = true
		v.Message = note + p + "% >= " + b + "%"
	} else {
		v.Message = note + "New coverage (" + p + "%) needs to equal or exceed current coverage (" + b + "%)."
	}
	return v, nil
}
