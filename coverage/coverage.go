// CLAUDE:SUMMARY Main coverage orchestrator: opens the ledger, runs checks and saves, serves history, trend charts, badges and discovery.
// Package coverage records per-branch, per-test coverage snapshots and gates
// merges by comparing a new measurement against the recorded baseline.
//
// Flows:
//
//	Check: CI submits counts → baseline = latest on branch, else latest on base branch → accept/reject
//	Save:  CI submits counts after merge → appended to the ledger, never updated
//	Trend: branch history ascending, plus up to N base-branch snapshots before it → PNG chart
//
// Usage:
//
//	svc, err := coverage.New(cfg, logger, coverage.WithMetrics(reg))
//	defer svc.Close()
//	svc.RegisterHTTP(router)
//	svc.RegisterMCP(mcpServer)
package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/covgate/badge"
	"github.com/hazyhaar/covgate/chart"
	"github.com/hazyhaar/covgate/coverage/internal/store"
	"github.com/hazyhaar/covgate/dbopen"
	"github.com/hazyhaar/covgate/metrics"
)

// Service is the coverage orchestrator.
type Service struct {
	store    *store.Store
	cmp      *Comparator
	renderer *chart.Renderer
	logger   *slog.Logger
	config   *Config

	dbOpts []dbopen.Option

	checks     *metrics.CounterVec
	saves      *metrics.CounterVec
	storageErr *metrics.CounterVec
}

// Option customises New.
type Option func(*Service)

// WithMetrics records check, save and storage-error counters on reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Service) {
		s.checks = reg.Counter("covgate_checks_total", "Coverage checks by outcome.", "outcome")
		s.saves = reg.Counter("covgate_saves_total", "Coverage saves by outcome.", "outcome")
		s.storageErr = reg.Counter("covgate_storage_errors_total", "Ledger failures by operation.", "op")
	}
}

// WithDBOptions passes extra options to dbopen when the ledger is opened.
func WithDBOptions(opts ...dbopen.Option) Option {
	return func(s *Service) { s.dbOpts = append(s.dbOpts, opts...) }
}

// New creates a Service. The ledger is opened and its schema applied before
// New returns, so the handle is ready before any request is served.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		logger:   logger,
		config:   cfg,
		renderer: chart.New(cfg.ChartWidth, cfg.ChartHeight),
	}
	for _, o := range opts {
		o(s)
	}

	st, err := store.Open(cfg.DBPath, s.dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("coverage: open ledger: %w", err)
	}
	s.store = st
	s.cmp = NewComparator(st)
	return s, nil
}

// Close closes the ledger.
func (s *Service) Close() error {
	return s.store.Close()
}

// Store returns the underlying ledger for direct access (testing, admin).
func (s *Service) Store() *store.Store {
	return s.store
}

// parse reads a submission from a transport and counts a rejection as
// outcome "invalid" on outcomes.
func (s *Service) parse(outcomes *metrics.CounterVec, key Key, lookup Lookup, withRef bool) (*Submission, error) {
	sub, err := ParseSubmission(key, lookup, withRef)
	if err != nil {
		s.count(outcomes, "invalid")
		return nil, err
	}
	return sub, nil
}

// Check evaluates sub against the recorded baseline without writing anything.
func (s *Service) Check(ctx context.Context, sub *Submission) (*Verdict, error) {
	if err := sub.Validate(); err != nil {
		s.count(s.checks, "invalid")
		return nil, err
	}
	v, err := s.cmp.Evaluate(ctx, sub.Key, sub.BaseBranch, sub.Counts)
	if err != nil {
		s.count(s.checks, "error")
		s.storageFailure(err)
		return nil, err
	}

	outcome := "rejected"
	if v.Accepted {
		outcome = "accepted"
	}
	s.count(s.checks, outcome)
	s.logger.Info("coverage: check",
		"project", sub.ProjectName, "branch", sub.Branch, "test", sub.TestName,
		"percent", v.NewPercent, "outcome", outcome, "fallback", v.FallbackBranch)
	return v, nil
}

// Save appends sub to the ledger and returns the stored snapshot.
func (s *Service) Save(ctx context.Context, sub *Submission) (*Snapshot, error) {
	if err := sub.Validate(); err != nil {
		s.count(s.saves, "invalid")
		return nil, err
	}
	snap := &Snapshot{
		Key:        sub.Key,
		BaseBranch: sub.BaseBranch,
		Counts:     sub.Counts,
		Ref:        sub.Ref,
	}
	if _, err := s.store.Append(ctx, snap); err != nil {
		err = storageError("append", err)
		s.count(s.saves, "error")
		s.storageFailure(err)
		return nil, err
	}
	s.count(s.saves, "ok")
	s.logger.Info("coverage: snapshot saved",
		"id", snap.ID, "project", snap.ProjectName, "branch", snap.Branch,
		"test", snap.TestName, "percent", snapshotPercent(snap))
	return snap, nil
}

// History returns every snapshot for key in ascending time order.
func (s *Service) History(ctx context.Context, key Key) ([]*Snapshot, error) {
	snaps, err := s.store.AllForKey(ctx, key, Ascending)
	if err != nil {
		return nil, s.fail("all_for_key", err)
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	return snaps, nil
}

// Trend returns the chart series for key. An unknown key yields an empty series.
func (s *Service) Trend(ctx context.Context, key Key) ([]Point, error) {
	points, err := BuildTrend(ctx, s.store, key, s.config.BackfillLimit)
	if err != nil {
		s.storageFailure(err)
		return nil, err
	}
	return points, nil
}

// Chart renders the trend of key as a PNG.
func (s *Service) Chart(ctx context.Context, key Key) ([]byte, error) {
	points, err := s.Trend(ctx, key)
	if err != nil {
		return nil, err
	}
	series := make([]chart.Point, len(points))
	for i, p := range points {
		series[i] = chart.Point{Time: p.Time, Percent: p.Percent}
	}
	return s.renderer.Render(fmt.Sprintf("Code coverage for %s / %s", key.ProjectName, key.TestName), series)
}

// Summary is a snapshot together with its derived percent.
type Summary struct {
	*Snapshot
	CoveragePercent float64 `json:"coveragePercent"`
}

// Latest returns the most recent snapshot for key.
func (s *Service) Latest(ctx context.Context, key Key) (*Summary, error) {
	snap, err := s.store.Latest(ctx, key)
	if err != nil {
		return nil, s.fail("latest", err)
	}
	if snap == nil {
		return nil, ErrNotFound
	}
	return &Summary{Snapshot: snap, CoveragePercent: snapshotPercent(snap)}, nil
}

// Badge renders an SVG badge with the latest percent of key, or "unknown".
func (s *Service) Badge(ctx context.Context, key Key) ([]byte, error) {
	sum, err := s.Latest(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return badge.Render(s.config.BadgeLabel, "unknown", badge.CoverageColor(0, false)), nil
	case err != nil:
		return nil, err
	}
	value := FormatPercent(sum.CoveragePercent) + "%"
	return badge.Render(s.config.BadgeLabel, value, badge.CoverageColor(sum.CoveragePercent, true)), nil
}

// Projects lists every project with at least one snapshot.
func (s *Service) Projects(ctx context.Context) ([]string, error) {
	out, err := s.store.DistinctProjects(ctx)
	if err != nil {
		return nil, s.fail("distinct_projects", err)
	}
	return out, nil
}

// Branches lists the branches of project.
func (s *Service) Branches(ctx context.Context, project string) ([]string, error) {
	out, err := s.store.DistinctBranches(ctx, project)
	if err != nil {
		return nil, s.fail("distinct_branches", err)
	}
	return out, nil
}

// Tests lists the tests recorded on a project branch.
func (s *Service) Tests(ctx context.Context, project, branch string) ([]string, error) {
	out, err := s.store.DistinctTests(ctx, project, branch)
	if err != nil {
		return nil, s.fail("distinct_tests", err)
	}
	return out, nil
}

// Count returns the number of stored snapshots.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, s.fail("count", err)
	}
	return n, nil
}

func (s *Service) fail(op string, err error) error {
	err = storageError(op, err)
	s.storageFailure(err)
	return err
}

func (s *Service) storageFailure(err error) {
	var se *StorageError
	if !errors.As(err, &se) {
		return
	}
	s.count(s.storageErr, se.Op)
	s.logger.Error("coverage: storage failure", "op", se.Op, "error", se.Err)
}

func (s *Service) count(c *metrics.CounterVec, label string) {
	if c != nil {
		c.Inc(label)
	}
}
