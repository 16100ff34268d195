package trace

import (
	"context"
	"database/sql/driver"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/covgate/kit"
)

// SlowQuery is the duration above which a statement is logged at Warn.
var SlowQuery = 100 * time.Millisecond

// Op values carried by Entry.
const (
	OpExec  = "exec"
	OpQuery = "query"
)

// tracingDriver wraps a driver so that every connection it opens is traced.
type tracingDriver struct {
	base driver.Driver
}

func (d tracingDriver) Open(dsn string) (driver.Conn, error) {
	c, err := d.base.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: c}, nil
}

// conn traces the direct Exec/Query paths database/sql prefers, and the
// prepared-statement path it falls back to.
type conn struct {
	driver.Conn
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ex, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	start := time.Now()
	res, err := ex.ExecContext(ctx, query, args)
	if err != driver.ErrSkip {
		observe(ctx, OpExec, query, time.Since(start), err)
	}
	return res, err
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	start := time.Now()
	rows, err := q.QueryContext(ctx, query, args)
	if err != driver.ErrSkip {
		observe(ctx, OpQuery, query, time.Since(start), err)
	}
	return rows, err
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		st  driver.Stmt
		err error
	)
	if pc, ok := c.Conn.(driver.ConnPrepareContext); ok {
		st, err = pc.PrepareContext(ctx, query)
	} else {
		st, err = c.Conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &stmt{Stmt: st, query: query}, nil
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bt, ok := c.Conn.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	return c.Conn.Begin()
}

type stmt struct {
	driver.Stmt
	query string
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if ec, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = ec.ExecContext(ctx, args)
	} else {
		res, err = s.Stmt.Exec(values(args))
	}
	observe(ctx, OpExec, s.query, time.Since(start), err)
	return res, err
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if qc, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = qc.QueryContext(ctx, args)
	} else {
		rows, err = s.Stmt.Query(values(args))
	}
	observe(ctx, OpQuery, s.query, time.Since(start), err)
	return rows, err
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}

// observe logs one statement and hands it to the installed Recorder.
// Fast successful PRAGMAs (issued on every connection open) are dropped.
func observe(ctx context.Context, op, query string, d time.Duration, err error) {
	if err == nil && d < SlowQuery && strings.HasPrefix(query, "PRAGMA ") {
		return
	}

	e := &Entry{
		TraceID:    kit.TraceIDFrom(ctx),
		Op:         op,
		Query:      query,
		DurationUs: d.Microseconds(),
	}
	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelError
		e.Error = err.Error()
	case d > SlowQuery:
		level = slog.LevelWarn
	}

	if slog.Default().Enabled(ctx, level) {
		attrs := []slog.Attr{
			slog.String("op", op),
			slog.String("query", query),
			slog.Duration("duration", d),
		}
		if e.TraceID != "" {
			attrs = append(attrs, slog.String("trace_id", e.TraceID))
		}
		if e.Error != "" {
			attrs = append(attrs, slog.String("error", e.Error))
		}
		slog.LogAttrs(ctx, level, "trace: sql", attrs...)
	}

	if rec := getRecorder(); rec != nil {
		rec.Record(e)
	}
}
