// Package trace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps modernc's "sqlite" driver
// at the database/sql/driver level, on both the direct and the prepared
// statement paths. Switching the ledger to it only needs the driver name:
//
//	import _ "github.com/hazyhaar/covgate/trace"
//	db, _ := dbopen.Open("covgate.db", dbopen.WithTrace())
//
// Every statement is logged via slog at Debug, at Warn above SlowQuery and
// at Error on failure, and correlated with kit.TraceIDFrom. An optional
// Recorder receives each Entry, e.g. to feed metrics.
package trace

import (
	"database/sql"
	"sync"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql name of the tracing driver.
const DriverName = "sqlite-trace"

// Entry is a single SQL trace record.
type Entry struct {
	TraceID    string // correlation with the HTTP/MCP request
	Op         string // OpExec or OpQuery
	Query      string
	DurationUs int64
	Error      string // empty on success
}

// Recorder receives trace entries. Record is called synchronously on the
// query path and must not block.
type Recorder interface {
	Record(e *Entry)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(e *Entry)

func (f RecorderFunc) Record(e *Entry) { f(e) }

var (
	globalRecorder Recorder
	recorderMu     sync.RWMutex
)

// SetRecorder installs the process-wide recorder. nil restores slog-only mode.
func SetRecorder(r Recorder) {
	recorderMu.Lock()
	globalRecorder = r
	recorderMu.Unlock()
}

func getRecorder() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	return globalRecorder
}

func init() {
	sql.Register(DriverName, tracingDriver{base: &sqlite.Driver{}})
}
