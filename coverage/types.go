// CLAUDE:SUMMARY Re-exports ledger types (Snapshot, Key, Counts, Order) for external callers.
package coverage

import "github.com/hazyhaar/covgate/coverage/internal/store"

// Re-exported types from internal/store for use by cmd/ and external callers.
type (
	Snapshot = store.Snapshot
	Key      = store.Key
	Counts   = store.Counts
	Order    = store.Order
)

const (
	Ascending  = store.Ascending
	Descending = store.Descending
)
