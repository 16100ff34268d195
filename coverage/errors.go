package coverage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no snapshot exists for a requested key.
	ErrNotFound = errors.New("coverage: not found")

	// ErrStorageUnavailable marks failures of the ledger's backing store.
	ErrStorageUnavailable = errors.New("coverage: storage unavailable")

	// ErrDegenerateMetric is returned when a measurement has zero countable units.
	ErrDegenerateMetric = errors.New("coverage: total count is zero, percent undefined")
)

// ValidationError reports a malformed submission. Missing holds the absent
// required fields, Invalid the fields that were present but unusable.
type ValidationError struct {
	Missing []string
	Invalid []string
	Err     error
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Missing) > 0:
		// Every required name is listed, whichever subset is absent.
		return "Missing required parameters: " + strings.Join(RequiredFields, ", ")
	case len(e.Invalid) > 0:
		return "Invalid parameters: " + strings.Join(e.Invalid, ", ")
	case e.Err != nil:
		return e.Err.Error()
	}
	return "invalid submission"
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a ledger failure with the operation that hit it.
// It matches ErrStorageUnavailable under errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
