package store

import "fmt"

// PersistenceError wraps a store operation that could not complete. The
// orchestrator treats these as retryable within a poll cycle; a multi-field
// update either commits fully or not at all, so retrying is always safe.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
