package store

import (
	"errors"
	"fmt"
)

// ErrNotFound signals an absent record. It is a sentinel, not a failure:
// callers are expected to check for it with errors.Is and translate it to
// their own "absent" outcome.
var ErrNotFound = errors.New("record not found")

// ConflictError reports a unique-field collision on insert or update.
type ConflictError struct {
	Collection string
	Field      string
	Value      string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("duplicate key in %s", e.Collection)
	}
	return fmt.Sprintf("duplicate %s %q in %s", e.Field, e.Value, e.Collection)
}

// PersistenceError wraps any store failure that is neither a conflict nor
// a not-found: connection loss, malformed documents, driver errors.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
