package entity

import "fmt"

// ValidationError reports a missing or malformed field in a create or
// update payload. Surfaced as a 400 by the HTTP layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ReferenceNotFoundError reports a foreign key pointing at a record that
// does not exist or is soft-deleted. Treated as a client input error
// (400), not a 404: the request itself was malformed.
type ReferenceNotFoundError struct {
	Collection string
	ID         string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", singularTitle(e.Collection), e.ID)
}
