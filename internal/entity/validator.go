package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RoyFahel/cloud-project/internal/store"
)

// Validator confirms that foreign keys point at live records before a
// dependent write is allowed. A soft-deleted parent counts as absent:
// new children must not attach to logically deleted records, even though
// existing children keep their references.
type Validator struct {
	store store.Store
}

func NewValidator(st store.Store) *Validator {
	return &Validator{store: st}
}

// AssertLiveReference fails with a *ReferenceNotFoundError when the
// target record is missing or soft-deleted. Store failures other than
// absence propagate unchanged, so a broken store does not masquerade as
// a dangling reference.
func (v *Validator) AssertLiveReference(ctx context.Context, collection string, id uuid.UUID) error {
	_, err := v.store.FindOne(ctx, collection, id, store.Query{})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ReferenceNotFoundError{Collection: collection, ID: id.String()}
		}
		return fmt.Errorf("check reference %s/%s: %w", collection, id, err)
	}
	return nil
}
