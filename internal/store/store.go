// Package store provides the document-oriented persistence layer shared by
// every entity type: schemaless records keyed by generated UUIDs, grouped
// into named collections, with soft-delete semantics. Records are never
// physically removed; deletion flips an isDeleted flag and all default
// reads filter it out.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is the schemaless field bag persisted for a record. Keys are
// domain attribute names; values are whatever the JSON payload carried.
type Document map[string]any

// Record is a stored document plus the bookkeeping the store maintains.
type Record struct {
	ID         uuid.UUID
	Collection string
	Fields     Document
	IsDeleted  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Query selects the read mode. The zero value returns live records only,
// which is what every public code path uses; IncludeDeleted exists for
// reference expansion and diagnostics.
type Query struct {
	IncludeDeleted bool
}

// Store is the persistence contract. All reads return records newest
// first. Absence is signalled with ErrNotFound, never a nil record with a
// nil error.
type Store interface {
	// Insert assigns an id and timestamps, persists the document and
	// returns the stored record. A unique-index violation yields a
	// *ConflictError; anything else a *PersistenceError.
	Insert(ctx context.Context, collection string, doc Document) (*Record, error)

	// FindMany returns records in the collection ordered by createdAt
	// descending. An empty collection yields an empty slice.
	FindMany(ctx context.Context, collection string, q Query) ([]*Record, error)

	// FindOne looks a record up by id. ErrNotFound when the id does not
	// exist, or when the record is soft-deleted and q does not include
	// deleted records.
	FindOne(ctx context.Context, collection string, id uuid.UUID, q Query) (*Record, error)

	// UpdateByID merges the provided fields into the existing document,
	// refreshes updatedAt and returns the updated record. ErrNotFound when
	// the id does not exist.
	UpdateByID(ctx context.Context, collection string, id uuid.UUID, fields Document) (*Record, error)

	// SoftDelete marks the record deleted and refreshes updatedAt.
	// Idempotent: deleting an already-deleted record succeeds and returns
	// it. ErrNotFound only when the id never existed.
	SoftDelete(ctx context.Context, collection string, id uuid.UUID) (*Record, error)
}

// UniqueIndex declares a store-enforced uniqueness constraint over one
// document field within a collection. Uniqueness applies among live
// records only, so a name can be reused after its holder is soft-deleted.
type UniqueIndex struct {
	Collection string
	Field      string
}

// IndexName is the database identifier for the constraint. Lowercased,
// since Postgres folds unquoted identifiers and reports them that way in
// constraint violations.
func (u UniqueIndex) IndexName() string {
	return strings.ToLower(fmt.Sprintf("uq_documents_%s_%s", u.Collection, u.Field))
}

// MarshalJSON renders the record flat, the way the HTTP surface exposes
// it: id and bookkeeping fields alongside the domain attributes.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID.String()
	out["isDeleted"] = r.IsDeleted
	out["createdAt"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	out["updatedAt"] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// Clone returns a deep-enough copy for callers that mutate Fields. Nested
// values are shared; top-level keys are not.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Fields = make(Document, len(r.Fields))
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	return &cp
}
