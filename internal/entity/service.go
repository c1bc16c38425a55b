package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/RoyFahel/cloud-project/internal/store"
)

// protectedFields are stripped from incoming payloads: clients cannot set
// identifiers, deletion state, or timestamps.
var protectedFields = map[string]bool{
	"id":        true,
	"_id":       true,
	"isDeleted": true,
	"createdAt": true,
	"updatedAt": true,
}

// Service orchestrates validation, persistence, and reference expansion
// for one entity type. One instance per schema; all nine entity types
// share this implementation.
type Service struct {
	schema    Schema
	store     store.Store
	resolver  *Resolver
	validator *Validator
}

func NewService(schema Schema, st store.Store, resolver *Resolver, validator *Validator) *Service {
	return &Service{schema: schema, store: st, resolver: resolver, validator: validator}
}

// Schema exposes the entity description the service was built from; the
// HTTP layer needs it for route segments and response envelopes.
func (s *Service) Schema() Schema { return s.schema }

// List returns every live record, expanded, newest first, with the
// count. Store failures propagate; the HTTP layer decides whether to
// degrade the response to an empty list.
func (s *Service) List(ctx context.Context) ([]Expanded, int, error) {
	recs, err := s.store.FindMany(ctx, s.schema.Collection, store.Query{})
	if err != nil {
		return nil, 0, err
	}
	items, err := s.resolver.ExpandAll(ctx, recs, s.schema.Refs)
	if err != nil {
		return nil, 0, err
	}
	return items, len(items), nil
}

// GetByID returns one live record, expanded. store.ErrNotFound when the
// id is unknown or the record is soft-deleted.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (Expanded, error) {
	rec, err := s.store.FindOne(ctx, s.schema.Collection, id, store.Query{})
	if err != nil {
		return nil, err
	}
	return s.resolver.Expand(ctx, rec, s.schema.Refs)
}

// Create validates the payload against the schema, confirms every
// foreign key references a live record, inserts, and returns the
// expanded result. Any validation or reference failure aborts before the
// write; there are no partial inserts.
func (s *Service) Create(ctx context.Context, payload store.Document) (Expanded, error) {
	doc, err := s.prepare(payload, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, doc); err != nil {
		return nil, err
	}
	rec, err := s.store.Insert(ctx, s.schema.Collection, doc)
	if err != nil {
		return nil, err
	}
	return s.resolver.Expand(ctx, rec, s.schema.Refs)
}

// Update merges the partial payload into the record. Foreign keys
// present in the payload are re-validated against live parents, so an
// update cannot point a child at a deleted record. store.ErrNotFound
// when the id is unknown.
func (s *Service) Update(ctx context.Context, id uuid.UUID, payload store.Document) (Expanded, error) {
	doc, err := s.prepare(payload, false)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, doc); err != nil {
		return nil, err
	}
	// Updates only reach live records through the API.
	if _, err := s.store.FindOne(ctx, s.schema.Collection, id, store.Query{}); err != nil {
		return nil, err
	}
	rec, err := s.store.UpdateByID(ctx, s.schema.Collection, id, doc)
	if err != nil {
		return nil, err
	}
	return s.resolver.Expand(ctx, rec, s.schema.Refs)
}

// Delete soft-deletes the record and reports whether one was found.
// Records are never physically removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.store.SoftDelete(ctx, s.schema.Collection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// prepare strips protected fields, applies the schema's transforms, and
// validates the result. For creates every required field must be
// present; for updates only the fields in the payload are checked, but a
// required field cannot be blanked.
func (s *Service) prepare(payload store.Document, create bool) (store.Document, error) {
	doc := make(store.Document, len(payload))
	for k, v := range payload {
		if protectedFields[k] || v == nil {
			continue
		}
		doc[k] = v
	}

	for _, f := range s.schema.Fields {
		v, present := doc[f.Name]
		if str, ok := v.(string); ok {
			if f.Trim {
				str = strings.TrimSpace(str)
			}
			if f.Lowercase {
				str = strings.ToLower(str)
			}
			doc[f.Name] = str
			v = str
		}

		if !present {
			if create && f.Required {
				return nil, &ValidationError{Field: f.Name, Reason: f.Label + " is required"}
			}
			continue
		}

		str, isString := v.(string)
		if isString {
			if f.Required && str == "" {
				return nil, &ValidationError{Field: f.Name, Reason: f.Label + " is required"}
			}
			if f.MinLen > 0 && utf8.RuneCountInString(str) < f.MinLen {
				return nil, &ValidationError{
					Field:  f.Name,
					Reason: fmt.Sprintf("%s must be at least %d characters", f.Label, f.MinLen),
				}
			}
			if f.Match != nil && str != "" && !f.Match.MatchString(str) {
				return nil, &ValidationError{Field: f.Name, Reason: f.MatchMsg}
			}
		}
	}

	for _, ref := range s.schema.Refs {
		v, present := doc[ref.Field]
		if !present {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, &ValidationError{Field: ref.Field, Reason: "Invalid ID format"}
		}
		if _, err := uuid.Parse(str); err != nil {
			return nil, &ValidationError{Field: ref.Field, Reason: "Invalid ID format"}
		}
	}

	if create {
		for _, name := range s.schema.DefaultNow {
			if _, ok := doc[name]; !ok {
				doc[name] = time.Now().UTC().Format(time.RFC3339Nano)
			}
		}
	}

	return doc, nil
}

// checkReferences runs the existence validator for every foreign key
// present in the document. Runs strictly before the store write, so a
// child can never be created against a parent that was already absent or
// deleted at validation time.
func (s *Service) checkReferences(ctx context.Context, doc store.Document) error {
	for _, ref := range s.schema.Refs {
		raw, ok := doc[ref.Field].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue // prepare already rejected malformed ids
		}
		if err := s.validator.AssertLiveReference(ctx, ref.Collection, id); err != nil {
			return err
		}
	}
	return nil
}
