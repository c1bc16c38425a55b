package entity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/RoyFahel/cloud-project/internal/store"
)

// Resolver expands foreign-key fields into inlined projections of the
// referenced records for read responses. Lookups deliberately include
// soft-deleted parents: a consultation must keep rendering its malady
// after the malady is retired. Only a reference that never existed (or
// is not a valid id at all) resolves to an explicit null.
type Resolver struct {
	store store.Store
}

func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Expanded is a fully rendered record: flattened bookkeeping fields plus
// domain attributes, with reference fields replaced by projections.
type Expanded map[string]any

// Expand renders one record according to refs.
func (r *Resolver) Expand(ctx context.Context, rec *store.Record, refs []Ref) (Expanded, error) {
	cache := map[string]map[uuid.UUID]*store.Record{}
	return r.expand(ctx, rec, refs, cache)
}

// ExpandAll renders a sequence, sharing one parent cache across elements
// so a list of fifty medicaments does not refetch the same malady fifty
// times.
func (r *Resolver) ExpandAll(ctx context.Context, recs []*store.Record, refs []Ref) ([]Expanded, error) {
	cache := map[string]map[uuid.UUID]*store.Record{}
	out := make([]Expanded, 0, len(recs))
	for _, rec := range recs {
		e, err := r.expand(ctx, rec, refs, cache)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Resolver) expand(ctx context.Context, rec *store.Record, refs []Ref, cache map[string]map[uuid.UUID]*store.Record) (Expanded, error) {
	out := flatten(rec)
	for _, ref := range refs {
		parent, err := r.lookup(ctx, rec, ref, cache)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			out[ref.Field] = nil
			continue
		}
		proj := map[string]any{"id": parent.ID.String()}
		for _, name := range ref.Project {
			if v, ok := parent.Fields[name]; ok {
				proj[name] = v
			}
		}
		out[ref.Field] = proj
	}
	return out, nil
}

// lookup fetches the referenced record, caching per expansion pass. A
// missing or malformed reference returns (nil, nil): one broken parent
// must not block rendering the rest of the entity.
func (r *Resolver) lookup(ctx context.Context, rec *store.Record, ref Ref, cache map[string]map[uuid.UUID]*store.Record) (*store.Record, error) {
	raw, ok := rec.Fields[ref.Field].(string)
	if !ok {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil
	}

	byID, ok := cache[ref.Collection]
	if !ok {
		byID = map[uuid.UUID]*store.Record{}
		cache[ref.Collection] = byID
	}
	if parent, hit := byID[id]; hit {
		return parent, nil
	}

	parent, err := r.store.FindOne(ctx, ref.Collection, id, store.Query{IncludeDeleted: true})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			byID[id] = nil
			return nil, nil
		}
		return nil, err
	}
	byID[id] = parent
	return parent, nil
}

func flatten(rec *store.Record) Expanded {
	out := make(Expanded, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		out[k] = v
	}
	out["id"] = rec.ID.String()
	out["isDeleted"] = rec.IsDeleted
	out["createdAt"] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	out["updatedAt"] = rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}
