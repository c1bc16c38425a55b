package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same observable semantics as the
// Postgres implementation, including live-only unique indexes. It backs
// the unit tests and the degraded mode the server falls into when the
// database is unreachable at startup.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[uuid.UUID]*Record
	order   map[uuid.UUID]int64
	indexes []UniqueIndex
	seq     int64
}

// NewMemory creates an empty in-memory store enforcing the given unique
// indexes.
func NewMemory(indexes ...UniqueIndex) *Memory {
	return &Memory{
		records: make(map[string]map[uuid.UUID]*Record),
		order:   make(map[uuid.UUID]int64),
		indexes: indexes,
	}
}

func (m *Memory) collection(name string) map[uuid.UUID]*Record {
	c, ok := m.records[name]
	if !ok {
		c = make(map[uuid.UUID]*Record)
		m.records[name] = c
	}
	return c
}

// checkUnique reports a conflict when another live record in the
// collection holds the same value for an indexed field. The caller holds
// the write lock.
func (m *Memory) checkUnique(collection string, doc Document, self uuid.UUID) error {
	for _, idx := range m.indexes {
		if idx.Collection != collection {
			continue
		}
		val, ok := doc[idx.Field].(string)
		if !ok || val == "" {
			continue
		}
		for id, rec := range m.records[collection] {
			if id == self || rec.IsDeleted {
				continue
			}
			if existing, ok := rec.Fields[idx.Field].(string); ok && existing == val {
				return &ConflictError{Collection: collection, Field: idx.Field, Value: val}
			}
		}
	}
	return nil
}

func (m *Memory) Insert(ctx context.Context, collection string, doc Document) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "insert", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(collection, doc, uuid.Nil); err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &Record{
		ID:         uuid.New(),
		Collection: collection,
		Fields:     make(Document, len(doc)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for k, v := range doc {
		rec.Fields[k] = v
	}

	m.seq++
	m.collection(collection)[rec.ID] = rec
	m.order[rec.ID] = m.seq
	return rec.Clone(), nil
}

func (m *Memory) FindMany(ctx context.Context, collection string, q Query) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "find", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0)
	for _, rec := range m.records[collection] {
		if rec.IsDeleted && !q.IncludeDeleted {
			continue
		}
		out = append(out, rec.Clone())
	}
	// Newest first; the insertion sequence breaks timestamp ties so the
	// ordering is stable within a single clock tick.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.order[out[i].ID] > m.order[out[j].ID]
	})
	return out, nil
}

func (m *Memory) FindOne(ctx context.Context, collection string, id uuid.UUID, q Query) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "find", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.IsDeleted && !q.IncludeDeleted {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) UpdateByID(ctx context.Context, collection string, id uuid.UUID, fields Document) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "update", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	merged := make(Document, len(rec.Fields)+len(fields))
	for k, v := range rec.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if err := m.checkUnique(collection, merged, id); err != nil {
		return nil, err
	}

	rec.Fields = merged
	rec.UpdatedAt = time.Now()
	return rec.Clone(), nil
}

func (m *Memory) SoftDelete(ctx context.Context, collection string, id uuid.UUID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "delete", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.IsDeleted = true
	rec.UpdatedAt = time.Now()
	return rec.Clone(), nil
}

var _ Store = (*Memory)(nil)
