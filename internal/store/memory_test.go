package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemory_InsertAssignsIDAndTimestamps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if rec.IsDeleted {
		t.Error("new records must not be deleted")
	}
	if rec.Fields["maladyName"] != "Flu" {
		t.Errorf("expected maladyName Flu, got %v", rec.Fields["maladyName"])
	}
}

func TestMemory_FindManyNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	second, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Migraine"})

	recs, err := m.FindMany(ctx, "maladies", Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != second.ID || recs[1].ID != first.ID {
		t.Error("expected newest record first")
	}
}

func TestMemory_FindManyEmptyCollection(t *testing.T) {
	m := NewMemory()

	recs, err := m.FindMany(context.Background(), "maladies", Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", recs)
	}
}

func TestMemory_FindOneExcludesDeletedByDefault(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	if _, err := m.SoftDelete(ctx, "maladies", rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.FindOne(ctx, "maladies", rec.ID, Query{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted record, got %v", err)
	}

	got, err := m.FindOne(ctx, "maladies", rec.ID, Query{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("expected deleted record with IncludeDeleted, got %v", err)
	}
	if !got.IsDeleted {
		t.Error("expected isDeleted true")
	}
	if got.Fields["maladyName"] != "Flu" {
		t.Error("expected original fields intact after soft delete")
	}
}

func TestMemory_SoftDeleteRefreshesUpdatedAt(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	time.Sleep(5 * time.Millisecond)

	deleted, err := m.SoftDelete(ctx, "maladies", rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted.UpdatedAt.After(rec.UpdatedAt) {
		t.Error("expected updatedAt refreshed by soft delete")
	}
	if !deleted.CreatedAt.Equal(rec.CreatedAt) {
		t.Error("createdAt must not change")
	}
}

func TestMemory_SoftDeleteIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	if _, err := m.SoftDelete(ctx, "maladies", rec.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	again, err := m.SoftDelete(ctx, "maladies", rec.ID)
	if err != nil {
		t.Fatalf("second delete should succeed, got %v", err)
	}
	if !again.IsDeleted {
		t.Error("expected record to stay deleted")
	}
}

func TestMemory_SoftDeleteUnknownID(t *testing.T) {
	m := NewMemory()
	if _, err := m.SoftDelete(context.Background(), "maladies", uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_UpdateMergesFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "medicaments", Document{"medicamentName": "Tamiflu", "description": "antiviral"})
	time.Sleep(5 * time.Millisecond)

	updated, err := m.UpdateByID(ctx, "medicaments", rec.ID, Document{"description": "oral antiviral"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Fields["medicamentName"] != "Tamiflu" {
		t.Error("expected untouched fields preserved")
	}
	if updated.Fields["description"] != "oral antiviral" {
		t.Error("expected merged field updated")
	}
	if !updated.UpdatedAt.After(rec.UpdatedAt) {
		t.Error("expected updatedAt refreshed by update")
	}
}

func TestMemory_UpdateUnknownID(t *testing.T) {
	m := NewMemory()
	if _, err := m.UpdateByID(context.Background(), "maladies", uuid.New(), Document{"maladyName": "Flu"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_UniqueIndexConflicts(t *testing.T) {
	m := NewMemory(UniqueIndex{Collection: "maladies", Field: "maladyName"})
	ctx := context.Background()

	if _, err := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Field != "maladyName" || conflict.Value != "Flu" {
		t.Errorf("unexpected conflict details: %+v", conflict)
	}
}

func TestMemory_UniqueIndexIgnoresDeleted(t *testing.T) {
	m := NewMemory(UniqueIndex{Collection: "maladies", Field: "maladyName"})
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	if _, err := m.SoftDelete(ctx, "maladies", rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The name frees up once its holder is soft-deleted.
	if _, err := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"}); err != nil {
		t.Errorf("expected insert after delete to succeed, got %v", err)
	}
}

func TestMemory_UpdateRespectsUniqueIndex(t *testing.T) {
	m := NewMemory(UniqueIndex{Collection: "maladies", Field: "maladyName"})
	ctx := context.Background()

	m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Migraine"})

	_, err := m.UpdateByID(ctx, "maladies", rec.ID, Document{"maladyName": "Flu"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// Updating a record without changing the unique field must not
	// conflict with itself.
	if _, err := m.UpdateByID(ctx, "maladies", rec.ID, Document{"maladyName": "Migraine"}); err != nil {
		t.Errorf("expected self-update to succeed, got %v", err)
	}
}

func TestMemory_CollectionsAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	if _, err := m.FindOne(ctx, "medicaments", rec.ID, Query{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across collections, got %v", err)
	}
}

func TestMemory_ClonesProtectInternalState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, _ := m.Insert(ctx, "maladies", Document{"maladyName": "Flu"})
	rec.Fields["maladyName"] = "Tampered"

	got, _ := m.FindOne(ctx, "maladies", rec.ID, Query{})
	if got.Fields["maladyName"] != "Flu" {
		t.Error("mutating a returned record must not affect the store")
	}
}
