package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRecord_MarshalJSONFlattens(t *testing.T) {
	rec := &Record{
		ID:         uuid.New(),
		Collection: "maladies",
		Fields:     Document{"maladyName": "Flu"},
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out["id"] != rec.ID.String() {
		t.Errorf("expected flattened id, got %v", out["id"])
	}
	if out["maladyName"] != "Flu" {
		t.Errorf("expected domain field at top level, got %v", out["maladyName"])
	}
	if out["isDeleted"] != false {
		t.Errorf("expected isDeleted false, got %v", out["isDeleted"])
	}
	if out["createdAt"] != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected createdAt: %v", out["createdAt"])
	}
	if _, nested := out["Fields"]; nested {
		t.Error("fields must not appear as a nested object")
	}
}

func TestUniqueIndex_IndexName(t *testing.T) {
	idx := UniqueIndex{Collection: "maladies", Field: "maladyName"}
	// Postgres folds unquoted identifiers to lower case and reports them
	// that way in constraint violations.
	if got := idx.IndexName(); got != "uq_documents_maladies_maladyname" {
		t.Errorf("unexpected index name: %q", got)
	}
}

func TestConflictError_Message(t *testing.T) {
	err := &ConflictError{Collection: "maladies", Field: "maladyName", Value: "Flu"}
	if err.Error() != `duplicate maladyName "Flu" in maladies` {
		t.Errorf("unexpected message: %q", err.Error())
	}

	bare := &ConflictError{Collection: "maladies"}
	if bare.Error() != "duplicate key in maladies" {
		t.Errorf("unexpected message: %q", bare.Error())
	}
}

func TestPersistenceError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &PersistenceError{Op: "insert", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected PersistenceError to unwrap its cause")
	}
	if err.Error() != "store insert: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestRecord_CloneIsolatesFields(t *testing.T) {
	rec := &Record{ID: uuid.New(), Fields: Document{"maladyName": "Flu"}}
	cp := rec.Clone()
	cp.Fields["maladyName"] = "Changed"
	if rec.Fields["maladyName"] != "Flu" {
		t.Error("mutating a clone must not affect the original")
	}
}
