package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoyFahel/cloud-project/internal/platform/db"
	"github.com/RoyFahel/cloud-project/internal/store"
)

// newPostgresStore connects to the database named by TEST_DATABASE_URL
// and prepares the schema. Tests are skipped when the variable is unset.
func newPostgresStore(t *testing.T) (*store.Postgres, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	indexes := []store.UniqueIndex{{Collection: "pgtest_maladies", Field: "maladyName"}}
	if err := db.EnsureSchema(ctx, pool, indexes); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM documents WHERE collection LIKE 'pgtest_%'"); err != nil {
		t.Fatalf("clean test collections: %v", err)
	}
	return store.NewPostgres(pool, indexes...), pool
}

func TestPostgres_RoundTrip(t *testing.T) {
	st, _ := newPostgresStore(t)
	ctx := context.Background()

	rec, err := st.Insert(ctx, "pgtest_maladies", store.Document{"maladyName": "Flu"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ID == uuid.Nil || rec.CreatedAt.IsZero() {
		t.Fatal("expected generated id and timestamps")
	}

	got, err := st.FindOne(ctx, "pgtest_maladies", rec.ID, store.Query{})
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got.Fields["maladyName"] != "Flu" {
		t.Errorf("round trip lost maladyName: %v", got.Fields["maladyName"])
	}

	updated, err := st.UpdateByID(ctx, "pgtest_maladies", rec.ID, store.Document{"notes": "seasonal"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Fields["maladyName"] != "Flu" || updated.Fields["notes"] != "seasonal" {
		t.Errorf("expected merged document, got %v", updated.Fields)
	}

	if _, err := st.SoftDelete(ctx, "pgtest_maladies", rec.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := st.FindOne(ctx, "pgtest_maladies", rec.ID, store.Query{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := st.FindOne(ctx, "pgtest_maladies", rec.ID, store.Query{IncludeDeleted: true}); err != nil {
		t.Errorf("deleted record must stay readable with IncludeDeleted: %v", err)
	}
}

func TestPostgres_UniqueIndexConflict(t *testing.T) {
	st, _ := newPostgresStore(t)
	ctx := context.Background()

	if _, err := st.Insert(ctx, "pgtest_maladies", store.Document{"maladyName": "Flu"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := st.Insert(ctx, "pgtest_maladies", store.Document{"maladyName": "Flu"})
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Field != "maladyName" {
		t.Errorf("expected field recovered from the index name, got %q", conflict.Field)
	}
}

func TestPostgres_DeletedNameReusable(t *testing.T) {
	st, _ := newPostgresStore(t)
	ctx := context.Background()

	rec, err := st.Insert(ctx, "pgtest_maladies", store.Document{"maladyName": "Flu"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.SoftDelete(ctx, "pgtest_maladies", rec.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := st.Insert(ctx, "pgtest_maladies", store.Document{"maladyName": "Flu"}); err != nil {
		t.Errorf("partial index must free the name after soft delete: %v", err)
	}
}
