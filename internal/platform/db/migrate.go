package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoyFahel/cloud-project/internal/store"
)

// schemaDDL is the single documents table every collection lives in.
// Soft deletion is a flag, never a DELETE: history stays queryable and
// ids are never reused.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    collection TEXT NOT NULL,
    doc JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_documents_collection_created
    ON documents (collection, created_at DESC);
`

// EnsureSchema creates the documents table and one partial unique index
// per declared unique field, scoped to live records so a name frees up
// when its record is soft-deleted. Index names follow
// uq_documents_<collection>_<field>; the store parses them back out of
// constraint violations to build conflict errors.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, indexes []store.UniqueIndex) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}

	for _, idx := range indexes {
		name := idx.IndexName()
		ddl := fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %s ON documents ((doc->>'%s')) WHERE collection = '%s' AND NOT is_deleted`,
			name, idx.Field, idx.Collection)
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create unique index %s: %w", name, err)
		}
	}
	return nil
}
