package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores every collection in a single documents table with a
// JSONB field bag. Uniqueness is enforced by partial unique indexes over
// doc->>field scoped to live records, so the constraint lives in the
// store rather than in application code.
type Postgres struct {
	pool    *pgxpool.Pool
	indexes map[string]UniqueIndex // constraint name -> declared index
}

func NewPostgres(pool *pgxpool.Pool, indexes ...UniqueIndex) *Postgres {
	byName := make(map[string]UniqueIndex, len(indexes))
	for _, idx := range indexes {
		byName[idx.IndexName()] = idx
	}
	return &Postgres{pool: pool, indexes: byName}
}

const docCols = `id, collection, doc, is_deleted, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec Record
		raw []byte
	)
	if err := row.Scan(&rec.ID, &rec.Collection, &raw, &rec.IsDeleted, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = Document{}
	}
	return &rec, nil
}

// conflictFrom translates a unique_violation into a *ConflictError,
// resolving the offending field from the declared index whose name
// matches the violated constraint (see db.EnsureSchema).
func (p *Postgres) conflictFrom(pgErr *pgconn.PgError, collection string, doc Document) error {
	idx, ok := p.indexes[pgErr.ConstraintName]
	if !ok {
		return &ConflictError{Collection: collection}
	}
	value, _ := doc[idx.Field].(string)
	return &ConflictError{Collection: collection, Field: idx.Field, Value: value}
}

func (p *Postgres) Insert(ctx context.Context, collection string, doc Document) (*Record, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &PersistenceError{Op: "insert", Err: err}
	}

	id := uuid.New()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO documents (id, collection, doc)
		VALUES ($1, $2, $3)
		RETURNING `+docCols, id, collection, raw)

	rec, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, p.conflictFrom(pgErr, collection, doc)
		}
		return nil, &PersistenceError{Op: "insert", Err: err}
	}
	return rec, nil
}

func (p *Postgres) FindMany(ctx context.Context, collection string, q Query) ([]*Record, error) {
	sql := `SELECT ` + docCols + ` FROM documents WHERE collection = $1`
	if !q.IncludeDeleted {
		sql += ` AND NOT is_deleted`
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, sql, collection)
	if err != nil {
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "find", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	return out, nil
}

func (p *Postgres) FindOne(ctx context.Context, collection string, id uuid.UUID, q Query) (*Record, error) {
	sql := `SELECT ` + docCols + ` FROM documents WHERE collection = $1 AND id = $2`
	if !q.IncludeDeleted {
		sql += ` AND NOT is_deleted`
	}

	rec, err := scanRecord(p.pool.QueryRow(ctx, sql, collection, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	return rec, nil
}

func (p *Postgres) UpdateByID(ctx context.Context, collection string, id uuid.UUID, fields Document) (*Record, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, &PersistenceError{Op: "update", Err: err}
	}

	row := p.pool.QueryRow(ctx, `
		UPDATE documents
		SET doc = doc || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING `+docCols, collection, id, raw)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, p.conflictFrom(pgErr, collection, fields)
		}
		return nil, &PersistenceError{Op: "update", Err: err}
	}
	return rec, nil
}

func (p *Postgres) SoftDelete(ctx context.Context, collection string, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE documents
		SET is_deleted = TRUE, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING `+docCols, collection, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "delete", Err: err}
	}
	return rec, nil
}

var _ Store = (*Postgres)(nil)
