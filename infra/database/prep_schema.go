package database

import (
	"context"
	"fmt"

	"prep_server/core/port/out"
	"prep_server/pkg/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CreatePostsTable is the DDL for the raw posts table.
const CreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
	id        SERIAL PRIMARY KEY,
	title     TEXT,
	url       TEXT,
	type      TEXT,
	score     INT,
	timestamp TIMESTAMP
)`

const listTablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = 'public' ORDER BY table_name`

// Querier is the subset of *pgxpool.Pool the schema manager uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Schema implements out.SchemaManager.
type Schema struct {
	db Querier
}

var _ out.SchemaManager = (*Schema)(nil)

// NewSchema creates a schema manager over db.
func NewSchema(db Querier) *Schema {
	return &Schema{db: db}
}

// EnsurePostsTable creates the posts table when it does not exist.
func (s *Schema) EnsurePostsTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, CreatePostsTable); err != nil {
		return apperr.UpstreamFailure("postgres", fmt.Errorf("failed to create posts table: %w", err))
	}
	return nil
}

// ListTables lists tables in the public schema.
func (s *Schema) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, listTablesQuery)
	if err != nil {
		return nil, apperr.UpstreamFailure("postgres", fmt.Errorf("failed to list tables: %w", err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.UpstreamFailure("postgres", fmt.Errorf("failed to scan tables: %w", err))
	}
	return names, nil
}
