// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"

	"prep_server/core/domain"
)

// =============================================================================
// PostStore (PostgreSQL - raw posts table)
// =============================================================================

// PostStore reads and writes the raw posts table.
type PostStore interface {
	// ListPosts returns every row of the posts table, ordered by id.
	ListPosts(ctx context.Context) ([]domain.Record, error)
	// InsertPosts bulk-inserts records and returns the number written.
	InsertPosts(ctx context.Context, records []domain.Record) (int64, error)
	CountPosts(ctx context.Context) (int64, error)
}

// SchemaManager owns the posts schema.
type SchemaManager interface {
	EnsurePostsTable(ctx context.Context) error
	ListTables(ctx context.Context) ([]string, error)
}
