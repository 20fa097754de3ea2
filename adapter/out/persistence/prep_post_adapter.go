// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/apperr"
	"prep_server/pkg/resilience"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const postsTable = "posts"

// PostAdapter implements out.PostStore using PostgreSQL.
type PostAdapter struct {
	db      *sqlx.DB
	breaker *resilience.CircuitBreaker
}

var _ out.PostStore = (*PostAdapter)(nil)

// NewPostAdapter creates a new PostAdapter. breaker may be nil.
func NewPostAdapter(db *sqlx.DB, breaker *resilience.CircuitBreaker) *PostAdapter {
	return &PostAdapter{db: db, breaker: breaker}
}

// postRow represents the database row for posts.
type postRow struct {
	ID        int64          `db:"id"`
	Title     sql.NullString `db:"title"`
	URL       sql.NullString `db:"url"`
	Type      sql.NullString `db:"type"`
	Score     sql.NullInt64  `db:"score"`
	Timestamp sql.NullTime   `db:"timestamp"`
}

func (r *postRow) toRecord() domain.Record {
	rec := domain.Record{
		ID:    r.ID,
		Text:  r.Title.String,
		URL:   domain.EmptyURL,
		Type:  r.Type.String,
		Score: int(r.Score.Int64),
	}
	if r.URL.Valid && r.URL.String != "" {
		rec.URL = r.URL.String
	}
	if r.Timestamp.Valid {
		rec.Timestamp = r.Timestamp.Time.UTC()
	}
	return rec
}

// ListPosts retrieves every post ordered by id.
func (a *PostAdapter) ListPosts(ctx context.Context) ([]domain.Record, error) {
	var rows []postRow
	query := `SELECT id, title, url, type, score, timestamp FROM posts ORDER BY id`

	err := a.guard(func() error {
		return a.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, apperr.UpstreamFailure("postgres", fmt.Errorf("failed to list posts: %w", err))
	}

	records := make([]domain.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].toRecord()
	}
	return records, nil
}

// CountPosts returns the number of rows in the posts table.
func (a *PostAdapter) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := a.guard(func() error {
		return a.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts`)
	})
	if err != nil {
		return 0, apperr.UpstreamFailure("postgres", fmt.Errorf("failed to count posts: %w", err))
	}
	return n, nil
}

// InsertPosts bulk-loads records with COPY inside one transaction.
// IDs are assigned by the database.
func (a *PostAdapter) InsertPosts(ctx context.Context, records []domain.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	err := a.guard(func() error {
		tx, err := a.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(postsTable, "title", "url", "type", "score", "timestamp"))
		if err != nil {
			return err
		}
		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.Text, nullableURL(r.URL), r.Type, r.Score, nullableTime(r.Timestamp)); err != nil {
				_ = stmt.Close()
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return err
		}
		if err := stmt.Close(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, apperr.UpstreamFailure("postgres", fmt.Errorf("failed to insert posts: %w", err))
	}
	return int64(len(records)), nil
}

func (a *PostAdapter) guard(fn func() error) error {
	if a.breaker == nil {
		return fn()
	}
	return a.breaker.Execute(fn)
}

func nullableURL(url string) sql.NullString {
	if url == "" || url == domain.EmptyURL {
		return sql.NullString{}
	}
	return sql.NullString{String: url, Valid: true}
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
