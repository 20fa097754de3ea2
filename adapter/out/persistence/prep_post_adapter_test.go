package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"prep_server/core/domain"
	"prep_server/pkg/apperr"
	"prep_server/pkg/resilience"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var listQuery = regexp.QuoteMeta(`SELECT id, title, url, type, score, timestamp FROM posts ORDER BY id`)

func TestListPostsMapsNulls(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2022, 5, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(listQuery).WillReturnRows(
		sqlmock.NewRows([]string{"id", "title", "url", "type", "score", "timestamp"}).
			AddRow(int64(1), "Show HN: Thing", "https://example.com/x", "story", int64(42), ts).
			AddRow(int64(2), nil, nil, nil, nil, nil).
			AddRow(int64(3), "Ask HN", "", "story", int64(0), ts),
	)

	records, err := NewPostAdapter(db, nil).ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, domain.Record{
		ID: 1, Text: "Show HN: Thing", URL: "https://example.com/x", Type: "story", Score: 42, Timestamp: ts,
	}, records[0])
	assert.Equal(t, domain.Record{ID: 2, URL: domain.EmptyURL}, records[1])
	assert.Equal(t, domain.EmptyURL, records[2].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPostsSurfacesUpstreamFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(listQuery).WillReturnError(errors.New("connection refused"))

	_, err := NewPostAdapter(db, nil).ListPosts(context.Background())

	assert.True(t, apperr.Is(err, apperr.CodeUpstreamFailure))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestListPostsBreakerOpens(t *testing.T) {
	db, mock := newMockDB(t)
	breaker := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name: "postgres", FailureThreshold: 2, MaxHalfOpen: 1, Interval: time.Minute, Timeout: time.Minute,
	}, zerolog.Nop())
	adapter := NewPostAdapter(db, breaker)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(listQuery).WillReturnError(errors.New("down"))
		_, err := adapter.ListPosts(context.Background())
		require.Error(t, err)
	}

	_, err := adapter.ListPosts(context.Background())
	assert.True(t, apperr.Is(err, apperr.CodeUpstreamFailure))
	assert.True(t, resilience.IsOpen(err))
	assert.NoError(t, mock.ExpectationsWereMet(), "open breaker does not hit the database")
}

func TestCountPosts(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM posts`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := NewPostAdapter(db, nil).CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestInsertPostsUsesCopy(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2022, 5, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`COPY "posts" ("title", "url", "type", "score", "timestamp") FROM STDIN`))
	prep.ExpectExec().WithArgs("Hi", "https://a.io", "story", 3, ts).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("Yo", nil, "", 60, nil).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := NewPostAdapter(db, nil).InsertPosts(context.Background(), []domain.Record{
		{Text: "Hi", URL: "https://a.io", Type: "story", Score: 3, Timestamp: ts},
		{Text: "Yo", URL: domain.EmptyURL, Score: 60},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPostsRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY`)
	prep.ExpectExec().WillReturnError(errors.New("bad row"))
	mock.ExpectRollback()

	_, err := NewPostAdapter(db, nil).InsertPosts(context.Background(), []domain.Record{{Text: "x"}})
	assert.True(t, apperr.Is(err, apperr.CodeUpstreamFailure))
	assert.NoError(t, mock.ExpectationsWereMet())
}
