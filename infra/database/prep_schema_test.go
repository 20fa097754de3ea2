package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prep_server/pkg/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type fakeQuerier struct {
	execs   []string
	execErr error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), f.execErr
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("relation does not exist")
}

func TestEnsurePostsTable(t *testing.T) {
	q := &fakeQuerier{}
	assert.NoError(t, NewSchema(q).EnsurePostsTable(context.Background()))
	assert.Len(t, q.execs, 1)
	assert.True(t, strings.HasPrefix(q.execs[0], "CREATE TABLE IF NOT EXISTS posts"))

	for _, col := range []string{"title", "url", "type", "score", "timestamp"} {
		assert.Contains(t, CreatePostsTable, col)
	}
}

func TestSchemaErrorsAreUpstreamFailures(t *testing.T) {
	q := &fakeQuerier{execErr: errors.New("permission denied")}
	s := NewSchema(q)

	assert.True(t, apperr.Is(s.EnsurePostsTable(context.Background()), apperr.CodeUpstreamFailure))

	_, err := s.ListTables(context.Background())
	assert.True(t, apperr.Is(err, apperr.CodeUpstreamFailure))
}
