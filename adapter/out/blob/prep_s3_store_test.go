package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"prep_server/pkg/apperr"
	"prep_server/pkg/resilience"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// fakeS3 serves path-style GETs for bucket "data". The first failures requests get a 500.
type fakeS3 struct {
	objects  map[string][]byte
	failures int32
	requests atomic.Int32
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := f.requests.Add(1)
	if n <= f.failures {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	body, ok := f.objects[r.URL.Path]
	if !ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(noSuchKey))
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func newStore(t *testing.T, srv *httptest.Server, breaker *resilience.CircuitBreaker) *S3Store {
	t.Helper()
	cfg := Config{
		Bucket:      "data",
		Prefix:      "splits",
		Endpoint:    srv.URL,
		Region:      "us-east-1",
		AccessKey:   "test",
		SecretKey:   "test",
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
	}
	return NewS3Store(NewClient(cfg), cfg, breaker, zerolog.Nop())
}

func TestFetch(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"/data/splits/train.json": []byte(`[{"text":"hi"}]`)}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	data, err := newStore(t, srv, nil).Fetch(context.Background(), "train.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"text":"hi"}]`, string(data))
}

func TestFetchMissingIsNotFoundWithoutRetry(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newStore(t, srv, nil).Fetch(context.Background(), "val.json")

	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
	assert.Equal(t, int32(1), fake.requests.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"/data/splits/test.json": []byte("[]")}, failures: 2}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	data, err := newStore(t, srv, nil).Fetch(context.Background(), "test.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, int32(3), fake.requests.Load())
}

func TestFetchGivesUpAsUpstreamFailure(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, failures: 100}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name: "s3", FailureThreshold: 2, MaxHalfOpen: 1, Interval: time.Minute, Timeout: time.Minute,
	}, zerolog.Nop())

	_, err := newStore(t, srv, breaker).Fetch(context.Background(), "train.json")
	assert.True(t, apperr.Is(err, apperr.CodeUpstreamFailure))
	assert.Equal(t, "open", breaker.State())
	assert.Equal(t, int32(2), fake.requests.Load(), "open breaker stops further requests")
}
