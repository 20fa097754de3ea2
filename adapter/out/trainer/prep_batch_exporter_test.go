package trainer

import (
	"bufio"
	"context"
	"os"
	"testing"

	"prep_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchExporterWritesJSONLines(t *testing.T) {
	exp := NewBatchExporter(t.TempDir(), zerolog.Nop())
	batches := []domain.Batch{
		{Index: 0, Items: []domain.DatasetItem{{InputIDs: []int{101, 5, 102}, AttentionMask: []int{1, 1, 1}, Label: "0-5"}}},
		{Index: 1, Items: []domain.DatasetItem{{InputIDs: []int{101, 102, 0}, AttentionMask: []int{1, 1, 0}, Label: "50+"}}},
	}

	require.NoError(t, exp.Train(context.Background(), "train", batches))

	f, err := os.Open(exp.Path("train"))
	require.NoError(t, err)
	defer f.Close()

	var got []domain.Batch
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var b domain.Batch
		require.NoError(t, json.Unmarshal(sc.Bytes(), &b))
		got = append(got, b)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, batches, got)
}

func TestBatchExporterHonoursContext(t *testing.T) {
	exp := NewBatchExporter(t.TempDir(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exp.Train(ctx, "val", []domain.Batch{{Index: 0}})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(exp.Path("val"))
	assert.True(t, os.IsNotExist(statErr))
}
