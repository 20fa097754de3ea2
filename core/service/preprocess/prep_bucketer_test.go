package preprocess

import (
	"testing"

	"prep_server/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestBucketBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  domain.ClassLabel
	}{
		{0, domain.Label0To5},
		{5, domain.Label0To5},
		{6, domain.Label5To25},
		{25, domain.Label5To25},
		{26, domain.Label25To50},
		{50, domain.Label25To50},
		{51, domain.Label50Plus},
		{100000, domain.Label50Plus},
		{-1, domain.Label0To5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Bucket(tt.score), "score %d", tt.score)
	}
}

func TestBucketPartitionsScores(t *testing.T) {
	preds := []func(int) bool{
		func(s int) bool { return s <= 5 },
		func(s int) bool { return s > 5 && s <= 25 },
		func(s int) bool { return s > 25 && s <= 50 },
		func(s int) bool { return s > 50 },
	}

	for s := 0; s <= 200; s++ {
		matched := 0
		for i, p := range preds {
			if p(s) {
				matched++
				assert.Equal(t, domain.ClassLabels[i], Bucket(s), "score %d", s)
			}
		}
		assert.Equal(t, 1, matched, "score %d must match exactly one bucket", s)
	}
}

func TestBucketTable(t *testing.T) {
	in := domain.NewRecordTable([]domain.Record{{Score: 3}, {Score: 10}, {Score: 60}})

	out := BucketTable(in)

	assert.Equal(t, []domain.ClassLabel{"0-5", "5-25", "50+"}, out.Labels())
	scores, err := out.Column(domain.ColumnScore)
	assert.NoError(t, err)
	assert.Equal(t, []any{3, 10, 60}, scores)
	assert.False(t, in.Labeled())
	assert.True(t, out.Labeled())
}

func TestDistribution(t *testing.T) {
	table := BucketTable(domain.NewRecordTable([]domain.Record{{Score: 1}, {Score: 2}, {Score: 70}}))

	assert.Equal(t, map[domain.ClassLabel]int{
		domain.Label0To5:   2,
		domain.Label5To25:  0,
		domain.Label25To50: 0,
		domain.Label50Plus: 1,
	}, Distribution(table))
}
