package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTableIsCopied(t *testing.T) {
	rows := []Record{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}
	table := NewRecordTable(rows)

	rows[0].Text = "mutated"
	got := table.Rows()
	got[1].Text = "also mutated"

	assert.Equal(t, []string{"a", "b"}, table.Texts())
}

func TestRecordTableRow(t *testing.T) {
	table := NewRecordTable([]Record{{ID: 7}})

	r, ok := table.Row(0)
	assert.True(t, ok)
	assert.Equal(t, int64(7), r.ID)

	_, ok = table.Row(1)
	assert.False(t, ok)
	_, ok = table.Row(-1)
	assert.False(t, ok)
}

func TestRecordTableFilterKeepsOrder(t *testing.T) {
	table := NewRecordTable([]Record{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}})

	odd := table.Filter(func(_ int, r Record) bool { return r.ID%2 == 1 })

	ids, err := odd.Column(ColumnID)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(3)}, ids)
	assert.Equal(t, 4, table.Len())
}

func TestRecordTableColumn(t *testing.T) {
	table := NewRecordTable([]Record{{Text: "x", URL: EmptyURL, Label: Label50Plus}})

	for _, name := range []string{ColumnID, ColumnText, ColumnURL, ColumnType, ColumnScore, ColumnTimestamp, ColumnLabel} {
		col, err := table.Column(name)
		require.NoError(t, err, name)
		assert.Len(t, col, 1)
	}

	_, err := table.Column("title")
	assert.Error(t, err)
}

func TestHasURL(t *testing.T) {
	assert.False(t, Record{URL: EmptyURL}.HasURL())
	assert.False(t, Record{}.HasURL())
	assert.True(t, Record{URL: "https://example.com"}.HasURL())
}

func TestClassLabel(t *testing.T) {
	for i, l := range ClassLabels {
		assert.Equal(t, i, l.Index())
		got, ok := LabelAt(i)
		assert.True(t, ok)
		assert.Equal(t, l, got)

		hot := l.OneHot()
		assert.Len(t, hot, NumClasses)
		assert.Equal(t, float32(1), hot[i])
	}

	_, ok := ParseClassLabel("100+")
	assert.False(t, ok)
	assert.Equal(t, -1, ClassLabel("").Index())
	assert.Equal(t, make([]float32, NumClasses), ClassLabel("x").OneHot())
	_, ok = LabelAt(NumClasses)
	assert.False(t, ok)
}

func TestEncodedFeatureValidate(t *testing.T) {
	assert.NoError(t, EncodedFeature{InputIDs: []int{101, 7, 102, 0}, AttentionMask: []int{1, 1, 1, 0}}.Validate())
	assert.Error(t, EncodedFeature{InputIDs: []int{1}, AttentionMask: []int{1, 0}}.Validate())
	assert.Error(t, EncodedFeature{InputIDs: []int{1}, AttentionMask: []int{2}}.Validate())
}

func TestFeatureKeyValidate(t *testing.T) {
	assert.NoError(t, FeatureKey{Split: "train", BlockSize: 510, Tokenizer: "distilbert-base-uncased"}.Validate())
	assert.Error(t, FeatureKey{BlockSize: 510, Tokenizer: "t"}.Validate())
	assert.Error(t, FeatureKey{Split: "train", BlockSize: 0, Tokenizer: "t"}.Validate())
	assert.Error(t, FeatureKey{Split: "train", BlockSize: 8}.Validate())
	assert.Equal(t, "train/8/t", FeatureKey{Split: "train", BlockSize: 8, Tokenizer: "t"}.String())
}
