package domain

import (
	"errors"
	"fmt"
	"strings"
)

// EncodedFeature is the tokenized form of one record.
// InputIDs and AttentionMask always have the same length.
type EncodedFeature struct {
	InputIDs      []int `json:"input_ids"`
	AttentionMask []int `json:"attention_mask"`
}

// Len returns the sequence length.
func (f EncodedFeature) Len() int {
	return len(f.InputIDs)
}

// Validate checks the length invariant and that the mask is binary.
func (f EncodedFeature) Validate() error {
	if len(f.InputIDs) != len(f.AttentionMask) {
		return fmt.Errorf("input_ids length %d != attention_mask length %d", len(f.InputIDs), len(f.AttentionMask))
	}
	for i, m := range f.AttentionMask {
		if m != 0 && m != 1 {
			return fmt.Errorf("attention_mask[%d] = %d, want 0 or 1", i, m)
		}
	}
	return nil
}

// Equal reports element-wise equality.
func (f EncodedFeature) Equal(other EncodedFeature) bool {
	if len(f.InputIDs) != len(other.InputIDs) || len(f.AttentionMask) != len(other.AttentionMask) {
		return false
	}
	for i := range f.InputIDs {
		if f.InputIDs[i] != other.InputIDs[i] {
			return false
		}
	}
	for i := range f.AttentionMask {
		if f.AttentionMask[i] != other.AttentionMask[i] {
			return false
		}
	}
	return true
}

// FeatureKey identifies one cached feature sequence.
// BlockSize is the effective block size (after special-token overhead).
type FeatureKey struct {
	Split     string `json:"split" bson:"split"`
	BlockSize int    `json:"block_size" bson:"block_size"`
	Tokenizer string `json:"tokenizer" bson:"tokenizer"`
}

// Validate rejects keys that cannot address a cache entry.
func (k FeatureKey) Validate() error {
	if strings.TrimSpace(k.Split) == "" {
		return errors.New("feature key: empty split")
	}
	if k.BlockSize <= 0 {
		return fmt.Errorf("feature key: block size must be positive, got %d", k.BlockSize)
	}
	if strings.TrimSpace(k.Tokenizer) == "" {
		return errors.New("feature key: empty tokenizer identity")
	}
	return nil
}

func (k FeatureKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Split, k.BlockSize, k.Tokenizer)
}

// DatasetItem is one model input: an encoded feature and its class label.
type DatasetItem struct {
	InputIDs      []int      `json:"input_ids"`
	AttentionMask []int      `json:"attention_mask"`
	Label         ClassLabel `json:"label"`
}

// Batch is a contiguous run of dataset items handed to a trainer.
type Batch struct {
	Index int           `json:"index"`
	Items []DatasetItem `json:"items"`
}
