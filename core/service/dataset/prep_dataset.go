// Package dataset composes the preparation stages into an indexable dataset.
package dataset

import (
	"fmt"

	"prep_server/core/domain"
	"prep_server/pkg/apperr"
)

// Dataset is a read-only, ordered view of encoded features and their labels.
// Feature i and label i always belong to the same record.
type Dataset struct {
	split    string
	features []domain.EncodedFeature
	labels   []domain.ClassLabel
}

// New pairs features with labels positionally.
func New(split string, features []domain.EncodedFeature, labels []domain.ClassLabel) (*Dataset, error) {
	if len(features) != len(labels) {
		return nil, apperr.Internal(fmt.Sprintf("dataset %s: %d features for %d labels", split, len(features), len(labels)))
	}
	return &Dataset{split: split, features: features, labels: labels}, nil
}

// Split returns the split name.
func (d *Dataset) Split() string { return d.split }

// Len returns the number of items.
func (d *Dataset) Len() int { return len(d.features) }

// Get returns item i. Negative indices are out of range.
func (d *Dataset) Get(i int) (domain.DatasetItem, error) {
	if i < 0 || i >= len(d.features) {
		return domain.DatasetItem{}, apperr.OutOfRange(i, len(d.features))
	}
	f := d.features[i]
	return domain.DatasetItem{
		InputIDs:      append([]int(nil), f.InputIDs...),
		AttentionMask: append([]int(nil), f.AttentionMask...),
		Label:         d.labels[i],
	}, nil
}

// Each calls fn for every item in order, stopping at the first error.
func (d *Dataset) Each(fn func(i int, item domain.DatasetItem) error) error {
	for i := range d.features {
		item, _ := d.Get(i)
		if err := fn(i, item); err != nil {
			return err
		}
	}
	return nil
}

// Batches groups items into consecutive batches of size; the last may be shorter.
func (d *Dataset) Batches(size int) ([]domain.Batch, error) {
	if size <= 0 {
		return nil, apperr.InvalidArgument("batch_size", fmt.Sprintf("must be > 0, got %d", size))
	}
	batches := make([]domain.Batch, 0, (d.Len()+size-1)/size)
	for start := 0; start < d.Len(); start += size {
		end := min(start+size, d.Len())
		b := domain.Batch{Index: len(batches), Items: make([]domain.DatasetItem, 0, end-start)}
		for i := start; i < end; i++ {
			item, _ := d.Get(i)
			b.Items = append(b.Items, item)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// Distribution counts items per label.
func (d *Dataset) Distribution() map[domain.ClassLabel]int {
	dist := make(map[domain.ClassLabel]int, domain.NumClasses)
	for _, l := range domain.ClassLabels {
		dist[l] = 0
	}
	for _, l := range d.labels {
		dist[l]++
	}
	return dist
}
