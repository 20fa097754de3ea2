// Package trainer hands prepared datasets to an external trainer.
//
// Items carry their label as a domain.ClassLabel. Trainers that work on class
// indices convert with ClassLabel.Index, or with Argmax when the label arrives
// one-hot or as a probability vector.
package trainer

import (
	"context"
	"fmt"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/apperr"

	"github.com/rs/zerolog"
)

// Argmax returns the index of the largest value; ties go to the lowest index.
// It returns -1 for an empty vector.
func Argmax(vec []float32) int {
	best := -1
	for i, v := range vec {
		if best < 0 || v > vec[best] {
			best = i
		}
	}
	return best
}

// LabelFromVector converts a one-hot or probability vector back to a ClassLabel.
func LabelFromVector(vec []float32) (domain.ClassLabel, error) {
	if len(vec) != domain.NumClasses {
		return "", apperr.InvalidArgument("label", fmt.Sprintf("vector has %d entries, want %d", len(vec), domain.NumClasses))
	}
	l, _ := domain.LabelAt(Argmax(vec))
	return l, nil
}

// Batcher is the part of a dataset the feeder needs.
type Batcher interface {
	Split() string
	Batches(size int) ([]domain.Batch, error)
}

// Feeder splits datasets into batches and passes them to a Trainer.
type Feeder struct {
	trainer   out.Trainer
	batchSize int
	log       zerolog.Logger
}

// NewFeeder creates a feeder. batchSize must be positive.
func NewFeeder(trainer out.Trainer, batchSize int, log zerolog.Logger) *Feeder {
	return &Feeder{
		trainer:   trainer,
		batchSize: batchSize,
		log:       log.With().Str("component", "trainer_feeder").Logger(),
	}
}

// Feed sends every batch of ds to the trainer.
func (f *Feeder) Feed(ctx context.Context, ds Batcher) error {
	batches, err := ds.Batches(f.batchSize)
	if err != nil {
		return err
	}
	if err := f.trainer.Train(ctx, ds.Split(), batches); err != nil {
		return fmt.Errorf("failed to feed %s batches: %w", ds.Split(), err)
	}
	f.log.Info().Str("split", ds.Split()).Int("batches", len(batches)).Msg("fed dataset to trainer")
	return nil
}
