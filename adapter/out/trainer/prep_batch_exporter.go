// Package trainer hands batches to an external training process through files.
package trainer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/fsutil"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// BatchExporter implements out.Trainer by writing one JSON Lines file per split.
// Each line is a domain.Batch; the training process reads the file it is pointed at.
type BatchExporter struct {
	dir string
	log zerolog.Logger
}

var _ out.Trainer = (*BatchExporter)(nil)

// NewBatchExporter writes into dir.
func NewBatchExporter(dir string, log zerolog.Logger) *BatchExporter {
	return &BatchExporter{dir: dir, log: log.With().Str("component", "batch_exporter").Logger()}
}

// Path returns the export file for split.
func (e *BatchExporter) Path(split string) string {
	return filepath.Join(e.dir, split+".batches.jsonl")
}

// Train writes batches for split, replacing any previous export.
func (e *BatchExporter) Train(ctx context.Context, split string, batches []domain.Batch) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("failed to encode batch %d: %w", b.Index, err)
		}
	}

	path := e.Path(split)
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write batches: %w", err)
	}
	e.log.Info().Str("split", split).Str("path", path).Int("batches", len(batches)).Msg("exported batches")
	return nil
}
