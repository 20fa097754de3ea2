package out

import (
	"context"

	"prep_server/core/domain"
)

// Trainer consumes tokenized batches. Training itself lives outside this service.
type Trainer interface {
	Train(ctx context.Context, split string, batches []domain.Batch) error
}
