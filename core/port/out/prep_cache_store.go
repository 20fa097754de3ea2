package out

import (
	"context"

	"prep_server/core/domain"
)

// CacheStore persists encoded feature blobs keyed by (split, block size, tokenizer).
// Implementations must never expose a partially written entry; last writer wins.
type CacheStore interface {
	// Get returns ok=false when no entry exists for key.
	Get(ctx context.Context, key domain.FeatureKey) (data []byte, ok bool, err error)
	Put(ctx context.Context, key domain.FeatureKey, data []byte) error
	Delete(ctx context.Context, key domain.FeatureKey) error
}
