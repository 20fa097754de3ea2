// Package features encodes record text into token features and caches the result.
package features

import (
	"context"
	"errors"
	"fmt"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/apperr"
	"prep_server/pkg/metrics"

	"github.com/rs/zerolog"
)

// Result is the outcome of one Encode call.
type Result struct {
	Features []domain.EncodedFeature
	Key      domain.FeatureKey
	CacheHit bool
	Latency  metrics.LatencyStats // per-row tokenization latency; empty on a hit
}

// TokenizedFeatureCache returns per-row features for a table, reading them from
// the store when present and encoding and persisting them otherwise.
type TokenizedFeatureCache struct {
	store out.CacheStore
	log   zerolog.Logger
}

// NewTokenizedFeatureCache creates a cache backed by store.
func NewTokenizedFeatureCache(store out.CacheStore, log zerolog.Logger) *TokenizedFeatureCache {
	return &TokenizedFeatureCache{
		store: store,
		log:   log.With().Str("component", "feature_cache").Logger(),
	}
}

// EffectiveBlockSize is blockSize minus the positions the tokenizer reserves for special tokens.
func EffectiveBlockSize(blockSize int, tok out.Tokenizer) (int, error) {
	effective := blockSize - tok.SpecialTokenOverhead()
	if effective <= 0 {
		return 0, apperr.InvalidArgument("block_size",
			fmt.Sprintf("block size %d leaves no room after %d special tokens", blockSize, tok.SpecialTokenOverhead()))
	}
	return effective, nil
}

// Key returns the cache key for a split encoded with tok at blockSize.
func Key(split string, blockSize int, tok out.Tokenizer) (domain.FeatureKey, error) {
	effective, err := EffectiveBlockSize(blockSize, tok)
	if err != nil {
		return domain.FeatureKey{}, err
	}
	key := domain.FeatureKey{Split: split, BlockSize: effective, Tokenizer: tok.Identity()}
	if err := key.Validate(); err != nil {
		return domain.FeatureKey{}, apperr.InvalidArgument("feature_key", err.Error())
	}
	return key, nil
}

// Encode returns one feature per table row, in row order.
func (c *TokenizedFeatureCache) Encode(ctx context.Context, table domain.RecordTable, split string, blockSize int, tok out.Tokenizer, overwrite bool) ([]domain.EncodedFeature, error) {
	res, err := c.EncodeDetailed(ctx, table, split, blockSize, tok, overwrite)
	if err != nil {
		return nil, err
	}
	return res.Features, nil
}

// EncodeDetailed is Encode plus cache and latency details.
func (c *TokenizedFeatureCache) EncodeDetailed(ctx context.Context, table domain.RecordTable, split string, blockSize int, tok out.Tokenizer, overwrite bool) (*Result, error) {
	key, err := Key(split, blockSize, tok)
	if err != nil {
		return nil, err
	}
	log := c.log.With().Str("key", key.String()).Logger()
	texts := table.Texts()
	digest := TextDigest(texts)

	if !overwrite {
		cached, ok, err := c.lookup(ctx, key, digest, table.Len(), log)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Debug().Int("rows", len(cached)).Msg("feature cache hit")
			return &Result{Features: cached, Key: key, CacheHit: true}, nil
		}
	}

	tracker := metrics.NewLatencyTracker(table.Len())
	features := make([]domain.EncodedFeature, table.Len())
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var f domain.EncodedFeature
		err := tracker.Time(func() (err error) {
			f, err = tok.Encode(text, key.BlockSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize row %d: %w", i, err)
		}
		if f.Len() != key.BlockSize {
			return nil, apperr.Internal(fmt.Sprintf("tokenizer returned %d positions for row %d, want %d", f.Len(), i, key.BlockSize))
		}
		features[i] = f
	}

	data, err := EncodeFeatures(features, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize features: %w", err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to persist features: %w", err)
	}

	stats := tracker.Stats()
	log.Info().
		Int("rows", len(features)).
		Bool("overwrite", overwrite).
		Dur("p95", stats.P95).
		Msg("encoded and cached features")

	return &Result{Features: features, Key: key, Latency: stats}, nil
}

// Invalidate removes the cached entry for split at blockSize.
func (c *TokenizedFeatureCache) Invalidate(ctx context.Context, split string, blockSize int, tok out.Tokenizer) error {
	key, err := Key(split, blockSize, tok)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, key)
}

// lookup returns ok=false for a missing, undecodable or misaligned entry. An
// entry encoded from different texts is misaligned even when the row count matches.
func (c *TokenizedFeatureCache) lookup(ctx context.Context, key domain.FeatureKey, digest Digest, rows int, log zerolog.Logger) ([]domain.EncodedFeature, bool, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read feature cache: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	cached, cachedDigest, err := DecodeFeatures(data)
	if err != nil {
		if errors.Is(err, ErrCorruptEntry) {
			log.Warn().Err(err).Msg("discarding unreadable feature cache entry")
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(cached) != rows {
		log.Warn().Int("cached", len(cached)).Int("rows", rows).Msg("feature cache entry does not match table, rebuilding")
		return nil, false, nil
	}
	if cachedDigest != digest {
		log.Warn().Int("rows", rows).Msg("feature cache entry was encoded from different texts, rebuilding")
		return nil, false, nil
	}
	return cached, true, nil
}
