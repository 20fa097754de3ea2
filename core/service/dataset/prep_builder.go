package dataset

import (
	"context"
	"fmt"
	"time"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/core/service/features"
	"prep_server/core/service/preprocess"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Loader returns the raw records of a split.
type Loader interface {
	Load(ctx context.Context, split string) (domain.RecordTable, error)
}

// Undersampling drops rows of one class before encoding.
type Undersampling struct {
	Class string
	Spec  preprocess.SampleSpec
}

// BuildOptions configures one Build call.
type BuildOptions struct {
	Split       string
	BlockSize   int
	Overwrite   bool
	Undersample *Undersampling // nil keeps every row
	Seed        *int64
}

// Builder runs load, normalize, bucket, balance and encode, in that order.
type Builder struct {
	loader     Loader
	normalizer *preprocess.TextNormalizer
	cache      *features.TokenizedFeatureCache
	tokenizer  out.Tokenizer
	reports    out.ReportRepository
	log        zerolog.Logger
}

// NewBuilder creates a builder. reports may be nil.
func NewBuilder(
	loader Loader,
	normalizer *preprocess.TextNormalizer,
	cache *features.TokenizedFeatureCache,
	tokenizer out.Tokenizer,
	reports out.ReportRepository,
	log zerolog.Logger,
) *Builder {
	return &Builder{
		loader:     loader,
		normalizer: normalizer,
		cache:      cache,
		tokenizer:  tokenizer,
		reports:    reports,
		log:        log.With().Str("component", "dataset_builder").Logger(),
	}
}

// Invalidate removes the cached features Build would read for opts.
func (b *Builder) Invalidate(ctx context.Context, opts BuildOptions) error {
	return b.cache.Invalidate(ctx, opts.Split, opts.BlockSize, b.tokenizer)
}

// Build materializes the dataset for opts.Split and reports what it did.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Dataset, *domain.PreparationReport, error) {
	log := b.log.With().Str("split", opts.Split).Logger()

	raw, err := b.loader.Load(ctx, opts.Split)
	if err != nil {
		return nil, nil, err
	}

	table := b.normalizer.Normalize(raw)
	table = preprocess.BucketTable(table)
	before := preprocess.Distribution(table)

	report := &domain.PreparationReport{
		ID:         uuid.NewString(),
		Split:      opts.Split,
		RowsLoaded: raw.Len(),
		Before:     before,
		Seed:       opts.Seed,
		CreatedAt:  time.Now().UTC(),
	}

	if opts.Undersample != nil {
		table, err = preprocess.Undersample(table, opts.Undersample.Class, opts.Undersample.Spec, opts.Seed)
		if err != nil {
			return nil, nil, err
		}
		report.Undersample = fmt.Sprintf("%s:%s", opts.Undersample.Class, opts.Undersample.Spec)
	}
	report.After = preprocess.Distribution(table)

	res, err := b.cache.EncodeDetailed(ctx, table, opts.Split, opts.BlockSize, b.tokenizer, opts.Overwrite)
	if err != nil {
		return nil, nil, err
	}
	report.FeatureKey = res.Key
	report.CacheHit = res.CacheHit
	report.RowsEncoded = len(res.Features)
	if !res.CacheHit {
		report.EncodeLatencyMap = res.Latency.ToMap()
	}

	ds, err := New(opts.Split, res.Features, table.Labels())
	if err != nil {
		return nil, nil, err
	}

	if b.reports != nil {
		if err := b.reports.Save(ctx, report); err != nil {
			log.Warn().Err(err).Msg("failed to save preparation report")
		}
	}

	log.Info().
		Int("rows_loaded", report.RowsLoaded).
		Int("rows_encoded", report.RowsEncoded).
		Bool("cache_hit", report.CacheHit).
		Msg("dataset built")

	return ds, report, nil
}
