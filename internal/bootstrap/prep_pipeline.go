package bootstrap

import (
	"context"
	"fmt"
	"os"
	"slices"

	"prep_server/adapter/out/trainer"
	"prep_server/config"
	"prep_server/core/domain"
	"prep_server/core/port/out"
	trainerservice "prep_server/core/service/trainer"
	"prep_server/infra/database"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Pipeline runs the batch modes: etl, snapshot and prepare.
type Pipeline struct {
	cfg  *config.Config
	deps *Dependencies
	log  zerolog.Logger
}

// NewPipeline opens the connections mode needs.
func NewPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger, mode string) (*Pipeline, func(), error) {
	needs := Needs{}
	switch mode {
	case "etl", "snapshot":
		needs.Postgres = true
	case "prepare":
		needs.Tokenizer = true
	default:
		return nil, nil, fmt.Errorf("unknown pipeline mode: %s", mode)
	}

	deps, cleanup, err := NewDependencies(ctx, cfg, log, needs)
	if err != nil {
		return nil, nil, err
	}
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "pipeline").Str("mode", mode).Logger(),
	}, cleanup, nil
}

// Run dispatches to the mode's step.
func (p *Pipeline) Run(ctx context.Context, mode string) error {
	switch mode {
	case "etl":
		return p.ETL(ctx)
	case "snapshot":
		return p.Snapshot(ctx)
	case "prepare":
		return p.Prepare(ctx)
	}
	return fmt.Errorf("unknown pipeline mode: %s", mode)
}

// ETL creates the posts table and optionally bulk loads a JSON array of posts.
func (p *Pipeline) ETL(ctx context.Context) error {
	return runETL(ctx, p.deps.Schema, p.deps.Posts, p.cfg.ETLImportPath, p.log)
}

func runETL(ctx context.Context, schema out.SchemaManager, posts out.PostStore, importPath string, log zerolog.Logger) error {
	tables, err := schema.ListTables(ctx)
	if err != nil {
		return err
	}
	if err := schema.EnsurePostsTable(ctx); err != nil {
		return err
	}
	log.Info().Bool("existed", slices.Contains(tables, "posts")).Msg("posts table ready")

	if importPath == "" {
		return nil
	}

	data, err := os.ReadFile(importPath)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode import file %s: %w", importPath, err)
	}

	inserted, err := posts.InsertPosts(ctx, records)
	if err != nil {
		return err
	}
	total, err := posts.CountPosts(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("inserted", inserted).Int64("total", total).Msg("posts imported")
	return nil
}

// Snapshot reads every post and writes the configured split files.
func (p *Pipeline) Snapshot(ctx context.Context) error {
	table, err := p.deps.Source.Snapshot(ctx)
	if err != nil {
		return err
	}
	counts, err := p.deps.Source.WriteSplits(ctx, table, p.cfg.Splits, p.cfg.SplitRatios, p.cfg.Seed())
	if err != nil {
		return err
	}

	event := p.log.Info().Int("rows", table.Len())
	for split, n := range counts {
		event = event.Int(split, n)
	}
	event.Msg("snapshot written")

	if p.deps.DB != nil {
		stats := database.GetPoolStats(p.deps.DB)
		p.log.Debug().Int32("total_conns", stats.TotalConns).Int32("idle_conns", stats.IdleConns).Msg("pool stats")
	}
	return nil
}

// Prepare builds every configured split and exports its batches.
func (p *Pipeline) Prepare(ctx context.Context) error {
	feeder := trainerservice.NewFeeder(trainer.NewBatchExporter(p.cfg.ExportDir, p.log), p.cfg.BatchSize, p.log)

	for _, split := range p.cfg.Splits {
		if err := ctx.Err(); err != nil {
			return err
		}

		report, err := p.deps.Datasets.Prepare(ctx, split)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", split, err)
		}
		p.log.Info().
			Str("split", split).
			Str("report_id", report.ID).
			Bool("cache_hit", report.CacheHit).
			Int("rows", report.RowsEncoded).
			Msg("split prepared")

		ds, err := p.deps.Datasets.Dataset(ctx, split)
		if err != nil {
			return err
		}
		if err := feeder.Feed(ctx, ds); err != nil {
			return err
		}
	}
	return nil
}
