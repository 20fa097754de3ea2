package bootstrap

import (
	"context"
	"fmt"
	"time"

	"prep_server/adapter/out/blob"
	"prep_server/adapter/out/cachestore"
	"prep_server/adapter/out/mongodb"
	"prep_server/adapter/out/persistence"
	"prep_server/adapter/out/tokenizer"
	"prep_server/config"
	"prep_server/core/port/out"
	"prep_server/core/service/dataset"
	"prep_server/core/service/features"
	"prep_server/core/service/preprocess"
	"prep_server/core/service/source"
	"prep_server/infra/database"
	"prep_server/pkg/resilience"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectTimeout = 15 * time.Second

// Needs selects which connections a run mode opens.
type Needs struct {
	Postgres  bool
	Tokenizer bool
}

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Adapters
	Posts     *persistence.PostAdapter
	Schema    *database.Schema
	Blob      out.BlobStore
	Cache     out.CacheStore
	Reports   out.ReportRepository
	Tokenizer out.Tokenizer

	// Services
	Source   *source.RecordSource
	Features *features.TokenizedFeatureCache
	Datasets *dataset.Service
}

func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger, needs Needs) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Log: log}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	// Postgres (pgxpool for schema + readiness, sqlx for post queries)
	if needs.Postgres {
		pgCfg := database.DefaultPostgresConfig()
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		cleanups = append(cleanups, db.Close)
		deps.Schema = database.NewSchema(db)

		sqlDB, err := database.NewSQLX(cfg.DatabaseURL, pgCfg)
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })

		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("postgres"), log)
		deps.Posts = persistence.NewPostAdapter(sqlDB, breaker)
		log.Info().Msg("postgres connected")
	}

	// Redis (required for the redis cache backend)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.CacheBackend == "redis" {
				return fail(err)
			}
			log.Warn().Err(err).Msg("redis connection failed")
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	} else if cfg.CacheBackend == "redis" {
		return fail(fmt.Errorf("REDIS_URL is required for the redis cache backend"))
	}

	switch cfg.CacheBackend {
	case "redis":
		deps.Cache = cachestore.NewRedisStore(deps.Redis, cfg.CacheKeyPrefix, cfg.CacheTTL)
	default:
		deps.Cache = cachestore.NewFileStore(cfg.CacheDir)
	}

	// MongoDB (preparation reports)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			log.Warn().Err(err).Msg("mongodb connection failed, reports disabled")
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})
			reports := mongodb.NewReportAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := reports.EnsureIndexes(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure report indexes")
			}
			deps.Reports = reports
		}
	}

	// Blob store (split files)
	if cfg.FetchSplits || cfg.PublishSplits {
		blobCfg := blob.Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}
		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("s3"), log)
		deps.Blob = blob.NewS3Store(blob.NewClient(blobCfg), blobCfg, breaker, log)
	}

	var posts out.PostStore
	if deps.Posts != nil {
		posts = deps.Posts
	}
	deps.Source = source.NewRecordSource(source.Config{
		CacheDir: cfg.CacheDir,
		Fetch:    cfg.FetchSplits,
		Publish:  cfg.PublishSplits,
	}, deps.Blob, posts, log)

	deps.Features = features.NewTokenizedFeatureCache(deps.Cache, log)

	if needs.Tokenizer {
		tok, err := tokenizer.Load(cfg.TokenizerPath, tokenizer.Options{
			Identity:      cfg.TokenizerID,
			SpecialTokens: cfg.SpecialTokenCount,
		})
		if err != nil {
			return fail(err)
		}
		deps.Tokenizer = tok

		opts, err := buildOptions(cfg)
		if err != nil {
			return fail(err)
		}
		normalizer := preprocess.NewTextNormalizer(preprocess.NewDomainExtractor(log))
		builder := dataset.NewBuilder(deps.Source, normalizer, deps.Features, tok, deps.Reports, log)
		deps.Datasets = dataset.NewService(builder, deps.Source, opts)
	}

	return deps, cleanup, nil
}

// buildOptions maps config onto the options shared by every split.
func buildOptions(cfg *config.Config) (dataset.BuildOptions, error) {
	opts := dataset.BuildOptions{
		BlockSize: cfg.BlockSize,
		Overwrite: cfg.OverwriteCache,
		Seed:      cfg.Seed(),
	}
	if cfg.UndersampleClass == "" {
		return opts, nil
	}

	var (
		n    *int
		frac *float64
	)
	if cfg.UndersampleN > 0 {
		n = &cfg.UndersampleN
	}
	if cfg.UndersampleFrac > 0 {
		frac = &cfg.UndersampleFrac
	}
	spec, err := preprocess.NewSampleSpec(n, frac)
	if err != nil {
		return opts, err
	}
	opts.Undersample = &dataset.Undersampling{Class: cfg.UndersampleClass, Spec: spec}
	return opts, nil
}
