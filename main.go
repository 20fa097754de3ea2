package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prep_server/config"
	"prep_server/internal/bootstrap"
	"prep_server/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "prepare", "Run mode: etl, snapshot, prepare, api")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Service: "prep",
		Console: cfg.IsDevelopment(),
	})
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "api":
		runAPI(ctx, cfg, log)
	case "etl", "snapshot", "prepare":
		runPipeline(ctx, cfg, log, *mode)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func runAPI(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	app, cleanup, err := bootstrap.NewAPI(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize API")
	}
	defer cleanup()

	go func() {
		<-ctx.Done()
		log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down API server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("error shutting down")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("starting API server")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func runPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger, mode string) {
	pipeline, cleanup, err := bootstrap.NewPipeline(ctx, cfg, log, mode)
	if err != nil {
		log.Fatal().Err(err).Str("mode", mode).Msg("failed to initialize pipeline")
	}

	start := time.Now()
	err = pipeline.Run(ctx, mode)
	cleanup()
	if err != nil {
		log.Error().Err(err).Str("mode", mode).Msg("pipeline failed")
		os.Exit(1)
	}
	log.Info().Str("mode", mode).Dur("elapsed", time.Since(start)).Msg("pipeline finished")
}
