package bootstrap

import (
	"context"
	"strings"
	"time"

	"prep_server/adapter/in/http"
	"prep_server/config"
	"prep_server/infra/middleware"
	"prep_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
)

func NewAPI(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg, log, Needs{Tokenizer: true})
	if err != nil {
		return nil, nil, err
	}

	apiLog := log.With().Str("component", "api").Logger()
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(apiLog),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
	})

	app.Use(middleware.Recover(apiLog))
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(apiLog))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(corsHandler(cfg))

	// Health check (no auth required)
	checks := map[string]http.HealthChecker{"redis": nil, "mongodb": nil}
	if deps.DB != nil {
		checks["postgres"] = http.PostgresCheck(deps.DB)
	}
	if deps.Redis != nil {
		checks["redis"] = http.RedisCheck(deps.Redis)
	}
	if deps.MongoDB != nil {
		checks["mongodb"] = http.MongoCheck(deps.MongoDB)
	}
	http.NewHealthHandler(checks).Register(app)

	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	if cfg.JWTSecret == "" {
		apiLog.Warn().Msg("API_JWT_SECRET not set, dataset routes are unauthenticated")
	}

	datasetHandler := http.NewDatasetHandler(deps.Datasets, deps.Reports)
	if deps.Redis != nil && cfg.PrepareRateLimit > 0 {
		limiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, "prep:ratelimit:", cfg.PrepareRateLimit, time.Minute)
		datasetHandler.WithPrepareGuard(middleware.RateLimit(limiter, apiLog))
	}
	datasetHandler.Register(api)

	apiLog.Info().Msg("API server initialized")
	return app, cleanup, nil
}

// corsMethods covers every verb the dataset routes register.
const corsMethods = "GET,POST,DELETE,OPTIONS"

func corsHandler(cfg *config.Config) fiber.Handler {
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" && !cfg.IsProduction() {
		allowOrigins = "http://localhost:3000,http://localhost:5173"
	}
	return cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: corsMethods,
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	})
}
