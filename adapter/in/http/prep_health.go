package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthChecker pings one dependency.
type HealthChecker func(ctx context.Context) error

// PostgresCheck pings the pgx pool.
func PostgresCheck(pool *pgxpool.Pool) HealthChecker {
	return pool.Ping
}

// RedisCheck pings the redis client.
func RedisCheck(client *redis.Client) HealthChecker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// MongoCheck pings the mongo primary.
func MongoCheck(client *mongo.Client) HealthChecker {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}

type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler creates a handler; a nil checker marks the dependency as not configured.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthChecker{}
	}
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true

	for name, check := range h.checks {
		if check == nil {
			checks[name] = "not configured"
			continue
		}
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
