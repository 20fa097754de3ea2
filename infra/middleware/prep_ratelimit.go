package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"prep_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Limiter decides whether a keyed call may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimit rejects callers over the limiter's budget, keyed by client IP and route.
func RateLimit(limiter Limiter, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP() + ":" + c.Route().Path

		ok, wait, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		}
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return apperr.RateLimited(wait)
		}
		return c.Next()
	}
}
