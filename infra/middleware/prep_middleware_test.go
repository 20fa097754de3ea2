package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"prep_server/pkg/apperr"
	"prep_server/pkg/response"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(secret string) *fiber.App {
	log := zerolog.Nop()
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(log),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(Recover(log))
	app.Use(RequestID())
	app.Use(RequestLogger(log))
	app.Use(JWTAuth(secret))

	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/range", func(c *fiber.Ctx) error {
		return fmt.Errorf("failed to get item: %w", apperr.OutOfRange(7, 3))
	})
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })
	return app
}

func decode(t *testing.T, body io.Reader) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestErrorHandlerMapsAppError(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest("GET", "/range", nil)
	req.Header.Set("X-Request-ID", "req-1")
	res, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "req-1", res.Header.Get("X-Request-ID"))

	body := decode(t, res.Body)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, apperr.CodeOutOfRange, body.Error.Code)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestErrorHandlerMapsFiberError(t *testing.T) {
	app := newTestApp("")

	res, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
	body := decode(t, res.Body)
	assert.Equal(t, apperr.CodeNotFound, body.Error.Code)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestRecoverReturnsInternalError(t *testing.T) {
	app := newTestApp("")

	res, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, res.StatusCode)
	body := decode(t, res.Body)
	assert.Equal(t, apperr.CodeInternalError, body.Error.Code)
}

func signed(t *testing.T, method jwt.SigningMethod, key any) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "trainer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	const secret = "s3cret"
	app := newTestApp(secret)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"not bearer", "Basic abc", fiber.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other")), fiber.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + signed(t, jwt.SigningMethodHS512, []byte(secret)), fiber.StatusUnauthorized},
		{"valid", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret)), fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ok", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			res, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.StatusCode)
		})
	}
}

func TestJWTAuthDisabledWithoutSecret(t *testing.T) {
	app := newTestApp("")

	res, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

type fakeLimiter struct {
	allowed map[string]int
	budget  int
	err     error
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if f.err != nil {
		return true, 0, f.err
	}
	if f.allowed[key] >= f.budget {
		return false, 1500 * time.Millisecond, nil
	}
	f.allowed[key]++
	return true, 0, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{allowed: map[string]int{}, budget: 1}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zerolog.Nop())})
	app.Post("/datasets/:split/prepare", RateLimit(limiter, zerolog.Nop()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	res, err := app.Test(httptest.NewRequest("POST", "/datasets/train/prepare", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("POST", "/datasets/val/prepare", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, res.StatusCode, "the budget is per route, not per split")
	assert.Equal(t, "2", res.Header.Get("Retry-After"))
	body := decode(t, res.Body)
	assert.Equal(t, apperr.CodeRateLimited, body.Error.Code)

	limiter.err = fmt.Errorf("redis down")
	res, err = app.Test(httptest.NewRequest("POST", "/datasets/train/prepare", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	res, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
}
