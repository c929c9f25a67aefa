package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/logging"
	"github.com/rajivgeraev/rewear-api/internal/memstore"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

func newAuthApp(t *testing.T) (*fiber.App, *utils.JWTService, *models.User) {
	t.Helper()
	store := memstore.New()
	user := &models.User{DisplayName: "staff", Points: 50, IsStaff: true}
	require.NoError(t, store.CreateUser(context.Background(), user))

	jwtService := utils.NewJWTService("secret")
	app := fiber.New()
	app.Use(AuthMiddleware(jwtService, store, logging.Component(logging.Discard(), "auth")))
	app.Get("/whoami", func(c fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"id": actor.UserID, "is_staff": actor.IsStaff})
	})
	return app, jwtService, user
}

func TestAuthMiddleware(t *testing.T) {
	app, jwtService, user := newAuthApp(t)

	valid, err := jwtService.GenerateToken(user.ID)
	require.NoError(t, err)
	unknown, err := jwtService.GenerateToken(uuid.New())
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"unknown user", "Bearer " + unknown, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, logging.Component(logging.Discard(), "ratelimit"))

	first := models.Actor{UserID: uuid.New()}
	second := models.Actor{UserID: uuid.New()}

	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		if c.Get("X-User") == "second" {
			SetActor(c, second)
		} else {
			SetActor(c, first)
		}
		return c.Next()
	})
	app.Use(rl.Handler())
	app.Post("/swaps", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/swaps", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusCreated, do("first"))
	assert.Equal(t, http.StatusCreated, do("first"))
	assert.Equal(t, http.StatusTooManyRequests, do("first"))
	assert.Equal(t, http.StatusCreated, do("second"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Component(logging.Discard(), "ratelimit"))
	for i := 0; i <= maxLimiters; i++ {
		rl.getLimiter(uuid.NewString())
	}
	rl.Cleanup()
	assert.Empty(t, rl.limiters)
}
