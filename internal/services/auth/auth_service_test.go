package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/logging"
	"github.com/rajivgeraev/rewear-api/internal/memstore"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

func newApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	store := memstore.New()
	log := logging.Component(logging.Discard(), "auth")
	s := NewAuthService(cfg, store, log)

	app := fiber.New()
	s.SetupRoutes(app, middleware.AuthMiddleware(s.GetJWTService(), store, log))
	return app
}

func devConfig() *config.Config {
	return &config.Config{
		AppEnv:    "development",
		JWTSecret: "secret",
		Exchange:  config.ExchangeConfig{StartingPoints: 50},
	}
}

func initData(telegramID int64, firstName string) string {
	return url.Values{
		"user":      {`{"id":` + strconv.FormatInt(telegramID, 10) + `,"first_name":"` + firstName + `","username":"` + strings.ToLower(firstName) + `"}`},
		"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
		"hash":      {"unsigned"},
	}.Encode()
}

func login(t *testing.T, app *fiber.App, data string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"init_data": data})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/telegram", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestTelegramLoginCreatesUserOnce(t *testing.T) {
	app := newApp(t, devConfig())

	resp, out := login(t, app, initData(42, "Anna"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token string
	require.NoError(t, json.Unmarshal(out["token"], &token))
	var user models.User
	require.NoError(t, json.Unmarshal(out["user"], &user))
	assert.Equal(t, 50, user.Points)
	assert.Equal(t, "Anna", user.DisplayName)

	// Повторный вход возвращает того же пользователя
	resp, out = login(t, app, initData(42, "Anna"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again models.User
	require.NoError(t, json.Unmarshal(out["user"], &again))
	assert.Equal(t, user.ID, again.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	profileResp, err := app.Test(req)
	require.NoError(t, err)
	defer profileResp.Body.Close()
	require.Equal(t, http.StatusOK, profileResp.StatusCode)

	var profile models.User
	require.NoError(t, json.NewDecoder(profileResp.Body).Decode(&profile))
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, 50, profile.Points)
	assert.False(t, profile.IsStaff)
}

func TestTelegramLoginRejectsUnsignedData(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	cfg.TelegramBotToken = "bot-token"
	app := newApp(t, cfg)

	resp, _ := login(t, app, initData(42, "Anna"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTelegramLoginBadPayload(t *testing.T) {
	app := newApp(t, devConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/telegram", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = login(t, app, "user=nope")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileRequiresToken(t *testing.T) {
	app := newApp(t, devConfig())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
