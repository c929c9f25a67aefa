package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/logging"
	"github.com/rajivgeraev/rewear-api/internal/memstore"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
	"github.com/rajivgeraev/rewear-api/internal/websocket"
)

type sent struct {
	userID uuid.UUID
	event  websocket.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sent
}

func (n *recordingNotifier) SendToUser(userID uuid.UUID, event websocket.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sent{userID: userID, event: event})
}

type env struct {
	t        *testing.T
	app      *fiber.App
	store    *memstore.Store
	jwt      *utils.JWTService
	notifier *recordingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	log := logging.Component(logging.Discard(), "exchange")
	jwtService := utils.NewJWTService("secret")
	notifier := &recordingNotifier{}

	engine := exchange.NewEngine(store, log, exchange.Config{})
	s := NewExchangeService(engine, store, notifier, log)

	app := fiber.New()
	limiter := middleware.NewRateLimiter(1000, 1000, log)
	s.SetupRoutes(app, middleware.AuthMiddleware(jwtService, store, log), limiter.Handler())

	return &env{t: t, app: app, store: store, jwt: jwtService, notifier: notifier}
}

func (e *env) user(name string, points int) (*models.User, string) {
	e.t.Helper()
	u := &models.User{DisplayName: name, Points: points}
	require.NoError(e.t, e.store.CreateUser(context.Background(), u))
	token, err := e.jwt.GenerateToken(u.ID)
	require.NoError(e.t, err)
	return u, token
}

func (e *env) item(owner *models.User, pointValue *int) *models.Item {
	e.t.Helper()
	it := &models.Item{
		OwnerID:          owner.ID,
		Title:            "item",
		Available:        true,
		PointValue:       pointValue,
		ModerationStatus: models.ModerationApproved,
	}
	require.NoError(e.t, e.store.CreateItem(context.Background(), it))
	return it
}

func (e *env) do(method, path, token string, body any) (int, []byte) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.app.Test(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

func (e *env) points(u *models.User) int {
	e.t.Helper()
	got, err := e.store.GetUser(context.Background(), u.ID)
	require.NoError(e.t, err)
	return got.Points
}

func pts(v int) *int { return &v }

func TestRedeemFlow(t *testing.T) {
	e := newEnv(t)
	owner, ownerToken := e.user("owner", 0)
	buyer, buyerToken := e.user("buyer", 100)
	x := e.item(owner, pts(30))

	status, body := e.do(http.MethodPost, "/api/swaps", buyerToken, map[string]any{"item_id": x.ID})
	require.Equal(t, http.StatusCreated, status, string(body))

	var created models.ExchangeRequest
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, models.RequestPending, created.Status)
	require.NotNil(t, created.Item)
	assert.Equal(t, x.ID, created.Item.ID)
	require.NotNil(t, created.Requester)
	assert.Equal(t, "buyer", created.Requester.DisplayName)
	assert.Equal(t, 70, e.points(buyer))

	require.Len(t, e.notifier.events, 1)
	assert.Equal(t, owner.ID, e.notifier.events[0].userID)
	assert.Equal(t, websocket.EventExchangeRequested, e.notifier.events[0].event.Type)

	status, body = e.do(http.MethodGet, "/api/my-item-swaps", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Swaps []models.ExchangeRequest `json:"swaps"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Swaps, 1)
	assert.Equal(t, created.ID, list.Swaps[0].ID)

	status, _ = e.do(http.MethodPatch, "/api/swaps/"+created.ID.String()+"/approve", buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = e.do(http.MethodPatch, "/api/swaps/"+created.ID.String()+"/approve", ownerToken, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 30, e.points(owner))

	require.Len(t, e.notifier.events, 2)
	assert.Equal(t, buyer.ID, e.notifier.events[1].userID)
	assert.Equal(t, websocket.EventExchangeApproved, e.notifier.events[1].event.Type)

	status, body = e.do(http.MethodPatch, "/api/swaps/"+created.ID.String()+"/disapprove", ownerToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "invalid_state", errBody["code"])
}

func TestTradeFlowRejected(t *testing.T) {
	e := newEnv(t)
	owner, ownerToken := e.user("owner", 0)
	trader, traderToken := e.user("trader", 0)
	x := e.item(owner, nil)
	y := e.item(trader, nil)

	status, body := e.do(http.MethodPost, "/api/swaps", traderToken, map[string]any{"item_id": x.ID, "offered_item_id": y.ID})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created models.ExchangeRequest
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotNil(t, created.OfferedItem)
	assert.Equal(t, y.ID, created.OfferedItem.ID)

	status, _ = e.do(http.MethodPost, "/api/swaps", traderToken, map[string]any{"item_id": x.ID, "offered_item_id": y.ID})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = e.do(http.MethodPatch, "/api/swaps/"+created.ID.String()+"/disapprove", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)

	got, err := e.store.GetItem(context.Background(), y.ID)
	require.NoError(t, err)
	assert.True(t, got.Available)

	status, body = e.do(http.MethodGet, "/api/swaps", traderToken, nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Swaps []models.ExchangeRequest `json:"swaps"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Swaps, 1)
	assert.Equal(t, models.RequestRejected, list.Swaps[0].Status)

	last := e.notifier.events[len(e.notifier.events)-1]
	assert.Equal(t, trader.ID, last.userID)
	assert.Equal(t, websocket.EventExchangeRejected, last.event.Type)
}

func TestCreateSwapErrors(t *testing.T) {
	e := newEnv(t)
	owner, ownerToken := e.user("owner", 0)
	_, poorToken := e.user("poor", 5)
	x := e.item(owner, pts(30))
	tradeOnly := e.item(owner, nil)

	cases := []struct {
		name  string
		token string
		body  any
		want  int
		code  string
	}{
		{"bad id", poorToken, map[string]any{"item_id": "nope"}, http.StatusBadRequest, "bad_request"},
		{"missing item", poorToken, map[string]any{"item_id": uuid.New()}, http.StatusNotFound, "not_found"},
		{"own item", ownerToken, map[string]any{"item_id": x.ID}, http.StatusBadRequest, "self_request_forbidden"},
		{"not redeemable", poorToken, map[string]any{"item_id": tradeOnly.ID}, http.StatusBadRequest, "not_redeemable"},
		{"insufficient", poorToken, map[string]any{"item_id": x.ID}, http.StatusBadRequest, "insufficient_points"},
		{"foreign offer", poorToken, map[string]any{"item_id": x.ID, "offered_item_id": tradeOnly.ID}, http.StatusBadRequest, "invalid_offer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := e.do(http.MethodPost, "/api/swaps", tc.token, tc.body)
			assert.Equal(t, tc.want, status, string(body))
			var errBody map[string]string
			require.NoError(t, json.Unmarshal(body, &errBody))
			assert.Equal(t, tc.code, errBody["code"])
		})
	}
	assert.Empty(t, e.notifier.events)
}

func TestDecideUnknownSwap(t *testing.T) {
	e := newEnv(t)
	_, token := e.user("owner", 0)

	status, _ := e.do(http.MethodPatch, "/api/swaps/"+uuid.NewString()+"/approve", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(http.MethodPatch, "/api/swaps/not-a-uuid/approve", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEmptyListsAreArrays(t *testing.T) {
	e := newEnv(t)
	_, token := e.user("lonely", 0)

	status, body := e.do(http.MethodGet, "/api/swaps", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"swaps":[]}`, string(body))
}
