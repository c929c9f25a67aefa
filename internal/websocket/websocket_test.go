package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/logging"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

func TestHandlerRejectsBadToken(t *testing.T) {
	m := NewManager(logging.Component(logging.Discard(), "ws"))
	srv := httptest.NewServer(m.Handler(utils.NewJWTService("secret")))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?token=bad")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendToUser(t *testing.T) {
	m := NewManager(logging.Component(logging.Discard(), "ws"))
	jwtService := utils.NewJWTService("secret")
	srv := httptest.NewServer(m.Handler(jwtService))
	defer srv.Close()
	defer m.Shutdown()

	userID := uuid.New()
	token, err := jwtService.GenerateToken(userID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return m.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	req := &models.ExchangeRequest{ID: uuid.New(), ItemID: uuid.New(), Status: models.RequestApproved}
	m.SendToUser(uuid.New(), ExchangeEvent(EventExchangeApproved, req))
	m.SendToUser(userID, ExchangeEvent(EventExchangeApproved, req))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventExchangeApproved, event.Type)
	assert.Equal(t, req.ID.String(), event.RequestID)

	var payload models.ExchangeRequest
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, models.RequestApproved, payload.Status)

	conn.Close()
	require.Eventually(t, func() bool { return m.Connections(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func dial(t *testing.T, m *Manager, jwtService *utils.JWTService, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(m.Handler(jwtService))
	t.Cleanup(srv.Close)

	token, err := jwtService.GenerateToken(userID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return m.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestInboundDataClosesConnection(t *testing.T) {
	m := NewManager(logging.Component(logging.Discard(), "ws"))
	userID := uuid.New()
	conn := dial(t, m, utils.NewJWTService("secret"), userID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), err.Error())

	require.Eventually(t, func() bool { return m.Connections(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesClients(t *testing.T) {
	m := NewManager(logging.Component(logging.Discard(), "ws"))
	userID := uuid.New()
	conn := dial(t, m, utils.NewJWTService("secret"), userID)

	m.Shutdown()
	assert.Equal(t, 0, m.Connections(userID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Отправка после остановки ничего не делает
	m.SendToUser(userID, ExchangeEvent(EventExchangeApproved, &models.ExchangeRequest{ID: uuid.New()}))
}
