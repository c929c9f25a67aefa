package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/rewear-api/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler принимает соединения GET /ws?token=<jwt>
func (m *Manager) Handler(jwtService *utils.JWTService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := jwtService.ExtractUserID(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade уже ответил клиенту
			m.log.WithError(err).Debug("Ошибка при установке WebSocket соединения")
			return
		}

		NewClient(userID, conn, m).Start()
	})
}
