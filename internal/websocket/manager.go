package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

// Manager представляет центральный менеджер для всех WebSocket соединений
type Manager struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	userClients  map[uuid.UUID]map[uuid.UUID]bool // userID -> map[clientID]bool
	userMutex    sync.RWMutex
	log          *logrus.Entry
}

// EventType определяет тип события WebSocket
type EventType string

const (
	EventExchangeRequested EventType = "exchange_requested"
	EventExchangeApproved  EventType = "exchange_approved"
	EventExchangeRejected  EventType = "exchange_rejected"
)

// Event представляет структуру сообщения для WebSocket
type Event struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	ItemID    string          `json:"item_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ExchangeEvent строит событие по запросу на обмен; запрос целиком уходит в payload
func ExchangeEvent(eventType EventType, req *models.ExchangeRequest) Event {
	payload, _ := json.Marshal(req)
	return Event{
		Type:      eventType,
		RequestID: req.ID.String(),
		ItemID:    req.ItemID.String(),
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// NewManager создает новый экземпляр Manager
func NewManager(log *logrus.Entry) *Manager {
	return &Manager{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]bool),
		log:         log,
	}
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	// Связываем клиент с пользователем
	m.userMutex.Lock()
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]bool)
	}
	m.userClients[client.UserID][client.ID] = true
	m.userMutex.Unlock()

	m.log.WithFields(logrus.Fields{"client_id": client.ID, "user_id": client.UserID}).Debug("WebSocket клиент подключён")
}

// RemoveClient удаляет клиента
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.Lock()
	client, exists := m.clients[clientID]
	delete(m.clients, clientID)
	m.clientsMutex.Unlock()

	if !exists {
		return
	}

	// Удаляем клиент из связи с пользователем
	m.userMutex.Lock()
	if clients, ok := m.userClients[client.UserID]; ok {
		delete(clients, clientID)
		// Если это был последний клиент пользователя, удаляем запись пользователя
		if len(clients) == 0 {
			delete(m.userClients, client.UserID)
		}
	}
	m.userMutex.Unlock()

	m.log.WithFields(logrus.Fields{"client_id": clientID, "user_id": client.UserID}).Debug("WebSocket клиент отключён")
}

// Connections возвращает число открытых соединений пользователя
func (m *Manager) Connections(userID uuid.UUID) int {
	m.userMutex.RLock()
	defer m.userMutex.RUnlock()
	return len(m.userClients[userID])
}

// SendToUser отправляет событие всем соединениям пользователя. Если
// пользователь не в сети, событие теряется: состояние всегда можно получить через API.
func (m *Manager) SendToUser(userID uuid.UUID, event Event) {
	m.userMutex.RLock()
	clientIDs := make([]uuid.UUID, 0, len(m.userClients[userID]))
	for id := range m.userClients[userID] {
		clientIDs = append(clientIDs, id)
	}
	m.userMutex.RUnlock()

	if len(clientIDs) == 0 {
		return
	}

	// Устанавливаем время события, если не установлено
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		m.log.WithError(err).Error("Ошибка сериализации события")
		return
	}

	for _, clientID := range clientIDs {
		m.clientsMutex.RLock()
		client, exists := m.clients[clientID]
		m.clientsMutex.RUnlock()

		if !exists {
			continue
		}

		select {
		case client.events <- eventJSON:
		default:
			// Очередь заполнена, клиент слишком медленный - закрываем соединение
			m.log.WithField("client_id", client.ID).Warn("Очередь событий переполнена, соединение закрыто")
			client.close()
		}
	}
}

// Shutdown корректно завершает работу менеджера WebSocket
func (m *Manager) Shutdown() {
	m.clientsMutex.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clientsMutex.Unlock()

	// close сам снимает клиента с учёта, поэтому вызывается без блокировки
	for _, client := range clients {
		client.close()
	}
}
