package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Клиент должен ответить на ping за это время
	pongWait = 60 * time.Second

	keepAlivePeriod = (pongWait * 9) / 10

	writeWait = 10 * time.Second

	// Соединение только для событий: от клиента ждём лишь управляющие кадры
	maxInboundSize = 512

	eventQueueSize = 256
)

// Client - подписка пользователя на события обменов. Сервер только пишет в
// соединение; любое сообщение с данными от клиента закрывает его.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn    *websocket.Conn
	events  chan []byte
	manager *Manager

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient создает подписку для соединения пользователя
func NewClient(userID uuid.UUID, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:      uuid.New(),
		UserID:  userID,
		conn:    conn,
		events:  make(chan []byte, eventQueueSize),
		manager: manager,
		done:    make(chan struct{}),
	}
}

// Start регистрирует подписку и запускает доставку событий
func (c *Client) Start() {
	c.manager.AddClient(c)

	go c.watch()
	go c.deliver()
}

// close снимает подписку и закрывает соединение; повторные вызовы ничего не делают
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.manager.RemoveClient(c.ID)
		close(c.done)
		c.conn.Close()
	})
}

// watch следит за состоянием соединения: обрабатывает pong и close от
// клиента и закрывает подписку, если клиент прислал данные
func (c *Client) watch() {
	defer c.close()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// ReadMessage возвращается только на кадрах с данными, управляющие
	// кадры обрабатываются внутри
	if _, _, err := c.conn.ReadMessage(); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
			c.manager.log.WithError(err).WithField("client_id", c.ID).Debug("Соединение закрыто клиентом")
		}
		return
	}

	c.manager.log.WithField("client_id", c.ID).Debug("Клиент прислал данные в канал событий, соединение закрыто")
	msg := websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "events only")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// deliver пишет события в соединение и держит его живым через ping
func (c *Client) deliver() {
	keepAlive := time.NewTicker(keepAlivePeriod)
	defer keepAlive.Stop()

	for {
		select {
		case event := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, event); err != nil {
				c.manager.log.WithError(err).WithField("client_id", c.ID).Debug("Событие не доставлено")
				c.close()
				return
			}
		case <-keepAlive.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
