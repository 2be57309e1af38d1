package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fingerprint-reader/internal/application"
)

const (
	// writeWait сколько ждать завершения записи
	writeWait = 10 * time.Second

	// pongWait сколько ждать pong от клиента
	pongWait = 60 * time.Second

	// pingPeriod должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize клиенты ничего не присылают, кроме служебных кадров
	maxMessageSize = 4 * 1024
)

// Hub хранит подключенных клиентов страницы и рассылает им обновления
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan struct{}
	pending    []byte
	pendingMu  sync.Mutex
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     application.Logger
	mu         sync.RWMutex
}

// Client одно WebSocket-подключение страницы
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub создает хаб
func NewHub(logger application.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает регистрацию и рассылку до отмены контекста
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Клиент страницы подключен", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Клиент страницы отключен", "clients", count)

		case <-h.broadcast:
			message := h.takePending()
			if message == nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Медленный клиент страницы отключен")
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastJSON кодирует и рассылает сообщение всем клиентам.
// Каждое сообщение содержит полное состояние, поэтому неотправленное
// сообщение заменяется новым: клиенты всегда получают последнее.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.pendingMu.Lock()
	h.pending = data
	h.pendingMu.Unlock()

	select {
	case h.broadcast <- struct{}{}:
	default:
	}
	return nil
}

// takePending забирает последнее неотправленное сообщение
func (h *Hub) takePending() []byte {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	data := h.pending
	h.pending = nil
	return data
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// serve регистрирует соединение и блокируется до его закрытия
func (h *Hub) serve(conn *websocket.Conn, initial []byte) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}
	client.send <- initial

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// readPump читает, чтобы обнаружить отключение и получать pong
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump единственный писатель в соединение
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
