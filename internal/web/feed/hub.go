package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

var errClientClosed = errors.New("client closed")

// Message is the envelope of every websocket frame, in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encode(messageType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: messageType, Data: data})
}

// MessageHandler handles a frame received from a client.
type MessageHandler func(ctx context.Context, client *Client, message *Message) error

// Hub keeps the connected clients and fans broadcasts out to them.
type Hub struct {
	logger  *zap.Logger
	handler MessageHandler

	clients   map[*Client]struct{}
	clientsMu sync.RWMutex

	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

func newHub(logger *zap.Logger, handler MessageHandler) *Hub {
	return &Hub{
		logger:     logger,
		handler:    handler,
		clients:    make(map[*Client]struct{}),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.clientsMu.Unlock()
			return

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.clientsMu.Unlock()
			h.logger.Debug("Client unregistered",
				zap.String("client", client.ID),
				zap.Int("total", h.ClientCount()))

		case data := <-h.broadcast:
			h.clientsMu.RLock()
			for client := range h.clients {
				if err := client.sendRaw(data); err != nil {
					h.logger.Warn("Skipping client", zap.String("client", client.ID), zap.Error(err))
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// add registers client. Broadcasts queued afterwards reach it.
func (h *Hub) add(client *Client) {
	h.clientsMu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Debug("Client registered", zap.String("client", client.ID), zap.Int("total", total))
}

// Broadcast queues a message for every connected client. It drops the
// message when the queue is full.
func (h *Hub) Broadcast(messageType string, payload any) error {
	data, err := encode(messageType, payload)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		return errors.New("broadcast channel full")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Client is one websocket connection.
type Client struct {
	// ID is a random uuid.
	ID string
	// Subject is the authenticated token subject, empty without auth.
	Subject string

	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(id, subject string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:      id,
		Subject: subject,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, 64),
	}
}

// Send queues a message for this client.
func (c *Client) Send(messageType string, payload any) error {
	data, err := encode(messageType, payload)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

// SendError reports a failed request to the client.
func (c *Client) SendError(err error) {
	_ = c.Send("error", map[string]string{"message": err.Error()})
}

func (c *Client) sendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send channel full")
	}
}

// close is called by the hub only.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(ctx context.Context) {
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket error", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.SendError(err)
			continue
		}
		if err := c.hub.handler(ctx, c, &message); err != nil {
			c.hub.logger.Debug("Request failed",
				zap.String("client", c.ID),
				zap.String("type", message.Type),
				zap.Error(err))
			c.SendError(err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
