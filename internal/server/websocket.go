package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	WS_TYPE_MOUNT        = "mount"
	WS_TYPE_UNMOUNT      = "unmount"
	WS_TYPE_PATCH        = "patch"
	WS_TYPE_NOTIFICATION = "notification"
	WS_TYPE_COMMAND      = "command"
	WS_TYPE_RESULT       = "result"
	WS_TYPE_PING         = "ping"
	WS_TYPE_PONG         = "pong"
	WS_TYPE_ERROR        = "error"

	wsSendBufferSize  = 256
	wsMaxMessageSize  = 4096
	wsDefaultInterval = 30
)

// WSMessage is a message pushed to a browser.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WSRequest is a message sent by a browser.
type WSRequest struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	DeviceId int    `json:"device_id,omitempty"`
	Action   string `json:"action,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// Dispatcher runs card commands on behalf of WebSocket clients.
type Dispatcher interface {
	Command(deviceId int, action, value string) (*domain.CardSnapshot, error)
	Cards() ([]domain.CardSnapshot, error)
}

// Hub fans board events out to every connected browser.
type Hub struct {
	cfg        config.WebSocketConfig
	dispatcher Dispatcher
	clients    map[*WSClient]struct{}
	mu         sync.RWMutex
	sub        *eventstream.Subscription
	logger     *zap.Logger
}

type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

func NewHub(cfg config.WebSocketConfig, dispatcher Dispatcher, logger *zap.Logger) *Hub {
	if cfg.PingIntervalSeconds <= 0 {
		cfg.PingIntervalSeconds = wsDefaultInterval
	}
	if cfg.PongTimeoutSeconds <= 0 {
		cfg.PongTimeoutSeconds = 2 * wsDefaultInterval
	}
	return &Hub{
		cfg:        cfg,
		dispatcher: dispatcher,
		clients:    make(map[*WSClient]struct{}),
		logger:     logger,
	}
}

// Attach subscribes the hub to board and notification events.
func (h *Hub) Attach(es *eventstream.EventStream) {
	h.sub = es.Subscribe(func(evt any) {
		switch e := evt.(type) {
		case domain.CardMountedEvent:
			h.Broadcast(WS_TYPE_MOUNT, e.Card)
		case domain.CardUnmountedEvent:
			h.Broadcast(WS_TYPE_UNMOUNT, map[string]int{"device_id": e.DeviceId})
		case domain.CardPatchEvent:
			h.Broadcast(WS_TYPE_PATCH, e.Patch)
		case domain.NotificationEvent:
			h.Broadcast(WS_TYPE_NOTIFICATION, e.Notification)
		}
	})
}

// Close detaches the hub and disconnects every client.
func (h *Hub) Close(es *eventstream.EventStream) {
	if h.sub != nil {
		es.Unsubscribe(h.sub)
		h.sub = nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.Int("clients", h.ClientCount()))
}

// Unregister removes a client. Only the caller that removes it closes its
// send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", zap.Int("clients", h.ClientCount()))
}

func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := encode(WSMessage{Type: msgType, Timestamp: timestamp(), Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the connection, sends the mounted cards and starts the
// client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	client := &WSClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	h.Register(client)

	if cards, err := h.dispatcher.Cards(); err != nil {
		h.logger.Warn("could not load cards for new websocket client", zap.Error(err))
	} else {
		for _, card := range cards {
			client.sendMessage(WSMessage{Type: WS_TYPE_MOUNT, Timestamp: timestamp(), Payload: card})
		}
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pingInterval := time.Duration(c.hub.cfg.PingIntervalSeconds) * time.Second
	pongWait := time.Duration(c.hub.cfg.PongTimeoutSeconds) * time.Second

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump() {
	pingInterval := time.Duration(c.hub.cfg.PingIntervalSeconds) * time.Second
	pongWait := time.Duration(c.hub.cfg.PongTimeoutSeconds) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendMessage(WSMessage{Type: WS_TYPE_ERROR, Error: "invalid JSON message"})
		return
	}

	switch req.Type {
	case WS_TYPE_PING:
		c.sendMessage(WSMessage{Type: WS_TYPE_PONG, ID: req.ID, Timestamp: timestamp()})
	case WS_TYPE_COMMAND:
		if req.DeviceId == 0 || req.Action == "" {
			c.sendMessage(WSMessage{Type: WS_TYPE_ERROR, ID: req.ID, Error: "device_id and action are required"})
			return
		}
		// commands may wait on the backend, keep reading meanwhile
		go func() {
			card, err := c.hub.dispatcher.Command(req.DeviceId, req.Action, valueString(req.Value))
			msg := WSMessage{Type: WS_TYPE_RESULT, ID: req.ID, Timestamp: timestamp()}
			if card != nil {
				msg.Payload = card
			}
			if err != nil {
				msg.Error = err.Error()
			}
			c.sendMessage(msg)
		}()
	default:
		c.sendMessage(WSMessage{Type: WS_TYPE_ERROR, ID: req.ID, Error: "unknown message type: " + req.Type})
	}
}

// trySend drops the message when the client is gone or too slow.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) sendMessage(msg WSMessage) {
	data, err := encode(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func encode(msg WSMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
