package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fbot-core/internal/auth"
	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
)

// Frame types on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeStatus      = "status"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize is the per-client outbound queue length. A client that
// falls this far behind misses events.
const wsSendBufferSize = 256

// WSMessage is one frame on the event stream.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame with its payload left undecoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WSClient is one connected operator.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	operator auth.Operator

	mu       sync.RWMutex
	channels map[string]struct{}
}

func newWSClient(h *Hub, conn *websocket.Conn, op auth.Operator) *WSClient {
	return &WSClient{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		operator: op,
		channels: make(map[string]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cors already filtered the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket authenticates with a single-use ticket from
// POST /auth/ws-ticket and upgrades to the event stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeError(w, http.StatusUnauthorized, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "operator", entry.operator.Name, "error", err)
		return
	}

	c := newWSClient(s.hub, conn, entry.operator)
	s.hub.Register(c)
	s.logger.Info("event stream opened", "operator", c.operator.Name, "role", c.operator.Role)

	go c.transmit(s.wsCfg)
	go c.receive(s.wsCfg)
}

// keepalive returns how often to ping and how long a silent peer survives.
func keepalive(cfg config.WebSocketConfig) (ping, deadline time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	return ping, ping + time.Duration(cfg.PongTimeout)*time.Second
}

// receive reads frames until the connection fails, then unregisters.
func (c *WSClient) receive(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	_, deadline := keepalive(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // a failed deadline surfaces on the next read
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("event stream read failed", "operator", c.operator.Name, "error", err)
			}
			return
		}
		// Application frames count as liveness too.
		//nolint:errcheck // a failed deadline surfaces on the next read
		extend()
		c.dispatch(data)
	}
}

// transmit drains the outbound queue and pings on the keepalive interval.
func (c *WSClient) transmit(cfg config.WebSocketConfig) {
	ping, _ := keepalive(cfg)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces on the write
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, open := <-c.send:
			if !open {
				//nolint:errcheck // peer may already be gone
				write(websocket.CloseMessage, nil)
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// dispatch handles one inbound frame.
func (c *WSClient) dispatch(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe:
		c.subscribe(req)
	case WSTypeUnsubscribe:
		c.unsubscribe(req)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

// subscribe adds the requested channels, all or nothing. Unknown channels
// and channels the operator's role may not read reject the request. A
// successful subscribe is followed by a turret status frame.
func (c *WSClient) subscribe(req wsRequest) {
	channels, err := decodeChannels(req.Payload)
	if err != nil {
		c.reply(req.ID, WSTypeError, errorPayload(err.Error()))
		return
	}
	if err := c.checkChannels(channels); err != nil {
		c.reply(req.ID, WSTypeError, errorPayload(err.Error()))
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Info("event stream subscribed", "operator", c.operator.Name, "channels", channels)
	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	if c.hub.status != nil {
		c.reply(req.ID, WSTypeStatus, c.hub.status())
	}
}

func (c *WSClient) unsubscribe(req wsRequest) {
	channels, err := decodeChannels(req.Payload)
	if err != nil {
		c.reply(req.ID, WSTypeError, errorPayload(err.Error()))
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func decodeChannels(raw json.RawMessage) ([]string, error) {
	var p WSSubscribePayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return nil, errors.New(`payload must be {"channels": [...]}`)
	}
	if len(p.Channels) == 0 {
		return nil, errors.New("no channels given")
	}
	return p.Channels, nil
}

// checkChannels rejects names outside Channels() and channels the
// operator's role lacks permission for.
func (c *WSClient) checkChannels(channels []string) error {
	var unknown, denied []string
	for _, ch := range channels {
		switch {
		case ch == allChannels:
			if !auth.HasPermission(c.operator.Role, auth.PermTurretRead) {
				denied = append(denied, ch)
			}
		case channelPerms[ch] == "":
			unknown = append(unknown, ch)
		case !canReceive(c.operator.Role, ch):
			denied = append(denied, ch)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown channel: %s", strings.Join(unknown, ", "))
	}
	if len(denied) > 0 {
		return fmt.Errorf("%w: %s", auth.ErrForbidden, strings.Join(denied, ", "))
	}
	return nil
}

// wants reports whether an event on channel should reach this client.
// Permission is checked again here so a "*" subscription never widens
// what the role may read.
func (c *WSClient) wants(channel string) bool {
	if !canReceive(c.operator.Role, channel) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, all := c.channels[allChannels]
	_, one := c.channels[channel]
	return all || one
}

// trySend queues data without blocking. It reports false when the queue is
// full or already closed.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) reply(id, kind string, payload any) {
	data, err := encodeFrame(WSMessage{Type: kind, ID: id, Payload: payload})
	if err != nil {
		c.hub.logger.Error("failed to encode reply frame", "type", kind, "error", err)
		return
	}
	c.trySend(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
