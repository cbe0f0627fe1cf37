package api

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/fbot-core/internal/auth"
	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
	"github.com/nerrad567/fbot-core/internal/infrastructure/logging"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// allChannels subscribes a client to every channel its role may read.
const allChannels = "*"

// channelPerms lists the channels a client may subscribe to and the
// permission an operator needs to receive each one. Channel names are the
// turret event types.
var channelPerms = map[string]auth.Permission{
	string(turret.EventMagazineChanged):  auth.PermTurretRead,
	string(turret.EventMagazineReloaded): auth.PermTurretRead,
	string(turret.EventMotionStart):      auth.PermTurretRead,
	string(turret.EventMotionDone):       auth.PermTurretRead,
	string(turret.EventFireStart):        auth.PermTurretRead,
	string(turret.EventFireDone):         auth.PermTurretRead,
	string(turret.EventShotReleased):     auth.PermTurretRead,
}

// Channels returns the subscribable channel names in sorted order.
func Channels() []string {
	out := make([]string, 0, len(channelPerms))
	for ch := range channelPerms {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// canReceive reports whether role may see traffic on channel.
func canReceive(role auth.Role, channel string) bool {
	perm, ok := channelPerms[channel]
	return ok && auth.HasPermission(role, perm)
}

// StatusFunc reports the turret state sent to a client when it subscribes.
type StatusFunc func() turret.Status

// Hub fans turret events out to connected WebSocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger
	status StatusFunc

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a hub. status may be nil, in which case subscribers get no
// initial snapshot.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, status StatusFunc) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		status:  status,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client registered", "operator", c.operator.Name, "clients", n)
}

// Unregister removes a client. The outbound queue is closed by whichever
// caller actually removed it, so repeated calls are safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(c.send)
	h.logger.Debug("websocket client unregistered", "operator", c.operator.Name, "clients", n)
}

// Broadcast delivers payload on channel to every client that subscribed to
// it and whose role may read it.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeFrame(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode event frame", "channel", channel, "error", err)
		return
	}

	delivered := 0
	for _, c := range h.snapshot() {
		if c.wants(channel) && c.trySend(data) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("event broadcast", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// snapshot copies the client set so delivery never holds the hub lock.
func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// encodeFrame stamps msg and marshals it.
func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}
