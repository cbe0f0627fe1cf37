package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fbot-core/internal/auth"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// ─── Tickets ───────────────────────────────────────────────────────

func TestTicketStore_SingleUse(t *testing.T) {
	ts := newTicketStore()
	ticket := ts.issue(auth.Operator{Name: "alice", Role: auth.RoleViewer})

	if len(ticket) != ticketBytes*2 {
		t.Errorf("ticket length = %d, want %d", len(ticket), ticketBytes*2)
	}

	entry, ok := ts.consume(ticket)
	if !ok || entry.operator.Name != "alice" {
		t.Fatalf("consume() = %+v, %v", entry, ok)
	}
	if _, ok := ts.consume(ticket); ok {
		t.Error("second consume() succeeded, want single-use")
	}
	if _, ok := ts.consume("unknown"); ok {
		t.Error("consume(unknown) succeeded")
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	ts := newTicketStore()
	expired := ts.issue(auth.Operator{Name: "alice"})
	live := ts.issue(auth.Operator{Name: "bob"})

	ts.mu.Lock()
	e := ts.tickets[expired]
	e.expiresAt = time.Now().Add(-time.Second)
	ts.tickets[expired] = e
	ts.mu.Unlock()

	ts.cleanExpired()
	if ts.len() != 1 {
		t.Errorf("len() after cleanExpired = %d, want 1", ts.len())
	}
	if _, ok := ts.consume(expired); ok {
		t.Error("expired ticket accepted")
	}
	if _, ok := ts.consume(live); !ok {
		t.Error("live ticket rejected")
	}
}

func TestWSTicketEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/auth/ws-ticket", "", tokenFor(t, auth.RoleViewer))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	decode(t, w, &resp)
	if resp.Ticket == "" || resp.ExpiresIn != 60 {
		t.Errorf("response = %+v", resp)
	}
	if srv.tickets.len() != 1 {
		t.Errorf("tickets stored = %d, want 1", srv.tickets.len())
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func newTestClient(h *Hub, role auth.Role, channels ...string) *WSClient {
	c := newWSClient(h, nil, auth.Operator{Name: "alice", Role: role})
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	h.Register(c)
	return c
}

// nextFrame pops one queued frame, failing if none is waiting.
func nextFrame(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return msg
	default:
		t.Fatal("no frame queued")
		return WSMessage{}
	}
}

func assertQuiet(t *testing.T, c *WSClient) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("unexpected frame %s", data)
	default:
	}
}

func TestChannels(t *testing.T) {
	got := Channels()
	for _, want := range []turret.EventType{
		turret.EventMagazineChanged, turret.EventMagazineReloaded,
		turret.EventMotionStart, turret.EventMotionDone,
		turret.EventFireStart, turret.EventFireDone, turret.EventShotReleased,
	} {
		if !slices.Contains(got, string(want)) {
			t.Errorf("Channels() = %v, missing %s", got, want)
		}
	}
	if slices.Contains(got, allChannels) {
		t.Error("Channels() lists the wildcard")
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(testDeps(t, nil).WS, testLogger(), nil)
	shots := newTestClient(h, auth.RoleViewer, "shot-released")
	all := newTestClient(h, auth.RoleOperator, allChannels)
	other := newTestClient(h, auth.RoleViewer, "fire-done")

	h.Broadcast("shot-released", map[string]int{"shot": 1})

	for name, c := range map[string]*WSClient{"shots": shots, "all": all} {
		if msg := nextFrame(t, c); msg.Type != WSTypeEvent || msg.EventType != "shot-released" {
			t.Errorf("%s: message = %+v", name, msg)
		}
	}
	assertQuiet(t, other)
}

func TestHub_RoleGatesDelivery(t *testing.T) {
	h := NewHub(testDeps(t, nil).WS, testLogger(), nil)
	// A client that somehow holds a subscription without a readable role.
	nobody := newTestClient(h, "", allChannels, "fire-done")
	viewer := newTestClient(h, auth.RoleViewer, allChannels)

	h.Broadcast("fire-done", nil)
	h.Broadcast("not-a-channel", nil)

	assertQuiet(t, nobody)
	if msg := nextFrame(t, viewer); msg.EventType != "fire-done" {
		t.Errorf("viewer frame = %+v, want fire-done", msg)
	}
	assertQuiet(t, viewer)
}

func TestHub_UnregisterAndCloseAll(t *testing.T) {
	h := NewHub(testDeps(t, nil).WS, testLogger(), nil)
	a := newTestClient(h, auth.RoleViewer)
	newTestClient(h, auth.RoleViewer)

	if h.ClientCount() != 2 {
		t.Fatalf("ClientCount() = %d, want 2", h.ClientCount())
	}

	h.Unregister(a)
	h.Unregister(a)
	if h.ClientCount() != 1 {
		t.Errorf("ClientCount() after Unregister = %d, want 1", h.ClientCount())
	}
	if _, ok := <-a.send; ok {
		t.Error("send channel still open after Unregister")
	}

	h.closeAll()
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() after closeAll = %d, want 0", h.ClientCount())
	}

	if a.trySend([]byte("late")) {
		t.Error("trySend() on a closed client reported success")
	}
}

// ─── Subscriptions ─────────────────────────────────────────────────

func subscribeFrame(id string, channels ...string) []byte {
	data, _ := json.Marshal(WSMessage{Type: WSTypeSubscribe, ID: id, Payload: WSSubscribePayload{Channels: channels}}) //nolint:errcheck // static input
	return data
}

func TestSubscribe_Validation(t *testing.T) {
	tests := []struct {
		name     string
		role     auth.Role
		frame    []byte
		wantErr  string
		wantSubs []string
	}{
		{"known channel", auth.RoleViewer, subscribeFrame("1", "fire-done"), "", []string{"fire-done"}},
		{"wildcard", auth.RoleViewer, subscribeFrame("1", allChannels), "", []string{allChannels}},
		{"unknown channel", auth.RoleViewer, subscribeFrame("1", "fire-done", "lasers"), "unknown channel: lasers", nil},
		{"role without read", "", subscribeFrame("1", "fire-done"), auth.ErrForbidden.Error(), nil},
		{"no channels", auth.RoleViewer, subscribeFrame("1"), "no channels given", nil},
		{"missing payload", auth.RoleViewer, []byte(`{"type":"subscribe","id":"1"}`), "payload must be", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(testDeps(t, nil).WS, testLogger(), nil)
			c := newTestClient(h, tt.role)

			c.dispatch(tt.frame)
			msg := nextFrame(t, c)

			if tt.wantErr != "" {
				payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
				if msg.Type != WSTypeError || !strings.Contains(fmt.Sprint(payload["message"]), tt.wantErr) {
					t.Errorf("reply = %+v, want error containing %q", msg, tt.wantErr)
				}
				if len(c.channels) != 0 {
					t.Errorf("channels = %v after rejected subscribe", c.channels)
				}
				return
			}
			if msg.Type != WSTypeResponse || msg.ID != "1" {
				t.Errorf("reply = %+v, want response", msg)
			}
			for _, ch := range tt.wantSubs {
				if _, ok := c.channels[ch]; !ok {
					t.Errorf("channels = %v, missing %s", c.channels, ch)
				}
			}
		})
	}
}

func TestSubscribe_SendsStatusSnapshot(t *testing.T) {
	status := turret.Status{Loaded: false, Balls: 2, Capacity: 6}
	h := NewHub(testDeps(t, nil).WS, testLogger(), func() turret.Status { return status })
	c := newTestClient(h, auth.RoleViewer)

	c.dispatch(subscribeFrame("s1", "fire-done"))

	if msg := nextFrame(t, c); msg.Type != WSTypeResponse {
		t.Fatalf("first frame = %+v, want response", msg)
	}
	msg := nextFrame(t, c)
	if msg.Type != WSTypeStatus || msg.ID != "s1" {
		t.Fatalf("second frame = %+v, want status", msg)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok || payload["balls"] != float64(2) || payload["loaded"] != false {
		t.Errorf("status payload = %v", msg.Payload)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(testDeps(t, nil).WS, testLogger(), nil)
	c := newTestClient(h, auth.RoleViewer, "fire-done", "shot-released")

	c.dispatch([]byte(`{"type":"unsubscribe","id":"u1","payload":{"channels":["fire-done"]}}`))
	if msg := nextFrame(t, c); msg.Type != WSTypeResponse || msg.ID != "u1" {
		t.Errorf("reply = %+v", msg)
	}

	h.Broadcast("fire-done", nil)
	assertQuiet(t, c)
	h.Broadcast("shot-released", nil)
	if msg := nextFrame(t, c); msg.EventType != "shot-released" {
		t.Errorf("frame = %+v, want shot-released", msg)
	}
}

// ─── WebSocket connection ──────────────────────────────────────────

func wsURL(httpURL, ticket string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/api/v1/ws?ticket=" + ticket
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_RejectsMissingOrBadTicket(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	for _, ticket := range []string{"", "bogus"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, ticket), nil)
		if err == nil {
			t.Fatalf("Dial(ticket=%q) succeeded, want rejection", ticket)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Dial(ticket=%q) response = %v, want 401", ticket, resp)
		}
		if resp != nil {
			resp.Body.Close()
		}
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ticket := srv.tickets.issue(auth.Operator{Name: "alice", Role: auth.RoleViewer})
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, ticket), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	sub := WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{"fire-done"}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "s1" {
		t.Errorf("subscribe reply = %+v", msg)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeStatus {
		t.Errorf("frame after subscribe = %+v, want status snapshot", msg)
	}

	srv.hub.Broadcast("shot-released", "ignored")
	srv.hub.Broadcast("fire-done", map[string]int{"fired": 2})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != "fire-done" {
		t.Errorf("event = %+v, want fire-done", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError || msg.ID != "b1" {
		t.Errorf("unknown type reply = %+v", msg)
	}

	// The ticket was consumed by the handshake.
	if _, ok := srv.tickets.consume(ticket); ok {
		t.Error("ticket reusable after connect")
	}
}
