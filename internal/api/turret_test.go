package api

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fbot-core/internal/audit"
	"github.com/nerrad567/fbot-core/internal/auth"
	"github.com/nerrad567/fbot-core/internal/telemetry"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// ─── Status ────────────────────────────────────────────────────────

func TestStatus(t *testing.T) {
	srv, _ := testServer(t)
	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/status", "", tokenFor(t, auth.RoleViewer))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var st turret.Status
	decode(t, w, &st)
	if !st.Loaded || st.Balls != 6 || st.Capacity != 6 {
		t.Errorf("status body = %+v", st)
	}
}

// ─── Fire ──────────────────────────────────────────────────────────

func TestFire(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantID    string
	}{
		{"empty body fires one", "", 1, ""},
		{"empty object fires one", "{}", 1, ""},
		{"explicit count", `{"count":3}`, 3, ""},
		{"clamped to max burst", `{"count":50}`, 10, ""},
		{"request id kept", `{"count":2,"request_id":"req-7"}`, 2, "req-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tur := testServer(t)
			w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/fire", tt.body, tokenFor(t, auth.RoleOperator))

			if w.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want 202 (%s)", w.Code, w.Body.String())
			}

			var resp fireResponse
			decode(t, w, &resp)
			if resp.Count != tt.wantCount || resp.Status != "accepted" {
				t.Errorf("response = %+v, want count %d", resp, tt.wantCount)
			}
			if resp.RequestID == "" {
				t.Error("response request_id is empty")
			}
			if tt.wantID != "" && resp.RequestID != tt.wantID {
				t.Errorf("request_id = %q, want %q", resp.RequestID, tt.wantID)
			}

			call := tur.waitFire(t)
			if call.count != tt.wantCount || call.requestID != resp.RequestID {
				t.Errorf("Fire(%d, %q), want (%d, %q)", call.count, call.requestID, tt.wantCount, resp.RequestID)
			}
			srv.fires.Wait()
		})
	}
}

func TestFire_NoBurstCap(t *testing.T) {
	srv, tur := testServer(t)
	srv.maxBurst = 0

	w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/fire", `{"count":50}`, tokenFor(t, auth.RoleOperator))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if call := tur.waitFire(t); call.count != 50 {
		t.Errorf("Fire count = %d, want 50", call.count)
	}
	srv.fires.Wait()
}

func TestFire_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative count", `{"count":-1}`},
		{"invalid JSON", `{"count":`},
		{"wrong type", `{"count":"three"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tur := testServer(t)
			w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/fire", tt.body, tokenFor(t, auth.RoleOperator))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			select {
			case <-tur.fired:
				t.Error("bad request reached the turret")
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

// ─── Reload ────────────────────────────────────────────────────────

func TestReload(t *testing.T) {
	srv, tur := testServer(t)
	w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/reload", "", tokenFor(t, auth.RoleOperator))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]int
	decode(t, w, &resp)
	if resp["balls"] != 6 {
		t.Errorf("balls = %d, want 6", resp["balls"])
	}
	if tur.reloads != 1 {
		t.Errorf("reloads = %d, want 1", tur.reloads)
	}
}

// ─── Sessions ──────────────────────────────────────────────────────

func withSessions(srv *Server) *fakeSessions {
	fs := &fakeSessions{
		sessions: map[string]turret.Session{
			"s1": {ID: "s1", Requested: 1, Fired: 1, Status: turret.SessionCompleted},
			"s2": {ID: "s2", Requested: 3, Fired: 1, Status: turret.SessionAborted, FailedStep: "wait-for-magazine-2"},
		},
		order: []string{"s2", "s1"},
	}
	srv.sessions = fs
	return fs
}

func TestListSessions(t *testing.T) {
	srv, _ := testServer(t)
	fs := withSessions(srv)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sessions", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Sessions []turret.Session `json:"sessions"`
		Count    int              `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Sessions) != 2 || resp.Sessions[0].ID != "s2" {
		t.Errorf("sessions = %+v", resp)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/sessions?limit=5", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status with limit = %d, want 200", w.Code)
	}
	if len(fs.limits) != 2 || fs.limits[0] != 0 || fs.limits[1] != 5 {
		t.Errorf("limits passed = %v, want [0 5]", fs.limits)
	}
}

func TestListSessions_InvalidLimit(t *testing.T) {
	srv, _ := testServer(t)
	withSessions(srv)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	for _, q := range []string{"0", "-2", "abc"} {
		w := doRequest(t, router, http.MethodGet, "/api/v1/sessions?limit="+q, "", token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestGetSession(t *testing.T) {
	srv, _ := testServer(t)
	withSessions(srv)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sessions/s2", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var sess turret.Session
	decode(t, w, &sess)
	if sess.ID != "s2" || sess.FailedStep != "wait-for-magazine-2" {
		t.Errorf("session = %+v", sess)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/sessions/missing", "", token)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", w.Code)
	}
}

func TestSessions_NotConfigured(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	for _, path := range []string{"/api/v1/sessions", "/api/v1/sessions/s1"} {
		w := doRequest(t, router, http.MethodGet, path, "", token)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, w.Code)
		}
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

type fakeTelemetry telemetry.Stats

func (f fakeTelemetry) Stats() telemetry.Stats { return telemetry.Stats(f) }

type fakeDB sql.DBStats

func (f fakeDB) Stats() sql.DBStats { return sql.DBStats(f) }

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	w := doRequest(t, router, http.MethodGet, "/api/v1/metrics", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var bare SystemMetrics
	decode(t, w, &bare)
	if bare.Version != "test" || bare.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", bare)
	}
	if bare.MQTT.Enabled || bare.Telemetry != nil || bare.Database != nil {
		t.Errorf("unconfigured sections present: %+v", bare)
	}

	srv.mqtt = fakeConn(true)
	srv.telemetry = fakeTelemetry{Forwarded: 4, Dropped: 1}
	srv.db = fakeDB{OpenConnections: 1, Idle: 1}

	w = doRequest(t, router, http.MethodGet, "/api/v1/metrics", "", token)
	var full SystemMetrics
	decode(t, w, &full)
	if !full.MQTT.Enabled || !full.MQTT.Connected {
		t.Errorf("mqtt = %+v", full.MQTT)
	}
	if full.Telemetry == nil || full.Telemetry.Forwarded != 4 || full.Telemetry.Dropped != 1 {
		t.Errorf("telemetry = %+v", full.Telemetry)
	}
	if full.Database == nil || full.Database.OpenConnections != 1 {
		t.Errorf("database = %+v", full.Database)
	}
}

// ─── Audit ─────────────────────────────────────────────────────────

type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	filters []audit.Filter
	created chan struct{}
}

func (f *fakeAudit) Create(_ context.Context, e *audit.Entry) error {
	f.mu.Lock()
	f.entries = append(f.entries, *e)
	f.mu.Unlock()
	f.created <- struct{}{}
	return nil
}

func (f *fakeAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return &audit.ListResult{Entries: append([]audit.Entry{}, f.entries...), Total: len(f.entries), Limit: 50}, nil
}

func (f *fakeAudit) waitCreate(t *testing.T) {
	t.Helper()
	select {
	case <-f.created:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit write")
	}
}

func auditServer(t *testing.T) (*Server, *fakeTurret, *fakeAudit) {
	t.Helper()
	tur := newFakeTurret()
	fa := &fakeAudit{created: make(chan struct{}, 8)}

	deps := testDeps(t, tur)
	deps.Audit = fa
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.drainAuditLog(ctx)

	return srv, tur, fa
}

func TestAudit_RecordsCommands(t *testing.T) {
	srv, tur, fa := auditServer(t)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleOperator)

	w := doRequest(t, router, http.MethodPost, "/api/v1/fire", `{"count":2,"request_id":"req-1"}`, token)
	if w.Code != http.StatusAccepted {
		t.Fatalf("fire status = %d", w.Code)
	}
	tur.waitFire(t)
	fa.waitCreate(t)

	w = doRequest(t, router, http.MethodPost, "/api/v1/reload", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	fa.waitCreate(t)
	srv.fires.Wait()

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(fa.entries))
	}
	fire, reload := fa.entries[0], fa.entries[1]
	if fire.Action != audit.ActionFire || fire.Operator != "alice" || fire.Source != audit.SourceHTTP || fire.RequestID != "req-1" {
		t.Errorf("fire entry = %+v", fire)
	}
	if reload.Action != audit.ActionReload || reload.Details["balls"] != 6 {
		t.Errorf("reload entry = %+v", reload)
	}
}

func TestAudit_List(t *testing.T) {
	srv, _, fa := auditServer(t)
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/audit?action=fire&operator=alice&source=chat&limit=10&offset=5", "", tokenFor(t, auth.RoleViewer))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var res audit.ListResult
	decode(t, w, &res)
	if res.Entries == nil || res.Limit != 50 {
		t.Errorf("result = %+v", res)
	}

	want := audit.Filter{Action: "fire", Operator: "alice", Source: "chat", Limit: 10, Offset: 5}
	if len(fa.filters) != 1 || fa.filters[0] != want {
		t.Errorf("filters = %+v, want %+v", fa.filters, want)
	}
}

func TestAudit_NotConfigured(t *testing.T) {
	srv, _ := testServer(t)
	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/audit", "", tokenFor(t, auth.RoleViewer))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
