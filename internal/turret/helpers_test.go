package turret

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/fbot-core/internal/hardware"
	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
)

// ─── Test doubles ──────────────────────────────────────────────────

type fakeMotor struct {
	ups   atomic.Int32
	downs atomic.Int32

	// onDown, when set before firing, runs inside every SpinDown.
	onDown func()
}

func (m *fakeMotor) SpinUp() { m.ups.Add(1) }

func (m *fakeMotor) SpinDown() {
	m.downs.Add(1)
	if m.onDown != nil {
		m.onDown()
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofType(types ...EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		for _, typ := range types {
			if e.Type == typ {
				out = append(out, e)
			}
		}
	}
	return out
}

// ─── Fixtures ──────────────────────────────────────────────────────

func testConfig() config.TurretConfig {
	return config.TurretConfig{
		Threshold:     600,
		ScaleMin:      0,
		ScaleMax:      1023,
		LoadedReading: 50,
		EmptyReading:  650,
		Capacity:      6,
		ReloadTimeout: 100 * time.Millisecond,
		Turn:          config.AxisConfig{MinAngle: -90, MaxAngle: 90, Speed: 90000},
		Pitch:         config.AxisConfig{MinAngle: -60, MaxAngle: 60, Speed: 60000},
	}
}

type fixture struct {
	turret *Turret
	sensor *hardware.Sensor
	motor  *fakeMotor
	events *recorder
}

// newFixture builds a loaded turret on a simulated sensor.
func newFixture(t *testing.T, cfg config.TurretConfig, store SessionStore) *fixture {
	t.Helper()
	sensor := hardware.NewSensor("A0")
	motor := &fakeMotor{}

	tur, err := New(cfg, Deps{Sensor: sensor, Motor: motor, Store: store})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(tur.Close)

	rec := &recorder{}
	tur.Subscribe(rec.record)
	sensor.SetValue(cfg.LoadedReading)

	return &fixture{turret: tur, sensor: sensor, motor: motor, events: rec}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
