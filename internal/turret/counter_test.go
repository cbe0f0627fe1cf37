package turret

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fbot-core/internal/hardware"
)

func newTestCounter(balls int) (*BallCounter, *hardware.Sensor, *Magazine) {
	sensor := hardware.NewSensor("A0")
	m := NewMagazine(600)
	m.Attach(sensor, 0, 1023)
	sensor.SetValue(50)

	c := &BallCounter{
		sensor:        sensor,
		capacity:      6,
		emptyReading:  650,
		loadedReading: 50,
		logger:        noopLogger{},
		balls:         balls,
	}
	return c, sensor, m
}

func TestBallCounter_Release(t *testing.T) {
	c, sensor, m := newTestCounter(3)

	remaining, underflow := c.Release()
	if remaining != 2 || underflow {
		t.Errorf("Release() = %d,%v, want 2,false", remaining, underflow)
	}
	if v, _ := sensor.Value(); v != 50 {
		t.Errorf("sensor = %d, want untouched 50", v)
	}
	if !m.Loaded() {
		t.Error("magazine empty with balls left")
	}
}

func TestBallCounter_LastReleaseForcesEmptyReading(t *testing.T) {
	c, sensor, m := newTestCounter(1)
	var changes []bool
	m.OnChange(func(loaded bool) { changes = append(changes, loaded) })

	remaining, underflow := c.Release()

	if remaining != 0 || underflow {
		t.Errorf("Release() = %d,%v, want 0,false", remaining, underflow)
	}
	if v, _ := sensor.Value(); v != 650 {
		t.Errorf("sensor = %d, want 650", v)
	}
	if len(changes) != 1 || changes[0] {
		t.Errorf("magazine changes = %v, want [false]", changes)
	}
}

func TestBallCounter_UnderflowIsTolerated(t *testing.T) {
	c, _, m := newTestCounter(0)
	var changes []bool
	m.OnChange(func(loaded bool) { changes = append(changes, loaded) })

	remaining, underflow := c.Release()
	if remaining != -1 || !underflow {
		t.Errorf("Release() = %d,%v, want -1,true", remaining, underflow)
	}

	// The sensor already reads empty, so a second release stays silent.
	c.Release()
	if len(changes) != 1 {
		t.Errorf("magazine changes = %v, want a single flip to empty", changes)
	}
	if c.Count() != -2 {
		t.Errorf("Count() = %d, want -2", c.Count())
	}
}

func TestBallCounter_Reload(t *testing.T) {
	c, sensor, m := newTestCounter(0)
	sensor.SetValue(650)

	if got := c.Reload(); got != 6 {
		t.Errorf("Reload() = %d, want 6", got)
	}
	if c.Count() != 6 {
		t.Errorf("Count() = %d, want 6", c.Count())
	}
	if v, _ := sensor.Value(); v != 50 {
		t.Errorf("sensor = %d, want 50", v)
	}
	if !m.Loaded() {
		t.Error("magazine not loaded after Reload")
	}
}

// gatedSensor holds a chosen reading inside SetValue until the gate opens.
type gatedSensor struct {
	*hardware.Sensor
	hold    int
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedSensor) SetValue(raw int) {
	if raw == g.hold {
		close(g.entered)
		<-g.gate
	}
	g.Sensor.SetValue(raw)
}

func TestBallCounter_ReloadDuringLastReleaseEndsLoaded(t *testing.T) {
	c, sensor, m := newTestCounter(1)
	gs := &gatedSensor{Sensor: sensor, hold: 650, entered: make(chan struct{}), gate: make(chan struct{})}
	c.sensor = gs

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Release()
	}()

	<-gs.entered
	reloaded := make(chan struct{})
	go func() {
		defer wg.Done()
		c.Reload()
		close(reloaded)
	}()

	select {
	case <-reloaded:
		t.Error("Reload finished while the empty reading was still being written")
	case <-time.After(50 * time.Millisecond):
	}
	close(gs.gate)
	wg.Wait()

	if v, _ := sensor.Value(); v != 50 {
		t.Errorf("sensor = %d, want loaded reading 50", v)
	}
	if !m.Loaded() {
		t.Error("magazine empty after reload")
	}
	if c.Count() != 6 {
		t.Errorf("Count() = %d, want 6", c.Count())
	}
}

func TestBallCounter_ListenerMayReadCount(t *testing.T) {
	c, _, m := newTestCounter(1)
	seen := make(chan int, 2)
	m.OnChange(func(bool) { seen <- c.Count() })

	c.Release()
	c.Reload()

	if got := <-seen; got != 0 {
		t.Errorf("count seen on empty = %d, want 0", got)
	}
	if got := <-seen; got != 6 {
		t.Errorf("count seen on reload = %d, want 6", got)
	}
}
