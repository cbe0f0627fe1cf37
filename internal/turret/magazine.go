package turret

import (
	"sync"

	"github.com/nerrad567/fbot-core/internal/notify"
)

// Magazine derives a loaded/empty state from the scaled sensor reading.
//
// The magazine is empty when the reading is above the threshold. A
// notification is published only when the state flips; repeated readings on
// the same side of the threshold are silent. Notifications are emitted in
// the order the readings were observed and always carry the state in force
// at emission time.
type Magazine struct {
	threshold float64

	// emitMu serialises Observe so that the state set and its notification
	// are not interleaved with another reading.
	emitMu sync.Mutex

	mu     sync.RWMutex
	loaded bool
	value  float64

	changes notify.Notifier[bool]
}

// NewMagazine returns a monitor that starts out empty.
func NewMagazine(threshold float64) *Magazine {
	return &Magazine{threshold: threshold}
}

// Observe records a scaled reading and publishes loaded-changed on a flip.
func (m *Magazine) Observe(value float64) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	loaded := value <= m.threshold

	m.mu.Lock()
	m.value = value
	changed := loaded != m.loaded
	m.loaded = loaded
	m.mu.Unlock()

	if changed {
		m.changes.Publish(loaded)
	}
}

// Loaded returns the last published state.
func (m *Magazine) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Value returns the last observed scaled reading.
func (m *Magazine) Value() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// OnChange registers fn for every loaded-changed notification.
func (m *Magazine) OnChange(fn func(loaded bool)) (cancel func()) {
	return m.changes.Subscribe(fn)
}

// Once registers fn for the next loaded-changed notification only.
func (m *Magazine) Once(fn func(loaded bool)) (cancel func()) {
	return m.changes.Once(fn)
}

// Subscribers returns the number of registered handlers.
func (m *Magazine) Subscribers() int {
	return m.changes.Len()
}

// Attach feeds sensor changes into the magazine, scaling each reading onto
// lo..hi, and takes an initial reading.
func (m *Magazine) Attach(sensor Sensor, lo, hi float64) (detach func()) {
	cancel := sensor.OnChange(func(int) {
		m.Observe(sensor.ScaleTo(lo, hi))
	})
	m.Observe(sensor.ScaleTo(lo, hi))
	return cancel
}
