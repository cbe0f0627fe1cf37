package hardware

import (
	"sync"

	"github.com/nerrad567/fbot-core/internal/notify"
)

// RawMax is the top of the 10-bit analog range.
const RawMax = 1023

// Sensor is a simulated 10-bit analog input.
//
// Until the first SetValue the sensor has no reading and ScaleTo reports the
// top of the requested range.
type Sensor struct {
	pin string

	mu    sync.Mutex
	value int
	set   bool

	changes notify.Notifier[int]
}

// NewSensor returns a sensor with no reading yet.
func NewSensor(pin string) *Sensor {
	return &Sensor{pin: pin}
}

// Pin returns the analog pin name the sensor is attached to.
func (s *Sensor) Pin() string {
	return s.pin
}

// Value returns the raw reading and whether one has been taken.
func (s *Sensor) Value() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// SetValue stores a raw reading. Change handlers run only when the reading
// differs from the previous one.
func (s *Sensor) SetValue(raw int) {
	s.mu.Lock()
	changed := !s.set || s.value != raw
	s.value = raw
	s.set = true
	s.mu.Unlock()

	if changed {
		s.changes.Publish(raw)
	}
}

// ScaleTo maps the raw reading from 0..RawMax onto lo..hi, unclamped.
func (s *Sensor) ScaleTo(lo, hi float64) float64 {
	s.mu.Lock()
	value, set := s.value, s.set
	s.mu.Unlock()

	if !set {
		return hi
	}
	return Map(float64(value), 0, RawMax, lo, hi)
}

// OnChange registers fn for every change of the raw reading.
func (s *Sensor) OnChange(fn func(raw int)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// Map linearly maps n from [inMin, inMax] onto [outMin, outMax] without
// clamping.
func Map(n, inMin, inMax, outMin, outMax float64) float64 {
	return (n-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}
