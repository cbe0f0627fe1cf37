package hardware

import (
	"sync/atomic"
	"time"
)

// Logger is the subset of logging.Logger the simulators use.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Motor is a simulated flywheel motor pair. SpinUp and SpinDown block for
// the configured ramp time.
type Motor struct {
	spinUp   time.Duration
	spinDown time.Duration
	logger   Logger

	spinning  atomic.Bool
	spinUps   atomic.Int64
	spinDowns atomic.Int64
}

// NewMotor creates a motor with the given ramp times. A nil logger is allowed.
func NewMotor(spinUp, spinDown time.Duration, logger Logger) *Motor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Motor{spinUp: spinUp, spinDown: spinDown, logger: logger}
}

// SpinUp ramps the flywheels to speed.
func (m *Motor) SpinUp() {
	m.spinUps.Add(1)
	m.logger.Info("spinning up")
	time.Sleep(m.spinUp)
	m.spinning.Store(true)
}

// SpinDown ramps the flywheels to a stop.
func (m *Motor) SpinDown() {
	m.spinDowns.Add(1)
	m.logger.Info("spinning down")
	time.Sleep(m.spinDown)
	m.spinning.Store(false)
}

// Spinning reports whether the last completed ramp was a spin-up.
func (m *Motor) Spinning() bool {
	return m.spinning.Load()
}

// Counts returns how many spin-ups and spin-downs have been requested.
func (m *Motor) Counts() (spinUps, spinDowns int64) {
	return m.spinUps.Load(), m.spinDowns.Load()
}
