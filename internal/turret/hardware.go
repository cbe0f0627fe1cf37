package turret

// Sensor is the magazine's analog input as seen by the turret.
type Sensor interface {
	// ScaleTo maps the current reading onto lo..hi. A sensor without a
	// reading yet returns hi.
	ScaleTo(lo, hi float64) float64

	// OnChange registers fn for reading changes.
	OnChange(fn func(raw int)) (cancel func())

	// SetValue forces a raw reading. Used by the ball counter to mirror the
	// physical magazine on reload and when the last ball leaves.
	SetValue(raw int)
}

// Motor drives the flywheels. Both calls block until the ramp completes;
// callers that do not need to wait invoke them on their own goroutine.
type Motor interface {
	SpinUp()
	SpinDown()
}

// Logger is the logging interface used by the turret.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
