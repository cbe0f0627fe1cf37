package turret

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Axis guards one rotational degree of freedom (turn or pitch).
//
// MoveTo calls are serialised: a request that arrives mid-motion waits for
// the motion to finish and then retries with the same target. Once a motion
// starts it always runs to completion.
type Axis struct {
	name     string
	minAngle float64
	maxAngle float64
	speed    float64 // degrees per second

	guard busyGuard

	mu    sync.RWMutex
	angle float64

	emit   func(Event)
	logger Logger
}

func newAxis(name string, minAngle, maxAngle, speed float64, emit func(Event), logger Logger) *Axis {
	return &Axis{
		name:     name,
		minAngle: minAngle,
		maxAngle: maxAngle,
		speed:    speed,
		emit:     emit,
		logger:   logger,
	}
}

// Name returns "turn" or "pitch".
func (a *Axis) Name() string {
	return a.name
}

// Angle returns the current angle in degrees.
func (a *Axis) Angle() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.angle
}

// Busy reports whether a motion is in progress.
func (a *Axis) Busy() bool {
	return a.guard.isBusy()
}

// RandomTarget picks a uniformly random angle within the axis range.
func (a *Axis) RandomTarget() float64 {
	return a.minAngle + rand.Float64()*(a.maxAngle-a.minAngle) //nolint:gosec // aim jitter, not security
}

// travelTime is proportional to the angular distance.
func (a *Axis) travelTime(from, to float64) time.Duration {
	return time.Duration(math.Abs(to-from) / a.speed * float64(time.Second))
}

// MoveTo rotates the axis to target, publishing motion-start before and
// motion-done after the motion. motion-done is published after the angle is
// updated and before any waiting request can start its own motion.
//
// ctx only bounds the wait for a busy axis.
func (a *Axis) MoveTo(ctx context.Context, target float64, requestID string) error {
	err := a.guard.acquire(ctx, func() {
		a.logger.Debug("axis busy, waiting", "axis", a.name, "request_id", requestID)
	})
	if err != nil {
		return err
	}
	defer a.guard.release()

	from := a.Angle()
	d := a.travelTime(from, target)
	info := MotionInfo{Axis: a.name, From: from, To: target, Duration: d}

	a.logger.Debug("moving axis", "axis", a.name, "to", target, "request_id", requestID)
	a.emit(Event{Type: EventMotionStart, RequestID: requestID, Motion: &info})

	time.Sleep(d)

	a.mu.Lock()
	a.angle = target
	a.mu.Unlock()

	done := info
	a.emit(Event{Type: EventMotionDone, RequestID: requestID, Motion: &done})
	return nil
}
