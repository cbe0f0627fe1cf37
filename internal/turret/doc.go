// Package turret sequences the bot's actuators: two motion axes, the flywheel
// motor and a magazine observed through an analog sensor.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Turret (turret.go)                      │
//	│   Fire(count) ── session guard ── step list (sequence.go) │
//	│     │                                                     │
//	│     ├─ ReloadWaiter ──▶ Magazine ◀── Sensor.OnChange      │
//	│     ├─ Axis(turn) ┐                                       │
//	│     ├─ Axis(pitch)┘ concurrent per shot                   │
//	│     ├─ Motor.SpinUp                                       │
//	│     └─ BallCounter.Release ──▶ Sensor.SetValue(empty)     │
//	│                                                           │
//	│   finalizer: Motor.SpinDown → fire-done → release guard   │
//	└──────────────────────────────────────────────────────────┘
//
// # Mutual Exclusion
//
// Each axis and the firing session are protected by a busy guard: a flag
// plus a completion channel. A caller that finds the guard busy waits for
// the completion signal and then retries. All waiters wake together and
// re-contend, so the guard is not a fair queue; ordering under contention is
// whichever waiter wins the retry.
//
// # Failure Handling
//
// A step that returns an error (or panics) aborts the remaining steps. The
// failure is recorded on the Session and reported through the fire-done
// event; Fire itself never returns it. The finalizer always spins the motor
// down, publishes fire-done and clears the session, so a failed sequence
// never blocks the next one.
//
// # Events
//
// Subscribe receives every Event: magazine-loaded-changed, motion-start,
// motion-done, fire-start, fire-done, shot-released and magazine-reloaded.
// Handlers run synchronously on the emitting goroutine and must not block.
package turret
