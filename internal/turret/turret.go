package turret

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
	"github.com/nerrad567/fbot-core/internal/notify"
)

// persistTimeout bounds each session store write.
const persistTimeout = 5 * time.Second

// SessionStore persists fire sessions. Implemented by SQLiteRepository.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
}

// Deps holds the turret's collaborators.
type Deps struct {
	Sensor Sensor
	Motor  Motor

	// Store records sessions. Optional.
	Store SessionStore

	// Logger is optional.
	Logger Logger
}

// Status is a point-in-time snapshot of the turret.
type Status struct {
	Loaded        bool    `json:"loaded"`
	MagazineValue float64 `json:"magazine_value"`
	Balls         int     `json:"balls"`
	Capacity      int     `json:"capacity"`
	TurnAngle     float64 `json:"turn_angle"`
	PitchAngle    float64 `json:"pitch_angle"`
	TurnBusy      bool    `json:"turn_busy"`
	PitchBusy     bool    `json:"pitch_busy"`
	Firing        bool    `json:"firing"`
	RequestID     string  `json:"request_id,omitempty"`
}

// Turret owns the device state (axes, magazine, ball count) and runs fire
// sequences against it.
//
// Thread Safety: Fire, Reload and Status are safe for concurrent use.
// Concurrent Fire calls run one at a time.
type Turret struct {
	cfg    config.TurretConfig
	motor  Motor
	store  SessionStore
	logger Logger

	magazine *Magazine
	turn     *Axis
	pitch    *Axis
	counter  *BallCounter
	waiter   *ReloadWaiter

	events notify.Notifier[Event]

	// session is the sequence-level busy guard.
	session   busyGuard
	mu        sync.RWMutex
	active    bool
	requestID string

	detach []func()
}

// New wires the turret to its hardware. The ball count starts at capacity;
// the magazine state follows the sensor's current reading.
//
// Parameters:
//   - cfg: Turret section of the application config
//   - deps: Sensor and motor (required), store and logger (optional)
//
// Returns:
//   - *Turret: Ready to fire
//   - error: ErrMissingHardware if the sensor or motor is nil
func New(cfg config.TurretConfig, deps Deps) (*Turret, error) {
	if deps.Sensor == nil || deps.Motor == nil {
		return nil, ErrMissingHardware
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	t := &Turret{
		cfg:      cfg,
		motor:    deps.Motor,
		store:    deps.Store,
		logger:   logger,
		magazine: NewMagazine(cfg.Threshold),
	}
	t.turn = newAxis("turn", cfg.Turn.MinAngle, cfg.Turn.MaxAngle, cfg.Turn.Speed, t.publish, logger)
	t.pitch = newAxis("pitch", cfg.Pitch.MinAngle, cfg.Pitch.MaxAngle, cfg.Pitch.Speed, t.publish, logger)
	t.counter = &BallCounter{
		sensor:        deps.Sensor,
		capacity:      cfg.Capacity,
		emptyReading:  cfg.EmptyReading,
		loadedReading: cfg.LoadedReading,
		logger:        logger,
		balls:         cfg.Capacity,
	}
	t.waiter = &ReloadWaiter{magazine: t.magazine, motor: deps.Motor, logger: logger}

	t.detach = append(t.detach, t.magazine.OnChange(func(loaded bool) {
		t.logger.Info("magazine state changed", "loaded", loaded)
		t.publish(Event{
			Type:     EventMagazineChanged,
			Magazine: &MagazineInfo{Loaded: loaded, Balls: t.counter.Count()},
		})
	}))
	t.detach = append(t.detach, t.magazine.Attach(deps.Sensor, cfg.ScaleMin, cfg.ScaleMax))

	return t, nil
}

// Close detaches the turret from its sensor. Running sequences are not
// interrupted.
func (t *Turret) Close() {
	for _, fn := range t.detach {
		fn()
	}
	t.detach = nil
}

// Subscribe registers fn for every turret event.
func (t *Turret) Subscribe(fn func(Event)) (cancel func()) {
	return t.events.Subscribe(fn)
}

func (t *Turret) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	t.events.Publish(e)
}

// Magazine exposes the magazine monitor.
func (t *Turret) Magazine() *Magazine { return t.magazine }

// Fire fires count balls, waiting for any running session to finish first.
//
// The returned Session describes the outcome. A sequence that aborts (reload
// timeout, reload race, a failing step) is reported on the Session and in
// the fire-done event, not as an error.
//
// Returns:
//   - *Session: Outcome of the sequence
//   - error: ErrInvalidCount for count < 1, or ctx.Err() if ctx ends while
//     waiting for another session
func (t *Turret) Fire(ctx context.Context, count int, requestID string) (result *Session, err error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	if requestID == "" {
		requestID = "unknown"
	}

	err = t.session.acquire(ctx, func() {
		t.logger.Info("busy firing, waiting", "request_id", requestID)
	})
	if err != nil {
		return nil, err
	}

	sess := newSession(requestID, count)
	t.mu.Lock()
	t.active = true
	t.requestID = requestID
	t.mu.Unlock()
	// The returned record is taken after finalize so it matches fire-done.
	defer func() {
		t.finalize(ctx, sess)
		result = sess.snapshot()
	}()

	t.logger.Info("now firing", "request_id", requestID, "count", count, "session_id", sess.ID)
	t.publish(Event{Type: EventFireStart, RequestID: requestID, Session: sess.snapshot()})
	t.persist(ctx, sess, true)

	steps := t.buildSequence(count, sess)
	t.logger.Debug("sequence built", "request_id", requestID, "steps", len(steps))

	for _, step := range steps {
		if err := runStep(ctx, step); err != nil {
			t.logger.Error("fire sequence failed", "request_id", requestID, "step", step.Name, "error", err)
			sess.abort(step.Name, err)
			break
		}
	}

	return nil, nil
}

// finalize runs on every exit from Fire: spin down, publish fire-done, then
// clear the session.
func (t *Turret) finalize(ctx context.Context, sess *Session) {
	t.motor.SpinDown()

	sess.finish(t.counter.Count())
	t.persist(ctx, sess, false)
	t.logger.Info("done firing", "request_id", sess.RequestID, "status", sess.Status, "fired", sess.Fired)
	t.publish(Event{Type: EventFireDone, RequestID: sess.RequestID, Session: sess.snapshot()})

	t.mu.Lock()
	t.active = false
	t.requestID = ""
	t.mu.Unlock()
	t.session.release()
}

func (t *Turret) persist(ctx context.Context, sess *Session, create bool) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var err error
	if create {
		err = t.store.CreateSession(ctx, sess.snapshot())
	} else {
		err = t.store.UpdateSession(ctx, sess.snapshot())
	}
	if err != nil {
		t.logger.Error("failed to record fire session", "session_id", sess.ID, "error", err)
	}
}

// Reload refills the magazine to capacity. This bypasses the physical
// feedback path: it sets the count and forces the loaded sensor reading,
// which in turn releases any pending reload wait.
func (t *Turret) Reload() int {
	balls := t.counter.Reload()
	t.logger.Info("magazine reloaded", "balls", balls)
	t.publish(Event{
		Type:     EventMagazineReloaded,
		Magazine: &MagazineInfo{Loaded: t.magazine.Loaded(), Balls: balls},
	})
	return balls
}

// Status returns a snapshot of the turret state.
func (t *Turret) Status() Status {
	t.mu.RLock()
	firing, requestID := t.active, t.requestID
	t.mu.RUnlock()

	return Status{
		Loaded:        t.magazine.Loaded(),
		MagazineValue: t.magazine.Value(),
		Balls:         t.counter.Count(),
		Capacity:      t.cfg.Capacity,
		TurnAngle:     t.turn.Angle(),
		PitchAngle:    t.pitch.Angle(),
		TurnBusy:      t.turn.Busy(),
		PitchBusy:     t.pitch.Busy(),
		Firing:        firing,
		RequestID:     requestID,
	}
}

// Active reports whether a fire session is running.
func (t *Turret) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Axes returns the turn and pitch axes.
func (t *Turret) Axes() (turn, pitch *Axis) {
	return t.turn, t.pitch
}
