package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/fbot-core/internal/turret"
)

// DefaultQueueSize applies when Options.QueueSize is not positive.
const DefaultQueueSize = 256

// Source is the subset of *turret.Turret the forwarder observes.
type Source interface {
	Subscribe(fn func(turret.Event)) (cancel func())
	Status() turret.Status
}

// EventPublisher is implemented by *mqtt.Client.
type EventPublisher interface {
	PublishEvent(eventType string, payload []byte) error
	PublishStatus(payload []byte) error
}

// MetricsWriter is implemented by *influxdb.Client.
type MetricsWriter interface {
	WriteShot(requestID string, ballsRemaining int, at time.Time)
	WriteMagazine(loaded bool, balls int, at time.Time)
	WriteMotion(axis string, from, to float64, duration time.Duration, at time.Time)
	WriteSession(requestID, status string, requested, fired int, duration time.Duration, at time.Time)
}

// Broadcaster is implemented by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options selects the sinks. Nil sinks are skipped.
type Options struct {
	MQTT      EventPublisher
	Metrics   MetricsWriter
	Hub       Broadcaster
	QueueSize int
	Logger    Logger
}

// Stats counts forwarded and dropped events.
type Stats struct {
	Forwarded uint64 `json:"forwarded"`
	Dropped   uint64 `json:"dropped"`
}

// Forwarder relays turret events to the configured sinks.
type Forwarder struct {
	src    Source
	opts   Options
	logger Logger
	queue  chan turret.Event

	forwarded atomic.Uint64
	dropped   atomic.Uint64

	mu     sync.Mutex
	cancel func()
	done   chan struct{}
}

// New creates a forwarder for src. Call Start to begin relaying.
func New(src Source, opts Options) *Forwarder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Forwarder{
		src:    src,
		opts:   opts,
		logger: logger,
		queue:  make(chan turret.Event, opts.QueueSize),
	}
}

// Start subscribes to the source and starts the worker. The worker stops
// when ctx is cancelled or Stop is called. Calling Start twice is a no-op.
func (f *Forwarder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return
	}

	ctx, stop := context.WithCancel(ctx)
	unsubscribe := f.src.Subscribe(f.enqueue)
	f.cancel = func() {
		unsubscribe()
		stop()
	}
	f.done = make(chan struct{})
	go f.run(ctx, f.done)
}

// Stop unsubscribes and waits for the worker to exit. Queued events that
// have not been forwarded yet are flushed first.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Stats returns the forwarding counters.
func (f *Forwarder) Stats() Stats {
	return Stats{Forwarded: f.forwarded.Load(), Dropped: f.dropped.Load()}
}

// enqueue runs on the turret's publishing goroutine and must not block.
func (f *Forwarder) enqueue(e turret.Event) {
	select {
	case f.queue <- e:
	default:
		n := f.dropped.Add(1)
		f.logger.Warn("telemetry queue full, event dropped", "type", e.Type, "request_id", e.RequestID, "dropped", n)
	}
}

func (f *Forwarder) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case e := <-f.queue:
			f.forward(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-f.queue:
					f.forward(e)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) forward(e turret.Event) {
	if f.opts.MQTT != nil {
		f.publishMQTT(e)
	}
	if f.opts.Metrics != nil {
		f.writeMetrics(e)
	}
	if f.opts.Hub != nil {
		f.opts.Hub.Broadcast(string(e.Type), e)
	}
	f.forwarded.Add(1)
}

func (f *Forwarder) publishMQTT(e turret.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		f.logger.Warn("failed to encode event", "type", e.Type, "error", err)
		return
	}
	if err := f.opts.MQTT.PublishEvent(string(e.Type), payload); err != nil {
		f.logger.Debug("event not published", "type", e.Type, "error", err)
	}

	if !changesStatus(e.Type) {
		return
	}
	status, err := json.Marshal(f.src.Status())
	if err != nil {
		f.logger.Warn("failed to encode status", "error", err)
		return
	}
	if err := f.opts.MQTT.PublishStatus(status); err != nil {
		f.logger.Debug("status not published", "error", err)
	}
}

// changesStatus reports whether the retained status snapshot should be
// refreshed after an event of type t.
func changesStatus(t turret.EventType) bool {
	switch t {
	case turret.EventFireStart, turret.EventFireDone,
		turret.EventMagazineChanged, turret.EventMagazineReloaded:
		return true
	default:
		return false
	}
}

func (f *Forwarder) writeMetrics(e turret.Event) {
	m := f.opts.Metrics
	switch {
	case e.Type == turret.EventShotReleased && e.Shot != nil:
		m.WriteShot(e.RequestID, e.Shot.BallsRemaining, e.Time)
	case (e.Type == turret.EventMagazineChanged || e.Type == turret.EventMagazineReloaded) && e.Magazine != nil:
		m.WriteMagazine(e.Magazine.Loaded, e.Magazine.Balls, e.Time)
	case e.Type == turret.EventMotionDone && e.Motion != nil:
		m.WriteMotion(e.Motion.Axis, e.Motion.From, e.Motion.To, e.Motion.Duration, e.Time)
	case e.Type == turret.EventFireDone && e.Session != nil:
		s := e.Session
		m.WriteSession(s.RequestID, string(s.Status), s.Requested, s.Fired,
			time.Duration(s.DurationMS)*time.Millisecond, e.Time)
	}
}
