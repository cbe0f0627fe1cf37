package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/fbot-core/internal/audit"
	"github.com/nerrad567/fbot-core/internal/auth"
	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// Turret is the subset of *turret.Turret the dispatcher drives.
type Turret interface {
	Fire(ctx context.Context, count int, requestID string) (*turret.Session, error)
	Reload() int
}

// Auditor records operator commands. Implemented by *audit.SQLiteRepository.
type Auditor interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// auditTimeout bounds each audit write.
const auditTimeout = 5 * time.Second

// Logger is the logging interface used by this package.
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

// Message is one chat message received by the transport.
type Message struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
}

// Dispatcher applies operator messages to the turret.
//
// Thread Safety: Handle is safe for concurrent use.
type Dispatcher struct {
	turret   Turret
	allow    *auth.Allowlist
	prefix   string
	self     string
	maxBurst int
	logger   Logger
	auditor  Auditor

	ctx context.Context
	wg  sync.WaitGroup
}

// NewDispatcher creates a dispatcher. ctx bounds the fire requests it starts;
// cancelling it abandons sequences still waiting for the turret.
func NewDispatcher(ctx context.Context, cfg config.CommandConfig, t Turret, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		turret:   t,
		allow:    auth.NewAllowlist(cfg.AllowedUsers),
		prefix:   cfg.Prefix,
		self:     cfg.SelfUser,
		maxBurst: cfg.MaxBurst,
		logger:   logger,
		ctx:      ctx,
	}
}

// SetAuditor records every accepted command with a. Call before Handle.
func (d *Dispatcher) SetAuditor(a Auditor) {
	d.auditor = a
}

// Handle checks and parses msg, then acts on it. Fire commands are started
// in the background and Handle returns as soon as they are queued.
//
// Returns:
//   - Command: The command acted on
//   - error: ErrSelfMessage, ErrNotAllowed, ErrNotCommand or ErrUnknownCommand
//     when the message is ignored
func (d *Dispatcher) Handle(msg Message) (Command, error) {
	if d.self != "" && msg.User == d.self {
		return Command{}, ErrSelfMessage
	}
	if !d.allow.Allowed(msg.User) {
		return Command{}, ErrNotAllowed
	}

	cmd, err := Parse(msg.Text, d.prefix)
	if err != nil {
		return Command{}, err
	}

	switch cmd.Kind {
	case KindFire:
		if d.maxBurst > 0 && cmd.Count > d.maxBurst {
			d.logger.Warn("fire count clamped", "request_id", msg.ID, "requested", cmd.Count, "max", d.maxBurst)
			cmd.Count = d.maxBurst
		}
		d.record(audit.ActionFire, msg, map[string]any{"count": cmd.Count})
		d.fire(cmd.Count, msg)
	case KindReload:
		balls := d.turret.Reload()
		d.logger.Info("reload command", "request_id", msg.ID, "user", msg.User, "balls", balls)
		d.record(audit.ActionReload, msg, map[string]any{"balls": balls})
	}
	return cmd, nil
}

func (d *Dispatcher) fire(count int, msg Message) {
	d.logger.Info("fire command", "request_id", msg.ID, "user", msg.User, "count", count)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sess, err := d.turret.Fire(d.ctx, count, msg.ID)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			d.logger.Warn("fire command abandoned", "request_id", msg.ID, "error", err)
		case err != nil:
			d.logger.Error("fire command failed", "request_id", msg.ID, "error", err)
		default:
			d.logger.Info("fire command finished",
				"request_id", msg.ID,
				"status", sess.Status,
				"fired", sess.Fired,
				"failed_step", sess.FailedStep,
			)
		}
	}()
}

// record writes an audit entry. Failures are logged and never block the command.
func (d *Dispatcher) record(action string, msg Message, details map[string]any) {
	if d.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), auditTimeout)
	defer cancel()

	err := d.auditor.Create(ctx, &audit.Entry{
		Action:    action,
		Operator:  msg.User,
		Source:    audit.SourceChat,
		RequestID: msg.ID,
		Details:   details,
	})
	if err != nil {
		d.logger.Warn("audit write failed", "request_id", msg.ID, "action", action, "error", err)
	}
}

// Wait blocks until every fire request started by Handle has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
