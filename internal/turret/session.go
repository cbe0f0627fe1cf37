package turret

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a fire session.
type SessionStatus string

// Session statuses.
const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionAborted   SessionStatus = "aborted"
)

// Session records one Fire call from acquisition to finalisation.
type Session struct {
	ID             string        `json:"id"`
	RequestID      string        `json:"request_id"`
	Requested      int           `json:"requested"`
	Fired          int           `json:"fired"`
	Status         SessionStatus `json:"status"`
	FailedStep     string        `json:"failed_step,omitempty"`
	Error          string        `json:"error,omitempty"`
	BallsRemaining int           `json:"balls_remaining"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	DurationMS     int64         `json:"duration_ms"`

	// Err is the step error that aborted the session, if any. Not persisted.
	Err error `json:"-"`
}

// GenerateID returns a new random identifier for sessions and request tags.
func GenerateID() string {
	return uuid.New().String()
}

func newSession(requestID string, requested int) *Session {
	return &Session{
		ID:        GenerateID(),
		RequestID: requestID,
		Requested: requested,
		Status:    SessionRunning,
		StartedAt: time.Now().UTC(),
	}
}

func (s *Session) abort(step string, err error) {
	s.Status = SessionAborted
	s.FailedStep = step
	s.Err = err
	s.Error = err.Error()
}

func (s *Session) finish(balls int) {
	now := time.Now().UTC()
	if s.Status == SessionRunning {
		s.Status = SessionCompleted
	}
	s.BallsRemaining = balls
	s.CompletedAt = &now
	s.DurationMS = now.Sub(s.StartedAt).Milliseconds()
}

// snapshot returns a copy safe to hand to event subscribers.
func (s *Session) snapshot() *Session {
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
