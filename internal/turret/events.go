package turret

import "time"

// EventType names a turret notification.
type EventType string

// Event types published on the turret's event stream.
const (
	EventMagazineChanged  EventType = "magazine-loaded-changed"
	EventMagazineReloaded EventType = "magazine-reloaded"
	EventMotionStart      EventType = "motion-start"
	EventMotionDone       EventType = "motion-done"
	EventFireStart        EventType = "fire-start"
	EventFireDone         EventType = "fire-done"
	EventShotReleased     EventType = "shot-released"
)

// Event is one turret notification. Exactly one of the detail pointers is
// set, matching Type.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	RequestID string    `json:"request_id,omitempty"`

	Magazine *MagazineInfo `json:"magazine,omitempty"`
	Motion   *MotionInfo   `json:"motion,omitempty"`
	Shot     *ShotInfo     `json:"shot,omitempty"`
	Session  *Session      `json:"session,omitempty"`
}

// MagazineInfo accompanies magazine events.
type MagazineInfo struct {
	Loaded bool `json:"loaded"`
	Balls  int  `json:"balls"`
}

// MotionInfo accompanies motion-start and motion-done.
type MotionInfo struct {
	Axis     string        `json:"axis"`
	From     float64       `json:"from"`
	To       float64       `json:"to"`
	Duration time.Duration `json:"duration_ns"`
}

// ShotInfo accompanies shot-released.
type ShotInfo struct {
	BallsRemaining int  `json:"balls_remaining"`
	Underflow      bool `json:"underflow,omitempty"`
}
