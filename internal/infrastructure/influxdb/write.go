package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the turret.
const (
	MeasurementShot     = "turret_shot"
	MeasurementMagazine = "turret_magazine"
	MeasurementMotion   = "turret_motion"
	MeasurementSession  = "turret_session"
)

// WriteShot records one released ball.
//
// Parameters:
//   - requestID: Tag of the fire request that released it
//   - ballsRemaining: Counter value after the release (may be negative)
//   - at: Release time
func (c *Client) WriteShot(requestID string, ballsRemaining int, at time.Time) {
	c.write(MeasurementShot,
		map[string]string{"request_id": requestID},
		map[string]any{"balls_remaining": ballsRemaining, "count": 1},
		at)
}

// WriteMagazine records a magazine state transition or reload.
func (c *Client) WriteMagazine(loaded bool, balls int, at time.Time) {
	c.write(MeasurementMagazine, nil,
		map[string]any{"loaded": loaded, "balls": balls},
		at)
}

// WriteMotion records a completed axis move.
//
// Parameters:
//   - axis: "turn" or "pitch"
//   - from, to: Angles in degrees
//   - duration: Time the move took
func (c *Client) WriteMotion(axis string, from, to float64, duration time.Duration, at time.Time) {
	c.write(MeasurementMotion,
		map[string]string{"axis": axis},
		map[string]any{"from": from, "to": to, "duration_ms": duration.Milliseconds()},
		at)
}

// WriteSession records the outcome of a fire sequence.
func (c *Client) WriteSession(requestID, status string, requested, fired int, duration time.Duration, at time.Time) {
	c.write(MeasurementSession,
		map[string]string{"request_id": requestID, "status": status},
		map[string]any{"requested": requested, "fired": fired, "duration_ms": duration.Milliseconds()},
		at)
}

// write adds the device tag and hands the point to the batching writer.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	allTags := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		allTags[k] = v
	}
	allTags["device_id"] = c.deviceID

	c.writer.WritePoint(write.NewPoint(measurement, allTags, fields, at))
}
