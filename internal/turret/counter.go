package turret

import "sync"

// BallCounter tracks the balls left in the magazine and mirrors the count
// onto the sensor: the last release forces the empty reading and a reload
// forces the loaded reading.
type BallCounter struct {
	sensor        Sensor
	capacity      int
	emptyReading  int
	loadedReading int
	logger        Logger

	// feed serialises a count change with the sensor write it implies.
	// It is separate from mu because SetValue notifies magazine listeners
	// synchronously and they may call Count.
	feed sync.Mutex

	mu    sync.Mutex
	balls int
}

// Release removes one ball. Releasing from an empty magazine is logged as
// ErrBallCountUnderflow and still decrements, so the count can go negative.
func (c *BallCounter) Release() (remaining int, underflow bool) {
	c.feed.Lock()
	defer c.feed.Unlock()

	c.mu.Lock()
	underflow = c.balls < 1
	c.balls--
	remaining = c.balls
	c.mu.Unlock()

	if underflow {
		c.logger.Error("ball released from empty magazine", "error", ErrBallCountUnderflow, "balls", remaining)
	} else {
		c.logger.Info("a ball flies", "balls", remaining)
	}

	if remaining < 1 {
		c.logger.Warn("magazine out of balls")
		c.sensor.SetValue(c.emptyReading)
	}
	return remaining, underflow
}

// Reload refills the magazine to capacity and forces the loaded reading.
func (c *BallCounter) Reload() int {
	c.feed.Lock()
	defer c.feed.Unlock()

	c.mu.Lock()
	c.balls = c.capacity
	c.mu.Unlock()

	c.sensor.SetValue(c.loadedReading)
	return c.capacity
}

// Count returns the current ball count.
func (c *BallCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balls
}
