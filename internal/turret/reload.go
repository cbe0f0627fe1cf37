package turret

import (
	"context"
	"fmt"
	"time"
)

// ReloadWaiter blocks a sequence while the magazine is empty.
type ReloadWaiter struct {
	magazine *Magazine
	motor    Motor
	logger   Logger
}

// WaitUntilLoaded returns nil at once if the magazine is loaded. Otherwise it
// spins the motor down (without waiting for it) and races the next
// loaded-changed notification against deadline:
//
//   - loaded-changed(true) first: nil
//   - loaded-changed(false) first: ErrReloadRace
//   - deadline first: ErrReloadTimeout
//
// ctx cancellation returns ctx.Err(). On every path the timer is stopped and
// the subscription removed.
func (w *ReloadWaiter) WaitUntilLoaded(ctx context.Context, deadline time.Duration) error {
	if w.magazine.Loaded() {
		w.logger.Debug("magazine loaded")
		return nil
	}

	w.logger.Warn("magazine empty, waiting for reload", "deadline", deadline)
	go w.motor.SpinDown()

	changed := make(chan bool, 1)
	cancel := w.magazine.Once(func(loaded bool) { changed <- loaded })
	defer cancel()

	// A reload may have landed between the first check and the subscription.
	if w.magazine.Loaded() {
		return nil
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case loaded := <-changed:
		if !loaded {
			return ErrReloadRace
		}
		w.logger.Info("magazine reloaded while waiting")
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrReloadTimeout, deadline)
	case <-ctx.Done():
		return ctx.Err()
	}
}
