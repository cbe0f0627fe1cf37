package turret

import (
	"context"
	"sync"
)

// busyGuard is a busy flag with a completion signal. acquire waits for the
// current holder to release, then retries; released waiters re-contend and
// exactly one wins.
type busyGuard struct {
	mu   sync.Mutex
	busy bool
	done chan struct{}
}

// acquire marks the guard busy, waiting for the holder to finish if needed.
// onWait runs each time the caller has to wait. Only the wait honours ctx;
// once acquired the caller must release.
func (g *busyGuard) acquire(ctx context.Context, onWait func()) error {
	for {
		g.mu.Lock()
		if !g.busy {
			g.busy = true
			g.done = make(chan struct{})
			g.mu.Unlock()
			return nil
		}
		done := g.done
		g.mu.Unlock()

		if onWait != nil {
			onWait()
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// release clears the flag and wakes every waiter.
func (g *busyGuard) release() {
	g.mu.Lock()
	g.busy = false
	close(g.done)
	g.mu.Unlock()
}

func (g *busyGuard) isBusy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
