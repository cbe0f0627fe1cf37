package turret

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
)

// Step is one action in a fire sequence.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// buildSequence returns the steps for firing count balls:
//
//	wait-for-magazine,
//	{aim, spin-up, release} × count,
//	with a wait-for-magazine between consecutive shots.
//
// The list has 1 + 3·count + (count−1) steps.
func (t *Turret) buildSequence(count int, sess *Session) []Step {
	steps := make([]Step, 0, 4*count)
	steps = append(steps, t.waitStep("wait-for-magazine"))

	for i := 1; i <= count; i++ {
		steps = append(steps,
			Step{Name: fmt.Sprintf("aim-%d", i), Run: t.aimStep(sess.RequestID)},
			Step{Name: fmt.Sprintf("spin-up-%d", i), Run: t.spinUpStep()},
			Step{Name: fmt.Sprintf("release-%d", i), Run: t.releaseStep(sess)},
		)
		if i < count {
			steps = append(steps, t.waitStep(fmt.Sprintf("wait-for-magazine-%d", i+1)))
		}
	}
	return steps
}

func (t *Turret) waitStep(name string) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		return t.waiter.WaitUntilLoaded(ctx, t.cfg.ReloadTimeout)
	}}
}

// aimStep moves both axes to random targets concurrently and returns when
// both have finished.
func (t *Turret) aimStep(requestID string) func(context.Context) error {
	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, axis := range []*Axis{t.turn, t.pitch} {
			target := axis.RandomTarget()
			g.Go(func() error {
				return axis.MoveTo(gctx, target, requestID)
			})
		}
		return g.Wait()
	}
}

func (t *Turret) spinUpStep() func(context.Context) error {
	return func(context.Context) error {
		t.motor.SpinUp()
		return nil
	}
}

// releaseStep lets one ball fly. The in-flight delay either side of the
// release stands in for the feed mechanism.
func (t *Turret) releaseStep(sess *Session) func(context.Context) error {
	return func(context.Context) error {
		time.Sleep(t.flightDelay())

		remaining, underflow := t.counter.Release()
		sess.Fired++
		t.publish(Event{
			Type:      EventShotReleased,
			RequestID: sess.RequestID,
			Shot:      &ShotInfo{BallsRemaining: remaining, Underflow: underflow},
		})

		time.Sleep(t.flightDelay())
		return nil
	}
}

func (t *Turret) flightDelay() time.Duration {
	lo, hi := t.cfg.ShotFlightMin, t.cfg.ShotFlightMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo) //nolint:gosec // timing jitter
}

// runStep executes one step, converting a panic into ErrStepPanic.
func runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStepPanic, step.Name, r)
		}
	}()
	return step.Run(ctx)
}
