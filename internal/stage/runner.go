package stage

import (
	"context"
	"fmt"
	"time"
)

// TeardownTimeout bounds how long Teardown is allowed to run during a
// supervisor-initiated shutdown before the stage's goroutine is abandoned.
const TeardownTimeout = 10 * time.Second

// Run drives one stage's worker through its lifecycle: Bootstrap once, then
// a cooperative Schedule/Execute loop with retry/restart/panic handling,
// until the context is canceled, the tether's shutdown is requested, or
// the worker reports Done/a fatal error. It always calls
// Teardown once on exit (in addition to the Teardown that precedes each
// Restart-driven re-bootstrap), and always calls tether.markDone before
// returning.
//
// Run is meant to be launched with `go stage.Run(...)`; the caller observes
// progress and termination through tether.
func Run(ctx context.Context, tether *Tether, w Worker, policy RetryPolicy) {
	var fatal error
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), TeardownTimeout)
		defer cancel()
		tether.SetState(StateTeardown)
		w.Teardown(teardownCtx)
		tether.markDone(fatal)
	}()

	tether.SetState(StateBootstrap)
	if werr := w.Bootstrap(ctx); werr != nil {
		fatal = runBootstrapFailure(ctx, tether, w, policy, werr)
		if fatal != nil {
			return
		}
	}

	fatal = runLoop(ctx, tether, w, policy)
}

// runBootstrapFailure retries Bootstrap itself for Retry/Restart-classified
// errors (a stage that can't even start is, functionally, in the same boat
// as one whose worker needs rebuilding), escalating anything else to fatal.
func runBootstrapFailure(ctx context.Context, tether *Tether, w Worker, policy RetryPolicy, first *WorkerError) error {
	werr := first
	state := newRetryState(policy)
	for {
		switch werr.Kind {
		case KindRetry, KindRestart:
			delay, allowed := state.next()
			if !allowed {
				return fmt.Errorf("stage %q: bootstrap exhausted retries: %w", tether.Name, werr)
			}
			tether.SetState(StateBlocked)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tether.ShutdownRequested():
				return nil
			case <-time.After(delay):
			}
			tether.SetState(StateBootstrap)
			next := w.Bootstrap(ctx)
			if next == nil {
				return nil
			}
			werr = next
		default:
			return fmt.Errorf("stage %q: bootstrap failed fatally: %w", tether.Name, werr)
		}
	}
}

func runLoop(ctx context.Context, tether *Tether, w Worker, policy RetryPolicy) error {
	state := newRetryState(policy)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tether.ShutdownRequested():
			return nil
		default:
		}

		tether.SetState(StateWorking)
		schedule, werr := w.Schedule(ctx)
		if werr != nil {
			if outcome, done, err := handleError(ctx, tether, w, state, werr); done {
				return err
			} else if outcome {
				continue
			}
			return nil
		}

		switch schedule.Decision {
		case ScheduleDone:
			return nil
		case ScheduleIdle:
			tether.SetState(StateIdle)
			select {
			case <-ctx.Done():
				return nil
			case <-tether.ShutdownRequested():
				return nil
			case <-time.After(policy.BackoffUnit):
			}
			continue
		case ScheduleUnit:
			tether.SetState(StateWorking)
			if werr := w.Execute(ctx, schedule.Unit); werr != nil {
				if outcome, done, err := handleError(ctx, tether, w, state, werr); done {
					return err
				} else if outcome {
					continue
				}
				return nil
			}
			tether.ReportOps(1)
			state.reset()
		}
	}
}

// handleError classifies a WorkerError and reacts accordingly.
// Return values: (retryable, fatalDone, fatalErr). retryable=true means the
// loop should continue immediately (the caller already waited out the
// backoff, or the failure needs no delay); fatalDone=true means the loop
// must return, with fatalErr as the stage's terminal error (nil on a clean
// exit such as a dropped channel peer).
func handleError(ctx context.Context, tether *Tether, w Worker, state *retryState, werr *WorkerError) (retryable, fatalDone bool, fatalErr error) {
	switch werr.Kind {
	case KindRetry:
		delay, allowed := state.next()
		if !allowed {
			return false, true, fmt.Errorf("stage %q: exhausted retries: %w", tether.Name, werr)
		}
		tether.SetState(StateBlocked)
		select {
		case <-ctx.Done():
			return false, true, nil
		case <-tether.ShutdownRequested():
			return false, true, nil
		case <-time.After(delay):
		}
		return true, false, nil

	case KindRestart:
		delay, allowed := state.next()
		if !allowed {
			return false, true, fmt.Errorf("stage %q: exhausted restarts: %w", tether.Name, werr)
		}
		tether.SetState(StateStandBy)
		teardownCtx, cancel := context.WithTimeout(ctx, TeardownTimeout)
		w.Teardown(teardownCtx)
		cancel()
		select {
		case <-ctx.Done():
			return false, true, nil
		case <-tether.ShutdownRequested():
			return false, true, nil
		case <-time.After(delay):
		}
		if berr := w.Bootstrap(ctx); berr != nil {
			return false, true, fmt.Errorf("stage %q: re-bootstrap failed: %w", tether.Name, berr)
		}
		return true, false, nil

	case KindRecv, KindSend:
		// The channel peer is gone; this stage's job is done. Not an error.
		return false, true, nil

	case KindPanic:
		fallthrough
	default:
		return false, true, fmt.Errorf("stage %q: fatal: %w", tether.Name, werr)
	}
}
