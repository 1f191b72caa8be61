// Package stage implements the generic host for pipeline stages: a typed
// worker with bootstrap/schedule/execute/teardown hooks, bounded channel
// ports, a retry/backoff policy, and a supervisory tether.
package stage

import "context"

// ErrorKind classifies a worker failure so the runner knows how to react.
type ErrorKind int

const (
	// KindRetry is a transient failure; back off and retry the same unit.
	KindRetry ErrorKind = iota
	// KindRestart tears the worker down and re-bootstraps it.
	KindRestart
	// KindPanic is fatal; the stage dies.
	KindPanic
	// KindRecv means the upstream channel peer is gone.
	KindRecv
	// KindSend means the downstream channel peer is gone.
	KindSend
)

func (k ErrorKind) String() string {
	switch k {
	case KindRetry:
		return "retry"
	case KindRestart:
		return "restart"
	case KindPanic:
		return "panic"
	case KindRecv:
		return "recv"
	case KindSend:
		return "send"
	default:
		return "unknown"
	}
}

// WorkerError wraps a classified failure from any of the four worker hooks.
type WorkerError struct {
	Kind ErrorKind
	Err  error
}

func (e *WorkerError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *WorkerError) Unwrap() error { return e.Err }

// Retry wraps err as a transient, retry-with-backoff failure.
func Retry(err error) *WorkerError { return &WorkerError{Kind: KindRetry, Err: err} }

// Restart wraps err as a failure that should tear down and rebuild the worker.
func Restart(err error) *WorkerError { return &WorkerError{Kind: KindRestart, Err: err} }

// Panic wraps err as a fatal, unrecoverable failure.
func Panic(err error) *WorkerError { return &WorkerError{Kind: KindPanic, Err: err} }

// RecvClosed wraps err (possibly nil) as an upstream-channel-gone condition.
func RecvClosed(err error) *WorkerError { return &WorkerError{Kind: KindRecv, Err: err} }

// SendClosed wraps err (possibly nil) as a downstream-channel-gone condition.
func SendClosed(err error) *WorkerError { return &WorkerError{Kind: KindSend, Err: err} }

// ScheduleDecision tags what Schedule returned: a concrete unit of work, or
// a sentinel meaning "nothing to do right now" / "this stage is finished".
type ScheduleDecision int

const (
	// ScheduleUnit means Unit is populated and should be executed.
	ScheduleUnit ScheduleDecision = iota
	// ScheduleIdle means there is no work right now; the runner should
	// yield briefly and call Schedule again.
	ScheduleIdle
	// ScheduleDone means the stage has no more work, ever; the runner
	// should tear the worker down and exit cleanly.
	ScheduleDone
)

// WorkSchedule is the return value of Worker.Schedule.
type WorkSchedule struct {
	Decision ScheduleDecision
	Unit     any
}

// Unit builds a WorkSchedule carrying a concrete unit of work.
func Unit(u any) WorkSchedule { return WorkSchedule{Decision: ScheduleUnit, Unit: u} }

// Idle builds a WorkSchedule meaning "nothing to do right now".
func Idle() WorkSchedule { return WorkSchedule{Decision: ScheduleIdle} }

// Done builds a WorkSchedule meaning "this stage is finished".
func Done() WorkSchedule { return WorkSchedule{Decision: ScheduleDone} }

// Worker is the typed host for one pipeline stage's logic. Stage
// implementations (source, filters, sink, cursor) each provide a Worker.
type Worker interface {
	// Bootstrap performs one-time setup (opening sockets, building
	// clients) before the schedule/execute loop begins.
	Bootstrap(ctx context.Context) *WorkerError
	// Schedule yields the next unit of work, or Idle/Done.
	Schedule(ctx context.Context) (WorkSchedule, *WorkerError)
	// Execute processes one unit of work.
	Execute(ctx context.Context, unit any) *WorkerError
	// Teardown releases resources. It is called on both clean exit and
	// fatal failure, and must not block indefinitely.
	Teardown(ctx context.Context)
}
