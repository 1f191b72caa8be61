package stage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedWorker executes a fixed number of units then reports Done,
// optionally failing the first attempt at a given unit index with a given
// ErrorKind to exercise the runner's retry/restart handling.
type scriptedWorker struct {
	totalUnits     int
	failUnitOnce   int // -1 disables
	failKind       ErrorKind
	executed       int32
	bootstrapCalls int32
	teardownCalls  int32
	failedOnce     bool
}

func (w *scriptedWorker) Bootstrap(context.Context) *WorkerError {
	atomic.AddInt32(&w.bootstrapCalls, 1)
	return nil
}

func (w *scriptedWorker) Schedule(context.Context) (WorkSchedule, *WorkerError) {
	n := int(atomic.LoadInt32(&w.executed))
	if n >= w.totalUnits {
		return Done(), nil
	}
	return Unit(n), nil
}

func (w *scriptedWorker) Execute(_ context.Context, unit any) *WorkerError {
	idx := unit.(int)
	if idx == w.failUnitOnce && !w.failedOnce {
		w.failedOnce = true
		return &WorkerError{Kind: w.failKind, Err: errors.New("scripted failure")}
	}
	atomic.AddInt32(&w.executed, 1)
	return nil
}

func (w *scriptedWorker) Teardown(context.Context) {
	atomic.AddInt32(&w.teardownCalls, 1)
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, BackoffUnit: time.Millisecond, BackoffFactor: 1, MaxBackoff: 5 * time.Millisecond, Memory: time.Second}
}

func TestRunCompletesCleanlyOnDone(t *testing.T) {
	w := &scriptedWorker{totalUnits: 5, failUnitOnce: -1}
	tether := NewTether("t")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	Run(ctx, tether, w, fastPolicy())

	<-tether.Done()
	assert.NoError(t, tether.Err())
	assert.EqualValues(t, 5, w.executed)
	assert.EqualValues(t, 1, w.teardownCalls)
	assert.Equal(t, StateDropped, tether.Snapshot().State)
}

func TestRunRetriesTransientFailure(t *testing.T) {
	w := &scriptedWorker{totalUnits: 3, failUnitOnce: 1, failKind: KindRetry}
	tether := NewTether("t")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	Run(ctx, tether, w, fastPolicy())

	<-tether.Done()
	require.NoError(t, tether.Err())
	assert.EqualValues(t, 3, w.executed)
}

func TestRunRestartsWorkerOnRestartError(t *testing.T) {
	w := &scriptedWorker{totalUnits: 3, failUnitOnce: 1, failKind: KindRestart}
	tether := NewTether("t")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	Run(ctx, tether, w, fastPolicy())

	<-tether.Done()
	require.NoError(t, tether.Err())
	assert.EqualValues(t, 3, w.executed)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&w.bootstrapCalls), int32(2))
}

func TestRunFatalOnPanicError(t *testing.T) {
	w := &scriptedWorker{totalUnits: 3, failUnitOnce: 0, failKind: KindPanic}
	tether := NewTether("t")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	Run(ctx, tether, w, fastPolicy())

	<-tether.Done()
	assert.Error(t, tether.Err())
	assert.EqualValues(t, 0, w.executed)
}

func TestRunExitsCleanlyOnShutdown(t *testing.T) {
	w := &scriptedWorker{totalUnits: 1 << 30, failUnitOnce: -1}
	tether := NewTether("t")
	ctx := context.Background()

	go Run(ctx, tether, w, fastPolicy())
	time.Sleep(5 * time.Millisecond)
	tether.Shutdown()

	select {
	case <-tether.Done():
		assert.NoError(t, tether.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not shut down in time")
	}
}
