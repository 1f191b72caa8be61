package stage

import (
	"sync"
	"time"
)

// State is the lifecycle state the supervisor observes through a Tether.
type State int

const (
	StateBootstrap State = iota
	StateWorking
	StateIdle
	StateStandBy
	StateTeardown
	StateBlocked
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateBootstrap:
		return "bootstrap"
	case StateWorking:
		return "working"
	case StateIdle:
		return "idle"
	case StateStandBy:
		return "standby"
	case StateTeardown:
		return "teardown"
	case StateBlocked:
		return "blocked"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a stage's metrics exposed per stage.
type Snapshot struct {
	OpsCount    uint64
	LatestBlock uint64
	CurrentSlot uint64
	ChainTip    uint64
	State       State
	LastError   error
	UpdatedAt   time.Time
}

// Tether is the supervisor's handle to a running stage: current state, last
// reported metrics, and a channel that closes when the stage's goroutine
// exits (the fatal error, if any, is then returned by Err).
type Tether struct {
	Name string

	mu       sync.RWMutex
	snapshot Snapshot

	done     chan struct{}
	fatalErr error

	shutdown chan struct{}
	once     sync.Once
}

// NewTether creates a Tether in StateBootstrap.
func NewTether(name string) *Tether {
	return &Tether{
		Name:     name,
		snapshot: Snapshot{State: StateBootstrap, UpdatedAt: time.Now()},
		done:     make(chan struct{}),
		shutdown: make(chan struct{}),
	}
}

// SetState updates the stage's reported state.
func (t *Tether) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.State = s
	t.snapshot.UpdatedAt = time.Now()
}

// ReportOps increments the ops counter by delta and refreshes UpdatedAt.
func (t *Tether) ReportOps(delta uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.OpsCount += delta
	t.snapshot.UpdatedAt = time.Now()
}

// ReportProgress updates the block/slot gauges.
func (t *Tether) ReportProgress(block, slot uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.LatestBlock = block
	t.snapshot.CurrentSlot = slot
	t.snapshot.UpdatedAt = time.Now()
}

// ReportChainTip updates the chain_tip gauge (source stage only).
func (t *Tether) ReportChainTip(slot uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.ChainTip = slot
	t.snapshot.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the current metrics/state.
func (t *Tether) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Shutdown signals the stage to begin an orderly teardown. It is safe to
// call more than once.
func (t *Tether) Shutdown() {
	t.once.Do(func() { close(t.shutdown) })
}

// ShutdownRequested returns a channel that's closed once Shutdown is called.
func (t *Tether) ShutdownRequested() <-chan struct{} { return t.shutdown }

// markDone records the stage's terminal error (nil on clean exit) and
// closes Done.
func (t *Tether) markDone(err error) {
	t.mu.Lock()
	t.fatalErr = err
	t.snapshot.State = StateDropped
	t.snapshot.LastError = err
	t.snapshot.UpdatedAt = time.Now()
	t.mu.Unlock()
	close(t.done)
}

// Done returns a channel that's closed once the stage's goroutine exits.
func (t *Tether) Done() <-chan struct{} { return t.done }

// Err returns the stage's terminal error, valid only after Done is closed.
func (t *Tether) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fatalErr
}
