package source

import (
	"context"
	"sync"

	"github.com/txpipe/chainstream/internal/chain"
	"github.com/txpipe/chainstream/internal/model"
)

// MockTransport is a deterministic, in-memory chain.Transport used by tests
// and the standalone demo entrypoint. It plays back a fixed script of
// SyncEvents once a known point has been intersected.
type MockTransport struct {
	mu      sync.Mutex
	known   map[string]model.Point
	tip     model.Point
	script  []chain.SyncEvent
	cursor  int
	started bool
}

// NewMockTransport builds a MockTransport recognizing known (for
// intersection) and replaying script in order once intersected.
func NewMockTransport(known []model.Point, tip model.Point, script []chain.SyncEvent) *MockTransport {
	m := &MockTransport{known: make(map[string]model.Point), tip: tip, script: script}
	for _, p := range known {
		m.known[p.Key()] = p
	}
	return m
}

func (m *MockTransport) Connect(context.Context) error { return nil }

func (m *MockTransport) Tip(context.Context) (model.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tip, nil
}

func (m *MockTransport) FindIntersect(_ context.Context, candidates []model.Point) (model.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candidates {
		if p, ok := m.known[c.Key()]; ok {
			m.started = true
			m.cursor = m.scriptIndexAfter(p)
			return p, nil
		}
	}
	return model.Point{}, chain.ErrIntersectNotFound
}

func (m *MockTransport) IntersectOrigin(context.Context) (model.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.cursor = 0
	return model.Origin(), nil
}

func (m *MockTransport) IntersectTip(context.Context) (model.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.cursor = len(m.script)
	return m.tip, nil
}

// scriptIndexAfter finds where in the script playback should resume: right
// after the Apply/Undo/Reset event carrying point p. Callers hold m.mu.
func (m *MockTransport) scriptIndexAfter(p model.Point) int {
	for i, ev := range m.script {
		if ev.Point.Equal(p) {
			return i + 1
		}
	}
	return 0
}

func (m *MockTransport) NextSyncEvent(ctx context.Context) (chain.SyncEvent, error) {
	m.mu.Lock()
	if m.cursor < len(m.script) {
		ev := m.script[m.cursor]
		m.cursor++
		m.mu.Unlock()
		return ev, nil
	}
	m.mu.Unlock()

	<-ctx.Done()
	return chain.SyncEvent{}, ctx.Err()
}

func (m *MockTransport) Close() error { return nil }
