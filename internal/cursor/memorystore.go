package cursor

import (
	"context"
	"sync"
)

// MemoryStore is the `cursor: memory` backend: no persistence across
// process restarts, useful for tests and ephemeral/replay runs.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemoryStore) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *MemoryStore) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data = cp
	return nil
}
