// Package rollback implements the rollback buffer: it delays emission of
// Apply events until a configured min-depth of successors exists, absorbing
// most upstream rollbacks before they reach the sink.
package rollback

import (
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
)

// entry pairs a point with the record that was applied at it.
type entry struct {
	point  model.Point
	record model.Record
}

// Buffer holds pending Apply events until min_depth successors exist. It is
// not safe for concurrent use; the rollback-buffer filter stage serializes
// access to it from a single goroutine, as all stages do.
type Buffer struct {
	minDepth int
	entries  []entry
	byKey    map[string]int // point key -> index into entries, for O(1) lookup
}

// New creates a Buffer with the given min_depth (number of successor Apply
// events required before a buffered Apply is released).
func New(minDepth int) *Buffer {
	if minDepth < 0 {
		minDepth = 0
	}
	return &Buffer{minDepth: minDepth, byKey: make(map[string]int)}
}

// Len returns the number of points currently held.
func (b *Buffer) Len() int { return len(b.entries) }

// ErrLogicBug is wrapped into panics signaling an internal invariant
// violation; such failures are classified Panic by the
// stage runtime, never silently tolerated.
type ErrLogicBug struct{ Detail string }

func (e *ErrLogicBug) Error() string { return "rollback: logic bug: " + e.Detail }

// Apply inserts (p, r) at the tail and drains every entry whose distance to
// the new tail is >= min_depth, returning the drained entries as Apply
// events in order (oldest first).
func (b *Buffer) Apply(p model.Point, r model.Record) ([]model.ChainEvent, error) {
	if len(b.entries) > 0 {
		last := b.entries[len(b.entries)-1].point
		if !last.IsOrigin() && !p.IsOrigin() && p.Slot < last.Slot {
			return nil, &ErrLogicBug{Detail: fmt.Sprintf("apply at slot %d is older than buffered tail slot %d", p.Slot, last.Slot)}
		}
	}

	b.entries = append(b.entries, entry{point: p, record: r})
	b.byKey[p.Key()] = len(b.entries) - 1

	return b.drain(), nil
}

// drain releases every entry from the head whose distance to the tail is
// >= min_depth.
func (b *Buffer) drain() []model.ChainEvent {
	var released []model.ChainEvent
	tail := len(b.entries) - 1
	for len(b.entries) > 0 {
		depth := tail - 0 // distance of head (index 0) to the tail
		if depth < b.minDepth {
			break
		}
		head := b.entries[0]
		released = append(released, model.Apply(head.point, head.record))
		b.entries = b.entries[1:]
		delete(b.byKey, head.point.Key())
		b.reindex()
		tail = len(b.entries) - 1
	}
	return released
}

func (b *Buffer) reindex() {
	for i, e := range b.entries {
		b.byKey[e.point.Key()] = i
	}
}

// Undo processes an upstream Undo(p, _). If p is held in the buffer, the
// buffer is truncated tail-wise so the last remaining entry's slot is <=
// p.slot, and the removed entries' mappings are dropped; no event is
// forwarded downstream (the buffered Applies being discarded were never
// released, so there is nothing to undo from the downstream's perspective).
// If p is older than everything held (or the buffer is empty), the upstream
// rollback is deeper than this stage can absorb: emit Reset(p) and clear
// the buffer.
func (b *Buffer) Undo(p model.Point) (emit []model.ChainEvent, handled bool) {
	idx, ok := b.byKey[p.Key()]
	if !ok {
		b.clear()
		return []model.ChainEvent{model.Reset(p)}, true
	}

	// p itself is being undone, so drop it along with everything deeper.
	for i := idx; i < len(b.entries); i++ {
		delete(b.byKey, b.entries[i].point.Key())
	}
	b.entries = b.entries[:idx]
	return nil, true
}

func (b *Buffer) clear() {
	b.entries = nil
	b.byKey = make(map[string]int)
}

// Reset drops the entire buffer; the Reset event is simply forwarded by the
// caller, this method only clears local state.
func (b *Buffer) Reset(model.Point) {
	b.clear()
}
