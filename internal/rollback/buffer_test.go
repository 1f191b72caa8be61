package rollback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
)

func pt(slot uint64, tag byte) model.Point {
	return model.MustPoint(slot, []byte{tag})
}

func rec(tag byte) model.Record {
	return model.NewCborBlockRecord([]byte{tag})
}

func applyAll(t *testing.T, b *Buffer, points ...model.Point) []model.ChainEvent {
	t.Helper()
	var out []model.ChainEvent
	for _, p := range points {
		released, err := b.Apply(p, rec(p.Hash[0]))
		require.NoError(t, err)
		out = append(out, released...)
	}
	return out
}

// S1 — forward then shallow undo absorbed by buffer.
func TestScenarioS1ShallowUndoAbsorbed(t *testing.T) {
	b := New(2)
	a1, a2, a3, a4 := pt(1, 1), pt(2, 2), pt(3, 3), pt(4, 4)

	var out []model.ChainEvent
	out = append(out, applyAll(t, b, a1, a2, a3, a4)...)

	emitted, handled := b.Undo(a4)
	assert.True(t, handled)
	assert.Empty(t, emitted)

	a4p, a5p := pt(4, 0x14), pt(5, 0x15)
	out = append(out, applyAll(t, b, a4p, a5p)...)

	require.Len(t, out, 3)
	assert.Equal(t, model.EventApply, out[0].Kind)
	assert.Equal(t, uint64(1), out[0].Point.Slot)
	assert.Equal(t, uint64(2), out[1].Point.Slot)
	assert.Equal(t, uint64(3), out[2].Point.Slot)
}

// S2 — deep undo beyond buffer produces a reset.
func TestScenarioS2DeepUndoProducesReset(t *testing.T) {
	b := New(2)
	a1, a2, a3, a4, a5 := pt(1, 1), pt(2, 2), pt(3, 3), pt(4, 4), pt(5, 5)

	out := applyAll(t, b, a1, a2, a3, a4, a5)
	require.Len(t, out, 3)

	emitted, handled := b.Undo(a1)
	assert.True(t, handled)
	require.Len(t, emitted, 1)
	assert.Equal(t, model.EventReset, emitted[0].Kind)
	assert.True(t, emitted[0].Point.Equal(a1))
	assert.Equal(t, 0, b.Len())
}

// Invariant 4 — after N applies with no undos, exactly max(0, N-min_depth)
// have been forwarded.
func TestInvariantDepthForwarding(t *testing.T) {
	for _, minDepth := range []int{0, 1, 2, 5} {
		for n := 0; n <= 12; n++ {
			b := New(minDepth)
			points := make([]model.Point, n)
			for i := range points {
				points[i] = pt(uint64(i), byte(i))
			}
			out := applyAll(t, b, points...)

			want := n - minDepth
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, len(out), "minDepth=%d n=%d", minDepth, n)
			assert.Equal(t, n-len(out), b.Len())
		}
	}
}

func TestApplyRejectsOutOfOrderSlot(t *testing.T) {
	b := New(1)
	_, err := b.Apply(pt(10, 1), rec(1))
	require.NoError(t, err)
	_, err = b.Apply(pt(5, 2), rec(2))
	require.Error(t, err)
	var logicErr *ErrLogicBug
	assert.ErrorAs(t, err, &logicErr)
}

func TestResetClearsBuffer(t *testing.T) {
	b := New(5)
	applyAll(t, b, pt(1, 1), pt(2, 2))
	require.Equal(t, 2, b.Len())
	b.Reset(pt(1, 1))
	assert.Equal(t, 0, b.Len())
}
