package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
)

func pt(slot uint64, hash string) model.Point { return model.MustPoint(slot, []byte(hash)) }

// TestScenarioS6PersistRestoreRoundTrip covers: track two points, flush,
// then reload from the same store and confirm both survive in
// most-recent-first order.
func TestScenarioS6PersistRestoreRoundTrip(t *testing.T) {
	store := &MemoryStore{}
	c := &Cursor{Track: make(TrackPort, 4), FlushEvery: time.Hour, Store: store, MaxBreadcrumbs: 20}
	ctx := context.Background()
	require.Nil(t, c.Bootstrap(ctx))

	c.Track <- pt(150, "ccdd")
	c.Track <- pt(200, "aabb")
	for i := 0; i < 2; i++ {
		schedule, werr := c.Schedule(ctx)
		require.Nil(t, werr)
		require.Nil(t, c.Execute(ctx, schedule.Unit))
	}
	c.Teardown(ctx)

	c2 := &Cursor{Track: make(TrackPort), FlushEvery: time.Hour, Store: store, MaxBreadcrumbs: 20}
	require.Nil(t, c2.Bootstrap(ctx))

	got := c2.Snapshot()
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(pt(200, "aabb")))
	assert.True(t, got[1].Equal(pt(150, "ccdd")))
}

func TestBootstrapStartsEmptyWhenStoreEmpty(t *testing.T) {
	c := &Cursor{Track: make(TrackPort), FlushEvery: time.Hour, Store: &MemoryStore{}, MaxBreadcrumbs: 20}
	require.Nil(t, c.Bootstrap(context.Background()))
	assert.Empty(t, c.Snapshot())
}

func TestFlushOnTickerPersists(t *testing.T) {
	store := &MemoryStore{}
	c := &Cursor{Track: make(TrackPort, 1), FlushEvery: time.Millisecond, Store: store, MaxBreadcrumbs: 20}
	ctx := context.Background()
	require.Nil(t, c.Bootstrap(ctx))
	defer c.flushTicker.Stop()

	c.Track <- pt(1, "a")
	schedule, werr := c.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, c.Execute(ctx, schedule.Unit))

	time.Sleep(2 * time.Millisecond)
	schedule, werr = c.Schedule(ctx)
	require.Nil(t, werr)
	require.True(t, schedule.Unit.(cursorUnit).isFlush)
	require.Nil(t, c.Execute(ctx, schedule.Unit))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
