package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/chain"
	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

func pt(slot uint64, hash string) model.Point {
	return model.MustPoint(slot, []byte(hash))
}

// TestScenarioS5ResumesFromDeepestKnownBreadcrumb covers: breadcrumbs
// [(100,h100),(80,h80),(40,h40)] persisted, but the upstream has rolled
// back past 100 and 80; the source must resume from 40, and then stream
// whatever the transport has from there.
func TestScenarioS5ResumesFromDeepestKnownBreadcrumb(t *testing.T) {
	h40 := pt(40, "h40")
	h41 := pt(41, "h41")

	script := []chain.SyncEvent{
		{Kind: chain.SyncApply, Point: h41, Record: model.NewCborBlockRecord([]byte("block41"))},
	}
	transport := NewMockTransport([]model.Point{model.Origin(), h40}, h41, script)

	out, in := stage.NewPort(4)
	tether := stage.NewTether("source")
	cfg := chain.IntersectConfig{
		Strategy:    chain.IntersectBreadcrumbs,
		Breadcrumbs: []model.Point{pt(100, "h100"), pt(80, "h80"), h40},
		Fallback:    chain.IntersectOrigin,
	}
	w := New(transport, cfg, out, tether)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Nil(t, w.Bootstrap(ctx))
	assert.EqualValues(t, 41, tether.Snapshot().ChainTip)

	schedule, werr := w.Schedule(ctx)
	require.Nil(t, werr)
	werr = w.Execute(ctx, schedule.Unit)
	require.Nil(t, werr)

	select {
	case msg := <-in:
		assert.Equal(t, model.EventApply, msg.Event.Kind)
		assert.True(t, msg.Event.Point.Equal(h41))
	default:
		t.Fatal("expected an event on the output port")
	}
}

func TestBootstrapFatalOnIntersectNotFound(t *testing.T) {
	transport := NewMockTransport(nil, model.Origin(), nil)
	out, _ := stage.NewPort(1)
	tether := stage.NewTether("source")
	cfg := chain.IntersectConfig{Strategy: chain.IntersectPoint, Point: pt(999, "nope")}
	w := New(transport, cfg, out, tether)

	werr := w.Bootstrap(context.Background())
	require.NotNil(t, werr)
	assert.Equal(t, stage.KindPanic, werr.Kind)
}

func TestExecuteForwardsResetEvent(t *testing.T) {
	origin := model.Origin()
	script := []chain.SyncEvent{{Kind: chain.SyncReset, Point: origin}}
	transport := NewMockTransport([]model.Point{origin}, origin, script)

	out, in := stage.NewPort(1)
	tether := stage.NewTether("source")
	w := New(transport, chain.IntersectConfig{Strategy: chain.IntersectOrigin}, out, tether)

	ctx := context.Background()
	require.Nil(t, w.Bootstrap(ctx))
	schedule, werr := w.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, w.Execute(ctx, schedule.Unit))

	msg := <-in
	assert.Equal(t, model.EventReset, msg.Event.Kind)
}
