package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
)

// mockTransport recognizes a fixed set of points, as if it were a node
// holding a particular chain history. FindIntersect returns the first
// candidate (in caller order, i.e. most-recent-first) that it recognizes.
type mockTransport struct {
	known map[string]model.Point
	tip   model.Point
}

func newMockTransport(known []model.Point, tip model.Point) *mockTransport {
	m := &mockTransport{known: make(map[string]model.Point), tip: tip}
	for _, p := range known {
		m.known[p.Key()] = p
	}
	return m
}

func (m *mockTransport) Connect(context.Context) error { return nil }

func (m *mockTransport) Tip(context.Context) (model.Point, error) { return m.tip, nil }

func (m *mockTransport) FindIntersect(_ context.Context, candidates []model.Point) (model.Point, error) {
	for _, c := range candidates {
		if p, ok := m.known[c.Key()]; ok {
			return p, nil
		}
	}
	return model.Point{}, ErrIntersectNotFound
}

func (m *mockTransport) IntersectOrigin(context.Context) (model.Point, error) {
	return model.Origin(), nil
}

func (m *mockTransport) IntersectTip(context.Context) (model.Point, error) { return m.tip, nil }

func (m *mockTransport) NextSyncEvent(context.Context) (SyncEvent, error) {
	return SyncEvent{}, nil
}

func (m *mockTransport) Close() error { return nil }

func pt(slot uint64, hash string) model.Point {
	return model.MustPoint(slot, []byte(hash))
}

// TestScenarioS5IntersectionViaBreadcrumbs covers: persisted breadcrumbs
// [(100,h100),(80,h80),(40,h40)]; upstream has rolled back past 100 and 80
// but still has 40, so the source must resume from slot 40.
func TestScenarioS5IntersectionViaBreadcrumbs(t *testing.T) {
	h40 := pt(40, "h40")
	transport := newMockTransport([]model.Point{model.Origin(), h40}, pt(500, "tip"))

	crumbs := []model.Point{pt(100, "h100"), pt(80, "h80"), h40}
	cfg := IntersectConfig{Strategy: IntersectBreadcrumbs, Breadcrumbs: crumbs, Fallback: IntersectOrigin}

	got, err := Negotiate(context.Background(), transport, cfg)
	require.NoError(t, err)
	assert.True(t, got.Equal(h40))
}

func TestNegotiateBreadcrumbsPrefersDeepest(t *testing.T) {
	h100 := pt(100, "h100")
	h80 := pt(80, "h80")
	transport := newMockTransport([]model.Point{h100, h80}, pt(500, "tip"))

	crumbs := []model.Point{h100, h80}
	got, err := Negotiate(context.Background(), transport, IntersectConfig{Strategy: IntersectBreadcrumbs, Breadcrumbs: crumbs})
	require.NoError(t, err)
	assert.True(t, got.Equal(h100))
}

func TestNegotiateBreadcrumbsFallsBackWhenEmpty(t *testing.T) {
	transport := newMockTransport(nil, pt(500, "tip"))
	got, err := Negotiate(context.Background(), transport, IntersectConfig{Strategy: IntersectBreadcrumbs, Fallback: IntersectTip})
	require.NoError(t, err)
	assert.True(t, got.Equal(pt(500, "tip")))
}

func TestNegotiateOrigin(t *testing.T) {
	transport := newMockTransport(nil, pt(500, "tip"))
	got, err := Negotiate(context.Background(), transport, IntersectConfig{Strategy: IntersectOrigin})
	require.NoError(t, err)
	assert.True(t, got.IsOrigin())
}

func TestNegotiateNotFound(t *testing.T) {
	transport := newMockTransport([]model.Point{pt(1, "x")}, pt(500, "tip"))
	_, err := Negotiate(context.Background(), transport, IntersectConfig{Strategy: IntersectPoint, Point: pt(999, "nope")})
	assert.ErrorIs(t, err, ErrIntersectNotFound)
}
