// Package chain implements the upstream-agnostic parts of the chain
// follower: the Transport interface concrete sources implement, and the
// pure intersection-negotiation algorithm.
package chain

import (
	"context"
	"errors"

	"github.com/txpipe/chainstream/internal/model"
)

// ErrIntersectNotFound is returned when the upstream cannot find any of the
// proposed points on its chain. Callers classify this as fatal.
var ErrIntersectNotFound = errors.New("chain: intersect not found")

// SyncEventKind tags what NextSyncEvent returned.
type SyncEventKind int

const (
	SyncApply SyncEventKind = iota
	SyncUndo
	SyncReset
)

// SyncEvent is what a Transport yields while streaming, already shaped like
// a ChainEvent but kept separate from model.ChainEvent so transports don't
// need to import the predicate/filter-facing Record variants they can't
// produce (they only ever produce CborBlock/CborTx records).
type SyncEvent struct {
	Kind   SyncEventKind
	Point  model.Point
	Record model.Record // zero value for Reset; best-effort for Undo
}

// Transport is the capability set a concrete upstream connection exposes.
// Concrete wire protocols (node-to-node, node-to-client, gRPC follow-tip,
// WebSocket, cloud object listing) are out of this package's scope; only
// this interface and the negotiation logic that drives it live here.
type Transport interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error
	// Tip returns the upstream's current chain tip.
	Tip(ctx context.Context) (model.Point, error)
	// FindIntersect proposes candidate points, most-recent-first, and
	// returns the deepest one the upstream recognizes. It returns
	// ErrIntersectNotFound if none match.
	FindIntersect(ctx context.Context, candidates []model.Point) (model.Point, error)
	// IntersectOrigin intersects at the chain's genesis point.
	IntersectOrigin(ctx context.Context) (model.Point, error)
	// IntersectTip intersects at the upstream's current tip.
	IntersectTip(ctx context.Context) (model.Point, error)
	// NextSyncEvent blocks until the next Apply/Undo/Reset is available
	// from the already-negotiated intersection point.
	NextSyncEvent(ctx context.Context) (SyncEvent, error)
	// Close releases the underlying connection.
	Close() error
}
