package chain

import (
	"context"
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
)

// IntersectStrategy selects how Negotiate picks its fallback candidates
// when no breadcrumbs are available.
type IntersectStrategy int

const (
	// IntersectOrigin starts from the chain's genesis point.
	IntersectOrigin IntersectStrategy = iota
	// IntersectTip starts from the upstream's current tip.
	IntersectTip
	// IntersectPoint starts from a single configured point.
	IntersectPoint
	// IntersectBreadcrumbs starts from persisted breadcrumbs, falling back
	// to one of the above if none are available.
	IntersectBreadcrumbs
)

// IntersectConfig is the static configuration a source stage is given for
// where to resume.
type IntersectConfig struct {
	Strategy  IntersectStrategy
	Point     model.Point // used when Strategy == IntersectPoint
	Fallback  IntersectStrategy
	Breadcrumbs []model.Point // most-recent-first, as produced by breadcrumbs.Breadcrumbs.MostRecentFirst
}

// Negotiate runs the intersection protocol: if breadcrumbs are configured
// and non-empty, propose them most-recent-first and take the deepest the
// upstream still recognizes; otherwise fall back to Origin, Tip, or a
// single configured Point. A breadcrumbs strategy with no breadcrumbs
// falls back to cfg.Fallback.
//
// It never retries internally — that's the enclosing stage Worker's job,
// driven by the worker's retry policy. Negotiate returns
// ErrIntersectNotFound verbatim so callers can classify it as fatal, not
// retryable: a rollback deeper than the configured breadcrumb history is
// an operator-visible misconfiguration, not a transient fault.
func Negotiate(ctx context.Context, t Transport, cfg IntersectConfig) (model.Point, error) {
	switch cfg.Strategy {
	case IntersectOrigin:
		return t.IntersectOrigin(ctx)

	case IntersectTip:
		return t.IntersectTip(ctx)

	case IntersectPoint:
		p, err := t.FindIntersect(ctx, []model.Point{cfg.Point})
		if err != nil {
			return model.Point{}, err
		}
		return p, nil

	case IntersectBreadcrumbs:
		if len(cfg.Breadcrumbs) == 0 {
			return Negotiate(ctx, t, IntersectConfig{Strategy: cfg.Fallback, Point: cfg.Point})
		}
		p, err := t.FindIntersect(ctx, cfg.Breadcrumbs)
		if err != nil {
			return model.Point{}, err
		}
		return p, nil

	default:
		return model.Point{}, fmt.Errorf("chain: unknown intersect strategy %d", cfg.Strategy)
	}
}
