package cursor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/txpipe/chainstream/internal/breadcrumbs"
	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// TrackPort carries points as they flow past another stage, to be folded
// into the in-memory breadcrumb set.
type TrackPort chan model.Point

// Cursor is the cursor stage's Worker: it has two logical input sources
// (track and a flush timer), but since Worker exposes only one Schedule
// hook, Schedule multiplexes between them itself rather than exposing two
// separate Worker hooks. A sync.Mutex guards the breadcrumbs so the final
// Teardown flush (from the supervisor's own goroutine) can't race a
// Schedule/Execute iteration still in flight.
type Cursor struct {
	Track        TrackPort
	FlushEvery   time.Duration
	Store        Store
	MaxBreadcrumbs int

	mu    sync.Mutex
	crumb *breadcrumbs.Breadcrumbs

	flushTicker *time.Ticker
}

type cursorUnit struct {
	point      model.Point
	isFlush    bool
}

func (c *Cursor) Bootstrap(ctx context.Context) *stage.WorkerError {
	data, err := c.Store.Load(ctx)
	if err != nil {
		return stage.Retry(fmt.Errorf("cursor: load: %w", err))
	}

	c.mu.Lock()
	if len(data) == 0 {
		c.crumb = breadcrumbs.New(c.MaxBreadcrumbs)
	} else {
		loaded, err := breadcrumbs.Load(c.MaxBreadcrumbs, data)
		if err != nil {
			c.mu.Unlock()
			return stage.Panic(fmt.Errorf("cursor: parse persisted breadcrumbs: %w", err))
		}
		c.crumb = loaded
	}
	c.mu.Unlock()

	interval := c.FlushEvery
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c.flushTicker = time.NewTicker(interval)
	return nil
}

func (c *Cursor) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case p, ok := <-c.Track:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(cursorUnit{point: p}), nil
	case <-c.flushTicker.C:
		return stage.Unit(cursorUnit{isFlush: true}), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (c *Cursor) Execute(ctx context.Context, unit any) *stage.WorkerError {
	u := unit.(cursorUnit)
	if u.isFlush {
		return c.flush(ctx)
	}
	c.mu.Lock()
	c.crumb.Track(u.point)
	c.mu.Unlock()
	return nil
}

func (c *Cursor) flush(ctx context.Context) *stage.WorkerError {
	c.mu.Lock()
	data, err := c.crumb.Save()
	c.mu.Unlock()
	if err != nil {
		return stage.Panic(fmt.Errorf("cursor: serialize breadcrumbs: %w", err))
	}
	if err := c.Store.Save(ctx, data); err != nil {
		return stage.Retry(fmt.Errorf("cursor: persist breadcrumbs: %w", err))
	}
	return nil
}

// Teardown performs a final flush so a clean shutdown never loses the
// most recent breadcrumbs; the cursor stage is shut down last, with a
// final flush.
func (c *Cursor) Teardown(ctx context.Context) {
	_ = c.flush(ctx)
	if c.flushTicker != nil {
		c.flushTicker.Stop()
	}
}

// Snapshot returns the current in-memory breadcrumbs, most-recent-first,
// for use by the source stage's intersection negotiation at startup.
func (c *Cursor) Snapshot() []model.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crumb == nil {
		return nil
	}
	return c.crumb.MostRecentFirst()
}
