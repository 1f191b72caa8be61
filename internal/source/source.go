// Package source implements the pipeline's source stage: negotiate a chain
// intersection, then stream Apply/Undo/Reset events onto the stage's output
// port.
package source

import (
	"context"
	"fmt"

	"github.com/txpipe/chainstream/internal/chain"
	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// Worker drives a chain.Transport through intersection negotiation and then
// forwards every SyncEvent as a stage.Message on Out. It implements
// stage.Worker.
type Worker struct {
	Transport chain.Transport
	Intersect chain.IntersectConfig
	Out       stage.OutputPort
	Tether    *stage.Tether

	negotiated bool
}

// New builds a source Worker. out must already be connected to the next
// stage's InputPort via stage.NewPort.
func New(t chain.Transport, cfg chain.IntersectConfig, out stage.OutputPort, tether *stage.Tether) *Worker {
	return &Worker{Transport: t, Intersect: cfg, Out: out, Tether: tether}
}

func (w *Worker) Bootstrap(ctx context.Context) *stage.WorkerError {
	if err := w.Transport.Connect(ctx); err != nil {
		return stage.Retry(fmt.Errorf("source: connect: %w", err))
	}

	point, err := chain.Negotiate(ctx, w.Transport, w.Intersect)
	if err != nil {
		if err == chain.ErrIntersectNotFound {
			return stage.Panic(fmt.Errorf("source: intersect not found: %w", err))
		}
		return stage.Retry(fmt.Errorf("source: intersect: %w", err))
	}

	tip, err := w.Transport.Tip(ctx)
	if err == nil && !tip.IsOrigin() {
		w.Tether.ReportChainTip(tip.Slot)
	}

	w.negotiated = true
	_ = point // intersection point is implicit in the transport's cursor from here on
	return nil
}

func (w *Worker) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	if !w.negotiated {
		return stage.WorkSchedule{}, stage.Panic(fmt.Errorf("source: scheduled before intersection was negotiated"))
	}
	ev, err := w.Transport.NextSyncEvent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return stage.Done(), nil
		}
		return stage.WorkSchedule{}, stage.Retry(fmt.Errorf("source: next sync event: %w", err))
	}
	return stage.Unit(ev), nil
}

func (w *Worker) Execute(ctx context.Context, unit any) *stage.WorkerError {
	ev := unit.(chain.SyncEvent)

	var event model.ChainEvent
	switch ev.Kind {
	case chain.SyncApply:
		event = model.Apply(ev.Point, ev.Record)
	case chain.SyncUndo:
		event = model.Undo(ev.Point, ev.Record)
	case chain.SyncReset:
		event = model.Reset(ev.Point)
	default:
		return stage.Panic(fmt.Errorf("source: unknown sync event kind %d", ev.Kind))
	}

	select {
	case w.Out <- stage.Message{Event: event}:
	case <-ctx.Done():
		return stage.RecvClosed(ctx.Err())
	}

	if !ev.Point.IsOrigin() {
		w.Tether.ReportProgress(0, ev.Point.Slot)
	}
	if tip, err := w.Transport.Tip(ctx); err == nil && !tip.IsOrigin() {
		w.Tether.ReportChainTip(tip.Slot)
	}
	return nil
}

func (w *Worker) Teardown(context.Context) {
	_ = w.Transport.Close()
}
