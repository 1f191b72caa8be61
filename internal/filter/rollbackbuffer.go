package filter

import (
	"context"
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/rollback"
	"github.com/txpipe/chainstream/internal/stage"
)

// RollbackBuffer wraps rollback.Buffer as a stage.Worker: it delays
// emission of Apply events until min_depth successors exist, and turns
// shallow upstream Undos into silence and deep ones into a Reset.
type RollbackBuffer struct {
	In  stage.InputPort
	Out stage.OutputPort

	buf *rollback.Buffer
}

// NewRollbackBuffer builds a RollbackBuffer filter with the given min_depth.
func NewRollbackBuffer(in stage.InputPort, out stage.OutputPort, minDepth int) *RollbackBuffer {
	return &RollbackBuffer{In: in, Out: out, buf: rollback.New(minDepth)}
}

func (r *RollbackBuffer) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (r *RollbackBuffer) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-r.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (r *RollbackBuffer) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	var toEmit []model.ChainEvent
	switch ev.Kind {
	case model.EventApply:
		released, err := r.buf.Apply(ev.Point, ev.Record)
		if err != nil {
			return stage.Panic(fmt.Errorf("filter/rollbackbuffer: %w", err))
		}
		toEmit = released
	case model.EventUndo:
		emit, _ := r.buf.Undo(ev.Point)
		toEmit = emit
	case model.EventReset:
		r.buf.Reset(ev.Point)
		toEmit = []model.ChainEvent{ev}
	}

	for _, out := range toEmit {
		if werr := sendOrClosed(ctx, r.Out, stage.Message{Event: out}); werr != nil {
			return werr
		}
	}
	return nil
}

func (r *RollbackBuffer) Teardown(context.Context) {}
