package supervisor

import (
	"context"

	"github.com/txpipe/chainstream/internal/cursor"
	"github.com/txpipe/chainstream/internal/stage"
)

// tap sits between the last filter and the sink: it forwards every message
// unchanged, best-effort feeds the point to the cursor's track port
// ("the cursor never blocks the pipeline"), and reports whether the
// configured finalize condition has been reached.
type tap struct {
	In    stage.InputPort
	Out   stage.OutputPort
	Track cursor.TrackPort

	finalize   FinalizeCondition
	onFinalize func()
}

func (t *tap) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (t *tap) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-t.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (t *tap) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)

	if msg.Event.IsPointBearing() {
		select {
		case t.Track <- msg.Event.Point:
		default:
			// Cursor is backed up; dropping a breadcrumb tick is preferable
			// to stalling the pipeline.
		}
	}

	if werr := sendOrClosed(ctx, t.Out, msg); werr != nil {
		return werr
	}

	if t.finalize.Active() && t.finalize.Reached(msg.Event) && t.onFinalize != nil {
		t.onFinalize()
	}
	return nil
}

func (t *tap) Teardown(context.Context) {}

func sendOrClosed(ctx context.Context, out stage.OutputPort, msg stage.Message) *stage.WorkerError {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return stage.SendClosed(ctx.Err())
	}
}
