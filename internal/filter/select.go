package filter

import (
	"context"
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/predicate"
	"github.com/txpipe/chainstream/internal/stage"
)

// Select is the select (predicate) filter: it evaluates a configured
// predicate against every Apply/Undo event's record and forwards, drops,
// or panics depending on the outcome. Reset events always pass through,
// since they carry no record to evaluate.
type Select struct {
	In  stage.InputPort
	Out stage.OutputPort

	Predicate     *predicate.Predicate
	SkipUncertain bool
}

func (s *Select) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (s *Select) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-s.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (s *Select) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	if ev.Kind == model.EventReset {
		return sendOrClosed(ctx, s.Out, msg)
	}

	outcome := predicate.EvaluateRecord(s.Predicate, ev.Record)
	switch outcome {
	case predicate.Positive:
		return sendOrClosed(ctx, s.Out, msg)
	case predicate.Negative:
		return nil
	case predicate.Uncertain:
		if s.SkipUncertain {
			return nil
		}
		return stage.Panic(fmt.Errorf("filter/select: uncertain match on %s record at %s", ev.Record.Kind, ev.Point))
	default:
		return stage.Panic(fmt.Errorf("filter/select: unknown outcome %v", outcome))
	}
}

func (s *Select) Teardown(context.Context) {}
