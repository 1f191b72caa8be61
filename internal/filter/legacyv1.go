package filter

import (
	"context"
	"fmt"

	"github.com/txpipe/chainstream/internal/mapper"
	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// LegacyV1 rewrites ParsedTx Apply events into LegacyV1Event records via
// internal/mapper. It expects to run after split-tx (or
// split-block+parse), since the legacy schema is inherently
// per-transaction; events whose record is not a ParsedTx (including
// ParsedBlock) are forwarded unchanged.
type LegacyV1 struct {
	In  stage.InputPort
	Out stage.OutputPort
}

func (l *LegacyV1) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (l *LegacyV1) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-l.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (l *LegacyV1) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	switch ev.Kind {
	case model.EventApply, model.EventUndo:
		if ev.Record.Kind != model.KindParsedTx {
			return sendOrClosed(ctx, l.Out, msg)
		}
		legacy, err := mapper.ToLegacyV1Tx(ev.Record.Tx, ev.Point.Slot, ev.Point.Hash, nil)
		if err != nil {
			return stage.Panic(fmt.Errorf("filter/legacyv1: %w", err))
		}
		ev.Record = model.NewLegacyV1Record(legacy)
	}

	return sendOrClosed(ctx, l.Out, stage.Message{Event: ev})
}

func (l *LegacyV1) Teardown(context.Context) {}
