package filter

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// rawBlockShape is the [era_tag, body] envelope with the body decoded only
// as far as its top-level fields; the transaction list is the second body
// field in both the Byron and the Shelley-family layouts.
type rawBlockShape struct {
	_      struct{} `cbor:",toarray"`
	EraTag uint64
	Body   []cbor.RawMessage
}

// SplitBlock re-emits one Apply event per transaction inside a CborBlock
// Apply event, each carrying a CborTx record and the block's point.
// Non-Apply or non-CborBlock events pass through unchanged.
type SplitBlock struct {
	In  stage.InputPort
	Out stage.OutputPort
}

func (s *SplitBlock) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (s *SplitBlock) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
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

func (s *SplitBlock) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	if ev.Kind != model.EventApply || ev.Record.Kind != model.KindCborBlock {
		return sendOrClosed(ctx, s.Out, msg)
	}

	var shape rawBlockShape
	if err := cbor.Unmarshal(ev.Record.RawBlock, &shape); err != nil {
		return stage.Panic(fmt.Errorf("filter/splitblock: %w", err))
	}
	if len(shape.Body) < 2 {
		return stage.Panic(fmt.Errorf("filter/splitblock: block body has %d fields, want at least 2", len(shape.Body)))
	}
	var txs []cbor.RawMessage
	if err := cbor.Unmarshal(shape.Body[1], &txs); err != nil {
		return stage.Panic(fmt.Errorf("filter/splitblock: %w", err))
	}

	for _, rawTx := range txs {
		txEvent := model.Apply(ev.Point, model.NewCborTxRecord([]byte(rawTx)))
		if werr := sendOrClosed(ctx, s.Out, stage.Message{Event: txEvent}); werr != nil {
			return werr
		}
	}
	return nil
}

func (s *SplitBlock) Teardown(context.Context) {}
