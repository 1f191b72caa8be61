package filter

import (
	"context"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// SplitTx re-emits one Apply event per transaction inside a ParsedBlock
// Apply event, each carrying a ParsedTx record and the block's point. It is
// split-block's post-parse counterpart: where split-block fans out raw CBOR
// tx bodies before decoding, split-tx fans out already-decoded
// transactions, letting downstream select/map filters operate uniformly on
// ParsedTx regardless of whether split-block ran earlier in the chain.
type SplitTx struct {
	In  stage.InputPort
	Out stage.OutputPort
}

func (s *SplitTx) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (s *SplitTx) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
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

func (s *SplitTx) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	if ev.Kind != model.EventApply || ev.Record.Kind != model.KindParsedBlock {
		return sendOrClosed(ctx, s.Out, msg)
	}

	for _, tx := range ev.Record.Block.Txs {
		txEvent := model.Apply(ev.Point, model.NewParsedTxRecord(tx))
		if werr := sendOrClosed(ctx, s.Out, stage.Message{Event: txEvent}); werr != nil {
			return werr
		}
	}
	return nil
}

func (s *SplitTx) Teardown(context.Context) {}
