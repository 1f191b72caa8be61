package filter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/predicate"
	"github.com/txpipe/chainstream/internal/stage"
)

func pt(slot uint64, hash string) model.Point { return model.MustPoint(slot, []byte(hash)) }

func encodeRawBlock(t *testing.T, txs []cborTx) []byte {
	t.Helper()
	body, err := cbor.Marshal(cborBlock{Txs: txs})
	require.NoError(t, err)
	raw, err := cbor.Marshal(eraEnvelope{EraTag: 6, Body: body}) // conway
	require.NoError(t, err)
	return raw
}

func encodeRawByronBlock(t *testing.T, txs []byronTx) []byte {
	t.Helper()
	body, err := cbor.Marshal(byronBlock{Txs: txs})
	require.NoError(t, err)
	raw, err := cbor.Marshal(eraEnvelope{EraTag: 0, Body: body}) // byron
	require.NoError(t, err)
	return raw
}

func TestParseDecodesCborBlock(t *testing.T) {
	raw := encodeRawBlock(t, []cborTx{{Fee: 170000}})
	in, out := stage.NewPort(1)
	outCh, outIn := stage.NewPort(1)
	p := &Parse{In: out, Out: outCh}

	in <- stage.Message{Event: model.Apply(pt(10, "h"), model.NewCborBlockRecord(raw))}
	ctx := context.Background()
	schedule, werr := p.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, p.Execute(ctx, schedule.Unit))

	msg := <-outIn
	require.Equal(t, model.KindParsedBlock, msg.Event.Record.Kind)
	assert.Len(t, msg.Event.Record.Block.Txs, 1)
	assert.EqualValues(t, 170000, msg.Event.Record.Block.Txs[0].Fee)
	assert.Equal(t, model.EraConway, msg.Event.Record.Block.Txs[0].Era)
}

func TestParseDecodesByronBlockWithItsOwnShape(t *testing.T) {
	addr := byronAddress{Root: []byte("root-hash"), Type: 0}
	raw := encodeRawByronBlock(t, []byronTx{{
		Outputs: []byronTxOut{{Address: addr, Lovelace: 42}},
	}})
	in, out := stage.NewPort(1)
	outCh, outIn := stage.NewPort(1)
	p := &Parse{In: out, Out: outCh}

	in <- stage.Message{Event: model.Apply(pt(10, "h"), model.NewCborBlockRecord(raw))}
	ctx := context.Background()
	schedule, werr := p.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, p.Execute(ctx, schedule.Unit))

	msg := <-outIn
	require.Equal(t, model.KindParsedBlock, msg.Event.Record.Kind)
	require.Len(t, msg.Event.Record.Block.Txs, 1)
	tx := msg.Event.Record.Block.Txs[0]
	assert.Equal(t, model.EraByron, tx.Era)
	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, []byte("root-hash"), tx.Outputs[0].Address)
	assert.EqualValues(t, 42, tx.Outputs[0].Lovelace)
}

func TestParseRejectsUnknownEraTag(t *testing.T) {
	body, err := cbor.Marshal(cborBlock{})
	require.NoError(t, err)
	raw, err := cbor.Marshal(eraEnvelope{EraTag: 99, Body: body})
	require.NoError(t, err)

	in, out := stage.NewPort(1)
	outCh, _ := stage.NewPort(1)
	p := &Parse{In: out, Out: outCh}

	in <- stage.Message{Event: model.Apply(pt(10, "h"), model.NewCborBlockRecord(raw))}
	ctx := context.Background()
	schedule, werr := p.Schedule(ctx)
	require.Nil(t, werr)
	werr = p.Execute(ctx, schedule.Unit)
	require.NotNil(t, werr)
}

func TestSplitBlockFansOutPerTx(t *testing.T) {
	raw := encodeRawBlock(t, []cborTx{{Fee: 1}, {Fee: 2}})
	in, out := stage.NewPort(1)
	outCh, outIn := stage.NewPort(4)
	s := &SplitBlock{In: out, Out: outCh}

	in <- stage.Message{Event: model.Apply(pt(10, "h"), model.NewCborBlockRecord(raw))}
	ctx := context.Background()
	schedule, werr := s.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, s.Execute(ctx, schedule.Unit))

	var count int
	for {
		select {
		case msg := <-outIn:
			count++
			assert.Equal(t, model.KindCborTx, msg.Event.Record.Kind)
			assert.True(t, msg.Event.Point.Equal(pt(10, "h")))
		default:
			assert.Equal(t, 2, count)
			return
		}
	}
}

func TestSelectForwardsOnPositive(t *testing.T) {
	in, out := stage.NewPort(1)
	outCh, outIn := stage.NewPort(1)
	pred := predicate.MatchPattern(predicate.Pattern{
		Kind:  predicate.PatternOutput,
		Output: &predicate.OutputPattern{},
	})
	s := &Select{In: out, Out: outCh, Predicate: pred}

	tx := &model.ParsedTx{Outputs: []model.TxOutput{{Lovelace: 5}}}
	in <- stage.Message{Event: model.Apply(pt(1, "h"), model.NewParsedTxRecord(tx))}
	ctx := context.Background()
	schedule, werr := s.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, s.Execute(ctx, schedule.Unit))

	select {
	case <-outIn:
	default:
		t.Fatal("expected event forwarded on positive match")
	}
}

func TestSelectPanicsOnUncertainByDefault(t *testing.T) {
	in, out := stage.NewPort(1)
	outCh, _ := stage.NewPort(1)
	pred := predicate.MatchPattern(predicate.Pattern{
		Kind:  predicate.PatternInput,
		Input: &predicate.InputPattern{},
	})
	s := &Select{In: out, Out: outCh}
	s.Predicate = pred

	tx := &model.ParsedTx{Inputs: []model.TxInput{{TxHash: []byte{1}}}} // AsOutput nil -> Uncertain
	in <- stage.Message{Event: model.Apply(pt(1, "h"), model.NewParsedTxRecord(tx))}
	ctx := context.Background()
	schedule, werr := s.Schedule(ctx)
	require.Nil(t, werr)
	werr = s.Execute(ctx, schedule.Unit)
	require.NotNil(t, werr)
	assert.Equal(t, stage.KindPanic, werr.Kind)
}

func TestMapJSONProjectsRecord(t *testing.T) {
	in, out := stage.NewPort(1)
	outCh, outIn := stage.NewPort(1)
	m := &MapJSON{In: out, Out: outCh}

	in <- stage.Message{Event: model.Apply(pt(1, "h"), model.NewCborBlockRecord([]byte{0x01, 0x02}))}
	ctx := context.Background()
	schedule, werr := m.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, m.Execute(ctx, schedule.Unit))

	msg := <-outIn
	require.Equal(t, model.KindGenericJSON, msg.Event.Record.Kind)
	var asMap map[string]string
	require.NoError(t, json.Unmarshal(msg.Event.Record.JSON, &asMap))
	assert.Equal(t, "0102", asMap["hex"])
}

func TestPluginRewritesRecordViaScript(t *testing.T) {
	in, out := stage.NewPort(1)
	outCh, outIn := stage.NewPort(1)
	p := &Plugin{In: out, Out: outCh, Script: `function apply(event) { return {tagged: true, point: event.point}; }`}
	ctx := context.Background()
	require.Nil(t, p.Bootstrap(ctx))

	in <- stage.Message{Event: model.Apply(pt(1, "h"), model.NewCborBlockRecord([]byte{0x01}))}
	schedule, werr := p.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, p.Execute(ctx, schedule.Unit))

	msg := <-outIn
	require.Equal(t, model.KindGenericJSON, msg.Event.Record.Kind)
	var asMap map[string]any
	require.NoError(t, json.Unmarshal(msg.Event.Record.JSON, &asMap))
	assert.Equal(t, true, asMap["tagged"])
}

func TestRollbackBufferFilterForwardsDrainedApplies(t *testing.T) {
	in, out := stage.NewPort(4)
	outCh, outIn := stage.NewPort(4)
	r := NewRollbackBuffer(out, outCh, 1)
	ctx := context.Background()

	in <- stage.Message{Event: model.Apply(pt(1, "a"), model.Record{})}
	schedule, werr := r.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, r.Execute(ctx, schedule.Unit))
	select {
	case <-outIn:
		t.Fatal("should not release before min_depth reached")
	case <-time.After(10 * time.Millisecond):
	}

	in <- stage.Message{Event: model.Apply(pt(2, "b"), model.Record{})}
	schedule, werr = r.Schedule(ctx)
	require.Nil(t, werr)
	require.Nil(t, r.Execute(ctx, schedule.Unit))

	msg := <-outIn
	assert.True(t, msg.Event.Point.Equal(pt(1, "a")))
}
