// Package filter implements the pipeline's record-transforming stages:
// parse, split-block, split-tx, rollback-buffer, select, map-to-json,
// legacy-v1, and plugin. Each is a stage.Worker that consumes one InputPort
// and produces zero or more events on an OutputPort.
package filter

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// eraEnvelope is the outer [era_tag, body] wrapper every raw block arrives
// in, mirroring the hard-fork-combinator wire format cardano-node's
// node-to-client protocol uses to tag each era's block before the
// era-specific body: the era is read off this tag, never guessed from
// which body shape happens to decode.
type eraEnvelope struct {
	_      struct{} `cbor:",toarray"`
	EraTag uint64
	Body   cbor.RawMessage
}

// eraTags maps the real Cardano hard-fork era indices (Byron is era 0, the
// network's original era, through Conway at 6) to model.Era.
var eraTags = map[uint64]model.Era{
	0: model.EraByron,
	1: model.EraShelley,
	2: model.EraAllegra,
	3: model.EraMary,
	4: model.EraAlonzo,
	5: model.EraBabbage,
	6: model.EraConway,
}

// cborBlock is the Shelley-family block body shape: Shelley through Conway
// share one CDDL-derived array layout, widened over time with the
// optional trailing fields below.
type cborBlock struct {
	_         struct{} `cbor:",toarray"`
	Header    cbor.RawMessage
	Txs       []cborTx
	Witnesses cbor.RawMessage `cbor:",omitempty"`
	Valid     []bool          `cbor:",omitempty"`
	Aux       cbor.RawMessage `cbor:",omitempty"`
}

type cborTx struct {
	_        struct{} `cbor:",toarray"`
	Inputs   []cborTxIn
	Outputs  []cborTxOut
	Fee      uint64
	Mint     map[string]map[string]int64 `cbor:",omitempty"`
	Metadata map[uint64]cbor.RawMessage  `cbor:",omitempty"`
}

type cborTxIn struct {
	_     struct{} `cbor:",toarray"`
	Hash  []byte
	Index uint32
}

type cborTxOut struct {
	_        struct{} `cbor:",toarray"`
	Address  []byte
	Lovelace uint64
	Assets   map[string]map[string]int64 `cbor:",omitempty"`
}

// byronBlock is Byron's block body shape, structurally distinct from the
// Shelley-family one above: no witnesses/auxiliary-data/validity-flag
// fields (those arrived with Shelley), and transactions carry no explicit
// fee or native-asset mint (multi-asset support also arrived with Mary).
type byronBlock struct {
	_      struct{} `cbor:",toarray"`
	Header cbor.RawMessage
	Txs    []byronTx
}

type byronTx struct {
	_       struct{} `cbor:",toarray"`
	Inputs  []cborTxIn
	Outputs []byronTxOut
}

// byronTxOut models Byron's address encoding, which wraps a root hash in a
// CBOR-tagged (root, attributes, type) structure rather than storing a flat
// address byte string directly as Shelley-family addresses do.
type byronTxOut struct {
	_        struct{} `cbor:",toarray"`
	Address  byronAddress
	Lovelace uint64
}

type byronAddress struct {
	_          struct{} `cbor:",toarray"`
	Root       []byte
	Attributes map[uint64]cbor.RawMessage `cbor:",omitempty"`
	Type       uint64
}

// DecodeBlock reads the era tag off raw's envelope and decodes the body
// with that era's shape. An unrecognized era tag or a body that doesn't
// match its own era's shape is a Panic: a body the tagged era's decoder
// rejects is a hard parse failure, not a skippable record, and never falls
// through to another era's shape.
func DecodeBlock(raw []byte) (*model.ParsedBlock, error) {
	var env eraEnvelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("filter: decode era envelope: %w", err)
	}
	era, ok := eraTags[env.EraTag]
	if !ok {
		return nil, fmt.Errorf("filter: unknown era tag %d", env.EraTag)
	}

	if era == model.EraByron {
		var cb byronBlock
		if err := cbor.Unmarshal(env.Body, &cb); err != nil {
			return nil, fmt.Errorf("filter: decode byron block body: %w", err)
		}
		return blockFromByronCBOR(cb), nil
	}

	var cb cborBlock
	if err := cbor.Unmarshal(env.Body, &cb); err != nil {
		return nil, fmt.Errorf("filter: decode %s block body: %w", era, err)
	}
	return blockFromCBOR(era, cb), nil
}

func blockFromCBOR(era model.Era, cb cborBlock) *model.ParsedBlock {
	txs := make([]*model.ParsedTx, len(cb.Txs))
	for i, t := range cb.Txs {
		txs[i] = txFromCBOR(era, t)
	}
	return &model.ParsedBlock{Era: era, Txs: txs}
}

func txFromCBOR(era model.Era, t cborTx) *model.ParsedTx {
	inputs := make([]model.TxInput, len(t.Inputs))
	for i, in := range t.Inputs {
		inputs[i] = model.TxInput{TxHash: in.Hash, Index: in.Index}
	}
	outputs := make([]model.TxOutput, len(t.Outputs))
	for i, out := range t.Outputs {
		outputs[i] = model.TxOutput{Address: out.Address, Lovelace: out.Lovelace, Assets: multiAssetsFrom(out.Assets)}
	}
	var metadata []model.Metadatum
	for label, raw := range t.Metadata {
		metadata = append(metadata, metadatumFrom(label, raw))
	}
	return &model.ParsedTx{
		Era:      era,
		Fee:      t.Fee,
		Inputs:   inputs,
		Outputs:  outputs,
		Mint:     multiAssetsFrom(t.Mint),
		Metadata: metadata,
		Valid:    true,
	}
}

// blockFromByronCBOR maps a decoded Byron block body. Byron transactions
// carry no explicit fee field (it's implicit in input/output value, which
// this mapping does not resolve) and no native-asset mint.
func blockFromByronCBOR(cb byronBlock) *model.ParsedBlock {
	txs := make([]*model.ParsedTx, len(cb.Txs))
	for i, t := range cb.Txs {
		txs[i] = txFromByronCBOR(t)
	}
	return &model.ParsedBlock{Era: model.EraByron, Txs: txs}
}

func txFromByronCBOR(t byronTx) *model.ParsedTx {
	inputs := make([]model.TxInput, len(t.Inputs))
	for i, in := range t.Inputs {
		inputs[i] = model.TxInput{TxHash: in.Hash, Index: in.Index}
	}
	outputs := make([]model.TxOutput, len(t.Outputs))
	for i, out := range t.Outputs {
		outputs[i] = model.TxOutput{Address: out.Address.Root, Lovelace: out.Lovelace}
	}
	return &model.ParsedTx{
		Era:     model.EraByron,
		Inputs:  inputs,
		Outputs: outputs,
		Valid:   true,
	}
}

func multiAssetsFrom(raw map[string]map[string]int64) []model.MultiAsset {
	if len(raw) == 0 {
		return nil
	}
	out := make([]model.MultiAsset, 0, len(raw))
	for policyHex, names := range raw {
		ma := model.MultiAsset{Policy: []byte(policyHex)}
		for nameHex, amount := range names {
			ma.Assets = append(ma.Assets, model.AssetUnit{Name: []byte(nameHex), Amount: amount})
		}
		out = append(out, ma)
	}
	return out
}

func metadatumFrom(label uint64, raw cbor.RawMessage) model.Metadatum {
	var asText string
	if err := cbor.Unmarshal(raw, &asText); err == nil {
		return model.Metadatum{Label: label, HasText: true, Text: asText}
	}
	var asInt int64
	_ = cbor.Unmarshal(raw, &asInt)
	return model.Metadatum{Label: label, Int: asInt}
}

// Parse is the stage.Worker for the parse filter: it consumes CborBlock
// records, decodes them, and emits ParsedBlock records at the same point.
// Non-cbor-block records pass through unchanged.
type Parse struct {
	In  stage.InputPort
	Out stage.OutputPort
}

func (p *Parse) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (p *Parse) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-p.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (p *Parse) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	if ev.Kind == model.EventApply && ev.Record.Kind == model.KindCborBlock {
		block, err := DecodeBlock(ev.Record.RawBlock)
		if err != nil {
			return stage.Panic(fmt.Errorf("filter/parse: %w", err))
		}
		block.Slot = ev.Point.Slot
		block.Hash = ev.Point.Hash
		ev.Record = model.NewParsedBlockRecord(block)
	}

	return sendOrClosed(ctx, p.Out, stage.Message{Event: ev})
}

func (p *Parse) Teardown(context.Context) {}

// sendOrClosed is the shared send-with-cancellation helper every filter
// stage uses to forward a message downstream.
func sendOrClosed(ctx context.Context, out stage.OutputPort, msg stage.Message) *stage.WorkerError {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return stage.SendClosed(ctx.Err())
	}
}
