// Package mapper implements the legacy-v1 schema mapping: projecting a
// canonical ParsedTx/ParsedBlock into the shape an oura-v1-compatible
// consumer expects. One representative mapping is shared by all
// Shelley-family eras (Shelley through Conway); Byron gets a minimal
// context-only projection, and any other era value is an error.
package mapper

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
)

// ToLegacyV1Tx projects a single transaction into the legacy v1 event
// shape. blockSlot/blockHash come from the enclosing Apply
// event's point; txIdx is the transaction's position within the block, or
// nil when the tx arrived standalone (e.g. after split-tx ran on an
// already-split stream).
func ToLegacyV1Tx(tx *model.ParsedTx, blockSlot uint64, blockHash []byte, txIdx *int) (*model.LegacyV1Event, error) {
	switch tx.Era {
	case model.EraShelley, model.EraAllegra, model.EraMary, model.EraAlonzo, model.EraBabbage, model.EraConway:
		return mapShelleyFamilyTx(tx, blockSlot, blockHash, txIdx)
	case model.EraByron:
		return mapByronTx(tx, blockSlot, blockHash, txIdx)
	default:
		return nil, fmt.Errorf("mapper: unknown era %v", tx.Era)
	}
}

// legacyTxPayload is the legacy v1 schema's Shelley/Babbage-family
// transaction shape: fee, inputs, outputs, mint, and metadata, each in
// that schema's own field names.
type legacyTxPayload struct {
	Fee      uint64              `json:"fee"`
	Inputs   []legacyTxInput     `json:"inputs"`
	Outputs  []legacyTxOutput    `json:"outputs"`
	Mint     []legacyMultiAsset  `json:"mint,omitempty"`
	Metadata []legacyMetadatum   `json:"metadata,omitempty"`
}

type legacyTxInput struct {
	TxID  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

type legacyTxOutput struct {
	Address string             `json:"address"`
	Amount  uint64              `json:"amount"`
	Assets  []legacyMultiAsset `json:"assets,omitempty"`
}

type legacyMultiAsset struct {
	Policy string       `json:"policy"`
	Assets []legacyAsset `json:"assets"`
}

type legacyAsset struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

type legacyMetadatum struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

func mapShelleyFamilyTx(tx *model.ParsedTx, blockSlot uint64, blockHash []byte, txIdx *int) (*model.LegacyV1Event, error) {
	payload := legacyTxPayload{Fee: tx.Fee}
	for _, in := range tx.Inputs {
		payload.Inputs = append(payload.Inputs, legacyTxInput{TxID: hex.EncodeToString(in.TxHash), Index: in.Index})
	}
	for _, out := range tx.Outputs {
		payload.Outputs = append(payload.Outputs, legacyTxOutput{
			Address: hex.EncodeToString(out.Address),
			Amount:  out.Lovelace,
			Assets:  legacyMultiAssetsFrom(out.Assets),
		})
	}
	payload.Mint = legacyMultiAssetsFrom(tx.Mint)
	for _, m := range tx.Metadata {
		var v any
		if m.HasText {
			v = m.Text
		} else {
			v = m.Int
		}
		payload.Metadata = append(payload.Metadata, legacyMetadatum{Label: fmt.Sprintf("%d", m.Label), Value: v})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mapper: marshal legacy tx payload: %w", err)
	}

	return &model.LegacyV1Event{
		Context: legacyContext(tx, blockSlot, blockHash, txIdx),
		Event:   "transaction",
		Payload: raw,
	}, nil
}

// mapByronTx emits a context-only projection: Byron's address/value
// encoding differs enough from Shelley's that a faithful mapping needs
// CBOR/address decoding this package does not implement. Downstream
// consumers that need Byron-era legacy-v1 fidelity are out of scope.
func mapByronTx(tx *model.ParsedTx, blockSlot uint64, blockHash []byte, txIdx *int) (*model.LegacyV1Event, error) {
	return &model.LegacyV1Event{
		Context: legacyContext(tx, blockSlot, blockHash, txIdx),
		Event:   "transaction",
	}, nil
}

func legacyContext(tx *model.ParsedTx, blockSlot uint64, blockHash []byte, txIdx *int) model.LegacyV1Context {
	return model.LegacyV1Context{
		BlockHash: hex.EncodeToString(blockHash),
		Slot:      blockSlot,
		TxHash:    hex.EncodeToString(tx.Hash),
		TxIdx:     txIdx,
		Era:       tx.Era.String(),
	}
}

func legacyMultiAssetsFrom(assets []model.MultiAsset) []legacyMultiAsset {
	if len(assets) == 0 {
		return nil
	}
	out := make([]legacyMultiAsset, 0, len(assets))
	for _, ma := range assets {
		lma := legacyMultiAsset{Policy: hex.EncodeToString(ma.Policy)}
		for _, a := range ma.Assets {
			lma.Assets = append(lma.Assets, legacyAsset{Asset: hex.EncodeToString(a.Name), Amount: a.Amount})
		}
		out = append(out, lma)
	}
	return out
}
