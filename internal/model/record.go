package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// RecordKind tags the active variant of a Record.
type RecordKind int

const (
	// KindCborBlock carries an undecoded block body.
	KindCborBlock RecordKind = iota
	// KindCborTx carries an undecoded transaction body.
	KindCborTx
	// KindParsedBlock carries a decoded block.
	KindParsedBlock
	// KindParsedTx carries a decoded transaction.
	KindParsedTx
	// KindGenericJSON carries an arbitrary structured JSON value, produced by
	// the map-to-JSON filter or a plugin mapping.
	KindGenericJSON
	// KindLegacyV1Event carries a record shaped like the legacy v1 schema.
	KindLegacyV1Event
)

func (k RecordKind) String() string {
	switch k {
	case KindCborBlock:
		return "cbor_block"
	case KindCborTx:
		return "cbor_tx"
	case KindParsedBlock:
		return "parsed_block"
	case KindParsedTx:
		return "parsed_tx"
	case KindGenericJSON:
		return "generic_json"
	case KindLegacyV1Event:
		return "legacy_v1"
	default:
		return "unknown"
	}
}

// Record is a tagged variant of the possible payload shapes carried by a
// ChainEvent. Exactly one of the typed fields is populated, matching Kind.
// Once constructed a Record is treated as immutable by the pipeline.
type Record struct {
	Kind RecordKind

	// Raw payloads.
	RawBlock []byte
	RawTx    []byte

	// Parsed payloads.
	Block *ParsedBlock
	Tx    *ParsedTx

	// Generic JSON payload (already-marshaled, to avoid forcing a concrete
	// Go type on callers).
	JSON json.RawMessage

	// Legacy v1 schema payload.
	Legacy *LegacyV1Event
}

// NewCborBlockRecord wraps raw block bytes.
func NewCborBlockRecord(raw []byte) Record { return Record{Kind: KindCborBlock, RawBlock: raw} }

// NewCborTxRecord wraps raw transaction bytes.
func NewCborTxRecord(raw []byte) Record { return Record{Kind: KindCborTx, RawTx: raw} }

// NewParsedBlockRecord wraps a decoded block.
func NewParsedBlockRecord(b *ParsedBlock) Record { return Record{Kind: KindParsedBlock, Block: b} }

// NewParsedTxRecord wraps a decoded transaction.
func NewParsedTxRecord(tx *ParsedTx) Record { return Record{Kind: KindParsedTx, Tx: tx} }

// NewGenericJSONRecord wraps an arbitrary JSON value.
func NewGenericJSONRecord(v json.RawMessage) Record { return Record{Kind: KindGenericJSON, JSON: v} }

// NewLegacyV1Record wraps a legacy-v1-schema event.
func NewLegacyV1Record(e *LegacyV1Event) Record { return Record{Kind: KindLegacyV1Event, Legacy: e} }

// MarshalJSON implements the record-json projection:
// {"hex": <hex>} for raw variants, or the structured object otherwise.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindCborBlock:
		return json.Marshal(struct {
			Hex string `json:"hex"`
		}{Hex: hex.EncodeToString(r.RawBlock)})
	case KindCborTx:
		return json.Marshal(struct {
			Hex string `json:"hex"`
		}{Hex: hex.EncodeToString(r.RawTx)})
	case KindParsedBlock:
		return json.Marshal(r.Block)
	case KindParsedTx:
		return json.Marshal(r.Tx)
	case KindGenericJSON:
		if len(r.JSON) == 0 {
			return []byte("null"), nil
		}
		return r.JSON, nil
	case KindLegacyV1Event:
		return json.Marshal(r.Legacy)
	default:
		return nil, fmt.Errorf("model: record has no active variant")
	}
}

// Era identifies which Cardano-style hard fork era a parsed record belongs
// to, as read off a decoded block's era tag.
type Era int

const (
	EraByron Era = iota
	EraShelley
	EraAllegra
	EraMary
	EraAlonzo
	EraBabbage
	EraConway
)

func (e Era) String() string {
	switch e {
	case EraByron:
		return "byron"
	case EraShelley:
		return "shelley"
	case EraAllegra:
		return "allegra"
	case EraMary:
		return "mary"
	case EraAlonzo:
		return "alonzo"
	case EraBabbage:
		return "babbage"
	case EraConway:
		return "conway"
	default:
		return "unknown"
	}
}

func (e Era) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// NumericPatternKind and other predicate-adjacent types live in package
// predicate; ParsedBlock/ParsedTx (below) are the canonical field types:
// addresses/policies/assets as raw bytes, coin as u64, multiassets
// grouped by policy.

// ParsedBlock is the canonical decoded block shape.
type ParsedBlock struct {
	Era  Era         `json:"era"`
	Hash []byte      `json:"hash"`
	Slot uint64      `json:"slot"`
	Txs  []*ParsedTx `json:"txs"`
}

// MultiAsset groups asset amounts by policy.
type MultiAsset struct {
	Policy []byte      `json:"policy"`
	Assets []AssetUnit `json:"assets"`
}

// AssetUnit is one named asset under a policy with an amount (can be
// negative in a mint record to represent a burn).
type AssetUnit struct {
	Name   []byte `json:"name"`
	Amount int64  `json:"amount"`
}

// TxOutput is a transaction output in canonical form.
type TxOutput struct {
	Address    []byte       `json:"address"`
	Lovelace   uint64       `json:"lovelace"`
	Assets     []MultiAsset `json:"assets,omitempty"`
	DatumHash  []byte       `json:"datum_hash,omitempty"`
	InlineDatum []byte      `json:"inline_datum,omitempty"`
}

// TxInput references a previous output. AsOutput is populated only when the
// parser (or an enrichment step) was able to resolve the referenced output;
// its absence is what drives predicate Uncertain outcomes for Input
// patterns.
type TxInput struct {
	TxHash   []byte    `json:"tx_hash"`
	Index    uint32    `json:"index"`
	AsOutput *TxOutput `json:"as_output,omitempty"`
}

// Metadatum is one entry of a transaction's auxiliary metadata.
type Metadatum struct {
	Label uint64 `json:"label"`
	// Exactly one of Text/Int is meaningful, selected by HasText.
	HasText bool   `json:"-"`
	Text    string `json:"text,omitempty"`
	Int     int64  `json:"int,omitempty"`
}

// ParsedTx is the canonical decoded transaction shape.
type ParsedTx struct {
	Era       Era          `json:"era"`
	Hash      []byte       `json:"hash"`
	Fee       uint64       `json:"fee"`
	Inputs    []TxInput    `json:"inputs"`
	Outputs   []TxOutput   `json:"outputs"`
	Mint      []MultiAsset `json:"mint,omitempty"`
	Metadata  []Metadatum  `json:"metadata,omitempty"`
	Valid     bool         `json:"valid"`
}

// LegacyV1Event is the mechanical legacy-v1 schema projection of a parsed
// block/tx; see internal/mapper for the (intentionally partial) mapping
// implementation.
type LegacyV1Event struct {
	Context LegacyV1Context `json:"context"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LegacyV1Context carries the point/era metadata the legacy schema attaches
// to every event.
type LegacyV1Context struct {
	BlockHash   string `json:"block_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	Slot        uint64 `json:"slot_number,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	TxIdx       *int   `json:"tx_idx,omitempty"`
	NetworkID   int    `json:"network,omitempty"`
	Era         string `json:"era,omitempty"`
}
