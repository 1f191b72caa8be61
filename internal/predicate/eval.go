package predicate

import (
	"github.com/txpipe/chainstream/internal/model"
)

// Evaluate walks a predicate tree against a single transaction, applying
// the three-valued boolean algebra over Patterns.
func Evaluate(p *Predicate, tx *model.ParsedTx) Outcome {
	if p == nil {
		return Positive // an absent predicate matches everything
	}
	switch p.Kind {
	case PredMatch:
		return matchPattern(*p.Pattern, tx)
	case PredNot:
		return Not(Evaluate(p.Operand, tx))
	case PredAnyOf:
		outs := make([]Outcome, len(p.Operands))
		for i, op := range p.Operands {
			outs[i] = Evaluate(op, tx)
		}
		return AnyOf(outs)
	case PredAllOf:
		outs := make([]Outcome, len(p.Operands))
		for i, op := range p.Operands {
			outs[i] = Evaluate(op, tx)
		}
		return AllOf(outs)
	default:
		return Uncertain
	}
}

// EvaluateBlock folds Evaluate over every transaction in a block with
// AnyOf.
func EvaluateBlock(p *Predicate, block *model.ParsedBlock) Outcome {
	outs := make([]Outcome, len(block.Txs))
	for i, tx := range block.Txs {
		outs[i] = Evaluate(p, tx)
	}
	return AnyOf(outs)
}

// EvaluateRecord dispatches on the record's active variant: ParsedTx
// evaluates directly, ParsedBlock folds over its transactions with AnyOf,
// and every other variant is Uncertain (callers should log a mis-use
// warning when that happens).
func EvaluateRecord(p *Predicate, r model.Record) Outcome {
	switch r.Kind {
	case model.KindParsedTx:
		return Evaluate(p, r.Tx)
	case model.KindParsedBlock:
		return EvaluateBlock(p, r.Block)
	default:
		return Uncertain
	}
}

func matchPattern(pat Pattern, tx *model.ParsedTx) Outcome {
	switch pat.Kind {
	case PatternBlock:
		return Negative // unused in tx-level evaluation
	case PatternTx:
		return matchTxPattern(*pat.Tx, tx)
	case PatternAddress:
		return anyOutputAddressMatches(*pat.Address, tx)
	case PatternAsset:
		return anyAssetMatches(*pat.Asset, collectAssets(tx))
	case PatternOutput:
		return boolOutcome(anyOutputMatches(*pat.Output, tx.Outputs))
	case PatternInput:
		return anyInputMatches(*pat.Input, tx.Inputs)
	case PatternMint:
		return matchMintPattern(*pat.Mint, tx)
	case PatternMetadata:
		return anyMetadataMatches(*pat.Metadata, tx.Metadata)
	case PatternDatum:
		return anyDatumMatches(*pat.Datum, tx.Outputs)
	default:
		return Uncertain
	}
}

func boolOutcome(b bool) Outcome {
	if b {
		return Positive
	}
	return Negative
}

// --- Address ---

func matchAddressPattern(pat AddressPattern, addr []byte) bool {
	if !pat.ExactBytes.matches(addr) {
		return false
	}
	payment, delegation, isByron := splitAddressParts(addr)
	if !pat.PaymentPart.matches(payment) {
		return false
	}
	if !pat.DelegationPart.matches(delegation) {
		return false
	}
	if pat.IsByron != nil && *pat.IsByron != isByron {
		return false
	}
	if pat.IsScript != nil {
		isScript := len(addr) > 0 && addr[0]&0x10 != 0
		if *pat.IsScript != isScript {
			return false
		}
	}
	return true
}

// splitAddressParts extracts the payment and delegation credential parts of
// a raw Shelley-era address, and reports whether the address looks like a
// legacy Byron-era address. This mirrors the well-known Cardano address
// layout (1-byte header, 28-byte payment hash, optional 28-byte staking
// hash); Byron addresses are CBOR-wrapped and don't follow this layout, so
// they are only recognized heuristically by length/header here. Precise
// Byron decoding is out of scope for this mechanical CBOR mapping.
func splitAddressParts(addr []byte) (payment, delegation []byte, isByron bool) {
	if len(addr) == 0 {
		return nil, nil, false
	}
	header := addr[0] >> 4
	if header >= 8 {
		// Header nibble 0b1000 and above is reserved/Byron in the Shelley
		// address spec.
		return nil, nil, true
	}
	if len(addr) >= 29 {
		payment = addr[1:29]
	}
	if len(addr) >= 57 {
		delegation = addr[29:57]
	}
	return payment, delegation, false
}

func anyOutputAddressMatches(pat AddressPattern, tx *model.ParsedTx) Outcome {
	for _, out := range tx.Outputs {
		if matchAddressPattern(pat, out.Address) {
			return Positive
		}
	}
	return Negative
}

// --- Asset ---

type assetUnit struct {
	policy []byte
	name   []byte
	amount int64
}

func collectAssets(tx *model.ParsedTx) []assetUnit {
	var out []assetUnit
	for _, o := range tx.Outputs {
		for _, ma := range o.Assets {
			for _, a := range ma.Assets {
				out = append(out, assetUnit{policy: ma.Policy, name: a.Name, amount: a.Amount})
			}
		}
	}
	for _, ma := range tx.Mint {
		for _, a := range ma.Assets {
			out = append(out, assetUnit{policy: ma.Policy, name: a.Name, amount: a.Amount})
		}
	}
	return out
}

func matchAssetUnit(pat AssetPattern, u assetUnit) bool {
	if !pat.Policy.matches(u.policy) {
		return false
	}
	if !pat.Name.matches(u.name) {
		return false
	}
	if pat.AsciiName != nil && string(u.name) != *pat.AsciiName {
		return false
	}
	if !pat.Coin.Matches(u.amount) {
		return false
	}
	return true
}

func anyAssetMatches(pat AssetPattern, candidates []assetUnit) Outcome {
	for _, u := range candidates {
		if matchAssetUnit(pat, u) {
			return Positive
		}
	}
	return Negative
}

func assetListAllMatchSome(patterns []AssetPattern, candidates []assetUnit) Outcome {
	outs := make([]Outcome, len(patterns))
	for i, p := range patterns {
		outs[i] = anyAssetMatches(p, candidates)
	}
	return AllOf(outs)
}

// --- Output ---

func matchOutputPattern(pat OutputPattern, out *model.TxOutput) bool {
	if !matchAddressPattern(pat.Address, out.Address) {
		return false
	}
	if !pat.Lovelace.Matches(int64(out.Lovelace)) {
		return false
	}
	if len(pat.Assets) > 0 {
		var candidates []assetUnit
		for _, ma := range out.Assets {
			for _, a := range ma.Assets {
				candidates = append(candidates, assetUnit{policy: ma.Policy, name: a.Name, amount: a.Amount})
			}
		}
		if assetListAllMatchSome(pat.Assets, candidates) != Positive {
			return false
		}
	}
	if pat.Datum != nil && !pat.Datum.Hash.matches(out.DatumHash) {
		return false
	}
	return true
}

func anyOutputMatches(pat OutputPattern, outputs []model.TxOutput) bool {
	for i := range outputs {
		if matchOutputPattern(pat, &outputs[i]) {
			return true
		}
	}
	return false
}

// --- Input ---

func matchInputOutcome(pat InputPattern, in model.TxInput) Outcome {
	if in.AsOutput == nil {
		return Uncertain
	}
	return boolOutcome(matchOutputPattern(pat.Output, in.AsOutput))
}

func anyInputMatches(pat InputPattern, inputs []model.TxInput) Outcome {
	outs := make([]Outcome, len(inputs))
	for i, in := range inputs {
		outs[i] = matchInputOutcome(pat, in)
	}
	return AnyOf(outs)
}

// --- Mint ---

func matchMintPattern(pat MintPattern, tx *model.ParsedTx) Outcome {
	var minted []assetUnit
	for _, ma := range tx.Mint {
		for _, a := range ma.Assets {
			minted = append(minted, assetUnit{policy: ma.Policy, name: a.Name, amount: a.Amount})
		}
	}
	return assetListAllMatchSome(pat.Assets, minted)
}

// --- Metadata ---

func matchMetadatum(pat MetadataPattern, m model.Metadatum) bool {
	if pat.Label != nil && *pat.Label != m.Label {
		return false
	}
	if pat.Text != nil {
		if !m.HasText || m.Text != *pat.Text {
			return false
		}
	}
	if pat.Value != nil {
		if m.HasText {
			return false
		}
		if !pat.Value.Matches(m.Int) {
			return false
		}
	}
	return true
}

func anyMetadataMatches(pat MetadataPattern, entries []model.Metadatum) Outcome {
	for _, m := range entries {
		if matchMetadatum(pat, m) {
			return Positive
		}
	}
	return Negative
}

// --- Datum ---

func anyDatumMatches(pat DatumPattern, outputs []model.TxOutput) Outcome {
	for _, o := range outputs {
		if pat.Hash.matches(o.DatumHash) {
			return Positive
		}
	}
	return Negative
}

// --- Tx ---

func matchTxPattern(pat TxPattern, tx *model.ParsedTx) Outcome {
	var outs []Outcome

	if len(pat.Inputs) > 0 {
		inOuts := make([]Outcome, len(pat.Inputs))
		for i, ip := range pat.Inputs {
			inOuts[i] = anyInputMatches(ip, tx.Inputs)
		}
		outs = append(outs, AllOf(inOuts))
	}
	if len(pat.Outputs) > 0 {
		outOuts := make([]Outcome, len(pat.Outputs))
		for i, op := range pat.Outputs {
			outOuts[i] = boolOutcome(anyOutputMatches(op, tx.Outputs))
		}
		outs = append(outs, AllOf(outOuts))
	}
	if len(pat.Mints) > 0 {
		mintOuts := make([]Outcome, len(pat.Mints))
		for i, mp := range pat.Mints {
			mintOuts[i] = matchMintPattern(mp, tx)
		}
		outs = append(outs, AllOf(mintOuts))
	}
	if len(pat.Metadata) > 0 {
		metaOuts := make([]Outcome, len(pat.Metadata))
		for i, mp := range pat.Metadata {
			metaOuts[i] = anyMetadataMatches(mp, tx.Metadata)
		}
		outs = append(outs, AllOf(metaOuts))
	}

	return AllOf(outs)
}
