package predicate

import (
	"encoding/hex"
	"fmt"
)

// FromConfig builds a Predicate tree from a decoded YAML/JSON config map,
// the shape a select filter's `predicate:` key takes. A nil or empty map
// yields a nil Predicate, which Evaluate treats as matching everything.
//
// The grammar mirrors the Predicate/Pattern algebra directly:
//
//	not: <predicate>
//	any_of: [<predicate>, ...]
//	all_of: [<predicate>, ...]
//	match:
//	  address: {exact_hex, payment_hex, delegation_hex, is_byron, is_script}
//	  asset:   {policy_hex, name_hex, ascii_name, coin: <numeric>}
//	  output:  {address: <address>, lovelace: <numeric>, assets: [<asset>, ...], datum_hash_hex}
//	  input:   {output: <output>}
//	  mint:    {assets: [<asset>, ...]}
//	  metadata: {label, text, value: <numeric>}
//	  datum:   {hash_hex}
//	  block:   {hash_hex, slot: <numeric>, era}
//	  tx:      {inputs: [<input>, ...], outputs: [<output>, ...], mints: [<mint>, ...], metadata: [<metadata>, ...]}
//
// <numeric> is one of {exact}, {gte}, {lte}, or {between: [a, b]}.
func FromConfig(cfg map[string]any) (*Predicate, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	if v, ok := cfg["match"]; ok {
		m, err := asMap(v, "match")
		if err != nil {
			return nil, err
		}
		pat, err := patternFromConfig(m)
		if err != nil {
			return nil, err
		}
		return MatchPattern(pat), nil
	}
	if v, ok := cfg["not"]; ok {
		m, err := asMap(v, "not")
		if err != nil {
			return nil, err
		}
		operand, err := FromConfig(m)
		if err != nil {
			return nil, err
		}
		return NotP(operand), nil
	}
	if v, ok := cfg["any_of"]; ok {
		operands, err := predicateListFromConfig(v, "any_of")
		if err != nil {
			return nil, err
		}
		return AnyOfP(operands...), nil
	}
	if v, ok := cfg["all_of"]; ok {
		operands, err := predicateListFromConfig(v, "all_of")
		if err != nil {
			return nil, err
		}
		return AllOfP(operands...), nil
	}
	return nil, fmt.Errorf("predicate: config map must have exactly one of match/not/any_of/all_of, got %v", keys(cfg))
}

func predicateListFromConfig(v any, field string) ([]*Predicate, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("predicate: %s must be a list", field)
	}
	out := make([]*Predicate, len(list))
	for i, item := range list {
		m, err := asMap(item, field)
		if err != nil {
			return nil, err
		}
		p, err := FromConfig(m)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func patternFromConfig(m map[string]any) (Pattern, error) {
	switch {
	case hasKey(m, "address"):
		sub, err := subMap(m, "address")
		if err != nil {
			return Pattern{}, err
		}
		pat, err := addressPatternFromConfig(sub)
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: PatternAddress, Address: &pat}, nil
	case hasKey(m, "asset"):
		sub, err := subMap(m, "asset")
		if err != nil {
			return Pattern{}, err
		}
		pat, err := assetPatternFromConfig(sub)
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: PatternAsset, Asset: &pat}, nil
	case hasKey(m, "output"):
		sub, err := subMap(m, "output")
		if err != nil {
			return Pattern{}, err
		}
		pat, err := outputPatternFromConfig(sub)
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: PatternOutput, Output: &pat}, nil
	case hasKey(m, "input"):
		sub, err := subMap(m, "input")
		if err != nil {
			return Pattern{}, err
		}
		outSub, err := subMap(sub, "output")
		if err != nil {
			return Pattern{}, err
		}
		outPat, err := outputPatternFromConfig(outSub)
		if err != nil {
			return Pattern{}, err
		}
		pat := InputPattern{Output: outPat}
		return Pattern{Kind: PatternInput, Input: &pat}, nil
	case hasKey(m, "mint"):
		sub, err := subMap(m, "mint")
		if err != nil {
			return Pattern{}, err
		}
		assets, err := assetListFromConfig(sub["assets"])
		if err != nil {
			return Pattern{}, err
		}
		pat := MintPattern{Assets: assets}
		return Pattern{Kind: PatternMint, Mint: &pat}, nil
	case hasKey(m, "metadata"):
		sub, err := subMap(m, "metadata")
		if err != nil {
			return Pattern{}, err
		}
		pat, err := metadataPatternFromConfig(sub)
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: PatternMetadata, Metadata: &pat}, nil
	case hasKey(m, "datum"):
		sub, err := subMap(m, "datum")
		if err != nil {
			return Pattern{}, err
		}
		hash, err := hexField(sub, "hash_hex")
		if err != nil {
			return Pattern{}, err
		}
		pat := DatumPattern{Hash: BytesPattern{Want: hash}}
		return Pattern{Kind: PatternDatum, Datum: &pat}, nil
	case hasKey(m, "block"):
		sub, err := subMap(m, "block")
		if err != nil {
			return Pattern{}, err
		}
		hash, err := hexField(sub, "hash_hex")
		if err != nil {
			return Pattern{}, err
		}
		slot, err := numericPatternFromConfig(sub["slot"])
		if err != nil {
			return Pattern{}, err
		}
		pat := BlockPattern{Hash: BytesPattern{Want: hash}, Slot: slot}
		if era, ok := sub["era"].(string); ok {
			pat.Era = &era
		}
		return Pattern{Kind: PatternBlock, Block: &pat}, nil
	case hasKey(m, "tx"):
		sub, err := subMap(m, "tx")
		if err != nil {
			return Pattern{}, err
		}
		pat, err := txPatternFromConfig(sub)
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: PatternTx, Tx: &pat}, nil
	default:
		return Pattern{}, fmt.Errorf("predicate: match map must name exactly one pattern kind, got %v", keys(m))
	}
}

func addressPatternFromConfig(m map[string]any) (AddressPattern, error) {
	var pat AddressPattern
	var err error
	if pat.ExactBytes.Want, err = hexField(m, "exact_hex"); err != nil {
		return pat, err
	}
	if pat.PaymentPart.Want, err = hexField(m, "payment_hex"); err != nil {
		return pat, err
	}
	if pat.DelegationPart.Want, err = hexField(m, "delegation_hex"); err != nil {
		return pat, err
	}
	if v, ok := m["is_byron"]; ok {
		b, ok := v.(bool)
		if !ok {
			return pat, fmt.Errorf("predicate: is_byron must be a bool")
		}
		pat.IsByron = &b
	}
	if v, ok := m["is_script"]; ok {
		b, ok := v.(bool)
		if !ok {
			return pat, fmt.Errorf("predicate: is_script must be a bool")
		}
		pat.IsScript = &b
	}
	return pat, nil
}

func assetPatternFromConfig(m map[string]any) (AssetPattern, error) {
	var pat AssetPattern
	var err error
	if pat.Policy.Want, err = hexField(m, "policy_hex"); err != nil {
		return pat, err
	}
	if pat.Name.Want, err = hexField(m, "name_hex"); err != nil {
		return pat, err
	}
	if v, ok := m["ascii_name"]; ok {
		s, ok := v.(string)
		if !ok {
			return pat, fmt.Errorf("predicate: ascii_name must be a string")
		}
		pat.AsciiName = &s
	}
	if pat.Coin, err = numericPatternFromConfig(m["coin"]); err != nil {
		return pat, err
	}
	return pat, nil
}

func outputPatternFromConfig(m map[string]any) (OutputPattern, error) {
	var pat OutputPattern
	var err error
	if addr, ok := m["address"]; ok {
		sub, err := asMap(addr, "address")
		if err != nil {
			return pat, err
		}
		if pat.Address, err = addressPatternFromConfig(sub); err != nil {
			return pat, err
		}
	}
	if pat.Lovelace, err = numericPatternFromConfig(m["lovelace"]); err != nil {
		return pat, err
	}
	if pat.Assets, err = assetListFromConfig(m["assets"]); err != nil {
		return pat, err
	}
	if hash, err := hexField(m, "datum_hash_hex"); err != nil {
		return pat, err
	} else if hash != nil {
		pat.Datum = &DatumPattern{Hash: BytesPattern{Want: hash}}
	}
	return pat, nil
}

func metadataPatternFromConfig(m map[string]any) (MetadataPattern, error) {
	var pat MetadataPattern
	if v, ok := m["label"]; ok {
		n, err := asUint64(v)
		if err != nil {
			return pat, fmt.Errorf("predicate: label: %w", err)
		}
		pat.Label = &n
	}
	if v, ok := m["text"]; ok {
		s, ok := v.(string)
		if !ok {
			return pat, fmt.Errorf("predicate: text must be a string")
		}
		pat.Text = &s
	}
	if v, ok := m["value"]; ok {
		n, err := numericPatternFromConfig(v)
		if err != nil {
			return pat, err
		}
		pat.Value = &n
	}
	return pat, nil
}

func txPatternFromConfig(m map[string]any) (TxPattern, error) {
	var pat TxPattern
	if list, ok := m["inputs"].([]any); ok {
		pat.Inputs = make([]InputPattern, len(list))
		for i, item := range list {
			sub, err := asMap(item, "inputs")
			if err != nil {
				return pat, err
			}
			outSub, err := subMap(sub, "output")
			if err != nil {
				return pat, err
			}
			out, err := outputPatternFromConfig(outSub)
			if err != nil {
				return pat, err
			}
			pat.Inputs[i] = InputPattern{Output: out}
		}
	}
	if list, ok := m["outputs"].([]any); ok {
		pat.Outputs = make([]OutputPattern, len(list))
		for i, item := range list {
			sub, err := asMap(item, "outputs")
			if err != nil {
				return pat, err
			}
			out, err := outputPatternFromConfig(sub)
			if err != nil {
				return pat, err
			}
			pat.Outputs[i] = out
		}
	}
	if list, ok := m["mints"].([]any); ok {
		pat.Mints = make([]MintPattern, len(list))
		for i, item := range list {
			sub, err := asMap(item, "mints")
			if err != nil {
				return pat, err
			}
			assets, err := assetListFromConfig(sub["assets"])
			if err != nil {
				return pat, err
			}
			pat.Mints[i] = MintPattern{Assets: assets}
		}
	}
	if list, ok := m["metadata"].([]any); ok {
		pat.Metadata = make([]MetadataPattern, len(list))
		for i, item := range list {
			sub, err := asMap(item, "metadata")
			if err != nil {
				return pat, err
			}
			mp, err := metadataPatternFromConfig(sub)
			if err != nil {
				return pat, err
			}
			pat.Metadata[i] = mp
		}
	}
	return pat, nil
}

func assetListFromConfig(v any) ([]AssetPattern, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("predicate: assets must be a list")
	}
	out := make([]AssetPattern, len(list))
	for i, item := range list {
		m, err := asMap(item, "assets")
		if err != nil {
			return nil, err
		}
		pat, err := assetPatternFromConfig(m)
		if err != nil {
			return nil, err
		}
		out[i] = pat
	}
	return out, nil
}

func numericPatternFromConfig(v any) (NumericPattern, error) {
	if v == nil {
		return NumericPattern{}, nil
	}
	m, err := asMap(v, "numeric pattern")
	if err != nil {
		return NumericPattern{}, err
	}
	switch {
	case hasKey(m, "exact"):
		n, err := asInt64(m["exact"])
		return Exact(n), err
	case hasKey(m, "gte"):
		n, err := asInt64(m["gte"])
		return Gte(n), err
	case hasKey(m, "lte"):
		n, err := asInt64(m["lte"])
		return Lte(n), err
	case hasKey(m, "between"):
		list, ok := m["between"].([]any)
		if !ok || len(list) != 2 {
			return NumericPattern{}, fmt.Errorf("predicate: between must be a 2-element list")
		}
		a, err := asInt64(list[0])
		if err != nil {
			return NumericPattern{}, err
		}
		b, err := asInt64(list[1])
		if err != nil {
			return NumericPattern{}, err
		}
		return Between(a, b), nil
	default:
		return NumericPattern{}, fmt.Errorf("predicate: numeric pattern must have exactly one of exact/gte/lte/between, got %v", keys(m))
	}
}

func hexField(m map[string]any, field string) ([]byte, error) {
	v, ok := m[field]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("predicate: %s must be a hex string", field)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("predicate: %s: %w", field, err)
	}
	return b, nil
}

func asMap(v any, field string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("predicate: %s must be a map", field)
	}
	return m, nil
}

func subMap(m map[string]any, field string) (map[string]any, error) {
	v, ok := m[field]
	if !ok {
		return map[string]any{}, nil
	}
	return asMap(v, field)
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("predicate: expected a number, got %T", v)
	}
}

func asUint64(v any) (uint64, error) {
	n, err := asInt64(v)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
