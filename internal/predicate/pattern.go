package predicate

// NumericPattern constrains a u64/i64 quantity. The zero value (NumKindNone)
// matches everything.
type NumericKind int

const (
	NumKindNone NumericKind = iota
	NumKindExact
	NumKindGte
	NumKindLte
	NumKindBetween
)

type NumericPattern struct {
	Kind NumericKind
	A    int64 // Exact/Gte/Lte value, or Between lower bound
	B    int64 // Between upper bound
}

// Exact builds an exact-match numeric pattern.
func Exact(v int64) NumericPattern { return NumericPattern{Kind: NumKindExact, A: v} }

// Gte builds a "greater than or equal" numeric pattern.
func Gte(v int64) NumericPattern { return NumericPattern{Kind: NumKindGte, A: v} }

// Lte builds a "less than or equal" numeric pattern.
func Lte(v int64) NumericPattern { return NumericPattern{Kind: NumKindLte, A: v} }

// Between builds an inclusive-range numeric pattern.
func Between(a, b int64) NumericPattern { return NumericPattern{Kind: NumKindBetween, A: a, B: b} }

// Matches reports whether v satisfies the pattern. An absent (zero-value)
// pattern matches everything.
func (n NumericPattern) Matches(v int64) bool {
	switch n.Kind {
	case NumKindNone:
		return true
	case NumKindExact:
		return v == n.A
	case NumKindGte:
		return v >= n.A
	case NumKindLte:
		return v <= n.A
	case NumKindBetween:
		return v >= n.A && v <= n.B
	default:
		return false
	}
}

// BytesPattern optionally constrains a raw byte field. Nil Want matches
// everything.
type BytesPattern struct {
	Want []byte
}

func (b BytesPattern) matches(actual []byte) bool {
	if b.Want == nil {
		return true
	}
	if len(b.Want) != len(actual) {
		return false
	}
	for i := range b.Want {
		if b.Want[i] != actual[i] {
			return false
		}
	}
	return true
}

// AddressPattern matches on raw-address structure. Every field is optional.
type AddressPattern struct {
	ExactBytes     BytesPattern // exact match against the full raw address
	PaymentPart    BytesPattern
	DelegationPart BytesPattern
	IsByron        *bool
	IsScript       *bool
}

// AssetPattern matches a (policy, asset) pair drawn from outputs or mint.
type AssetPattern struct {
	Policy    BytesPattern
	Name      BytesPattern // raw asset name bytes
	AsciiName *string      // matches when the asset name, interpreted as ASCII, equals this
	Coin      NumericPattern
}

// DatumPattern matches an output's datum hash.
type DatumPattern struct {
	Hash BytesPattern
}

// OutputPattern matches a single transaction output.
type OutputPattern struct {
	Address  AddressPattern
	Lovelace NumericPattern
	Assets   []AssetPattern // each must match some asset on the output
	Datum    *DatumPattern
}

// InputPattern matches a transaction input via its resolved previous
// output, when available; evaluation returns Uncertain when it is not.
type InputPattern struct {
	Output OutputPattern
}

// MintPattern matches the mint field of a transaction.
type MintPattern struct {
	Assets []AssetPattern // each must match some minted asset
}

// MetadataPattern matches a transaction's auxiliary metadata.
type MetadataPattern struct {
	Label *uint64
	Text  *string
	Value *NumericPattern
}

// BlockPattern matches block-level fields; unused in tx-level evaluation,
// where it returns Negative.
type BlockPattern struct {
	Hash BytesPattern
	Slot NumericPattern
	Era  *string
}

// TxPattern matches a whole transaction: every non-empty list is an
// all-of fold where each pattern in the list must match at least one
// element in the tx.
type TxPattern struct {
	Inputs   []InputPattern
	Outputs  []OutputPattern
	Mints    []MintPattern
	Metadata []MetadataPattern
}

// PatternKind tags which Pattern variant is active, a flat enum instead
// of a class hierarchy for patterns.
type PatternKind int

const (
	PatternBlock PatternKind = iota
	PatternTx
	PatternAddress
	PatternAsset
	PatternInput
	PatternOutput
	PatternMint
	PatternMetadata
	PatternDatum
)

// Pattern is the flat tagged variant of all pattern kinds.
type Pattern struct {
	Kind     PatternKind
	Block    *BlockPattern
	Tx       *TxPattern
	Address  *AddressPattern
	Asset    *AssetPattern
	Input    *InputPattern
	Output   *OutputPattern
	Mint     *MintPattern
	Metadata *MetadataPattern
	Datum    *DatumPattern
}
