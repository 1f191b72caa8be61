package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
)

func TestFromConfigNilOrEmptyMatchesEverything(t *testing.T) {
	p, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, Positive, Evaluate(p, &model.ParsedTx{}))
}

func TestFromConfigMatchAddressExact(t *testing.T) {
	cfg := map[string]any{
		"match": map[string]any{
			"address": map[string]any{"exact_hex": "cafe"},
		},
	}
	p, err := FromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)

	hit := &model.ParsedTx{Outputs: []model.TxOutput{{Address: []byte{0xca, 0xfe}}}}
	miss := &model.ParsedTx{Outputs: []model.TxOutput{{Address: []byte{0x01}}}}
	assert.Equal(t, Positive, Evaluate(p, hit))
	assert.Equal(t, Negative, Evaluate(p, miss))
}

func TestFromConfigMatchOutputLovelaceBetween(t *testing.T) {
	cfg := map[string]any{
		"match": map[string]any{
			"output": map[string]any{
				"lovelace": map[string]any{"between": []any{100, 200}},
			},
		},
	}
	p, err := FromConfig(cfg)
	require.NoError(t, err)

	hit := &model.ParsedTx{Outputs: []model.TxOutput{{Lovelace: 150}}}
	miss := &model.ParsedTx{Outputs: []model.TxOutput{{Lovelace: 999}}}
	assert.Equal(t, Positive, Evaluate(p, hit))
	assert.Equal(t, Negative, Evaluate(p, miss))
}

func TestFromConfigNotNegates(t *testing.T) {
	cfg := map[string]any{
		"not": map[string]any{
			"match": map[string]any{
				"address": map[string]any{"exact_hex": "cafe"},
			},
		},
	}
	p, err := FromConfig(cfg)
	require.NoError(t, err)

	hit := &model.ParsedTx{Outputs: []model.TxOutput{{Address: []byte{0xca, 0xfe}}}}
	miss := &model.ParsedTx{Outputs: []model.TxOutput{{Address: []byte{0x01}}}}
	assert.Equal(t, Negative, Evaluate(p, hit))
	assert.Equal(t, Positive, Evaluate(p, miss))
}

func TestFromConfigAnyOfAndAllOf(t *testing.T) {
	addrA := map[string]any{"match": map[string]any{"address": map[string]any{"exact_hex": "aa"}}}
	addrB := map[string]any{"match": map[string]any{"address": map[string]any{"exact_hex": "bb"}}}

	anyP, err := FromConfig(map[string]any{"any_of": []any{addrA, addrB}})
	require.NoError(t, err)
	allP, err := FromConfig(map[string]any{"all_of": []any{addrA, addrB}})
	require.NoError(t, err)

	txA := &model.ParsedTx{Outputs: []model.TxOutput{{Address: []byte{0xaa}}}}
	assert.Equal(t, Positive, Evaluate(anyP, txA))
	assert.Equal(t, Negative, Evaluate(allP, txA))
}

func TestFromConfigNumericAcceptsMapstructureNumericTypes(t *testing.T) {
	for _, v := range []any{int(42), int64(42), uint64(42), float64(42)} {
		n, err := numericPatternFromConfig(map[string]any{"exact": v})
		require.NoError(t, err)
		assert.True(t, n.Matches(42))
	}
}

func TestFromConfigRejectsUnknownKey(t *testing.T) {
	_, err := FromConfig(map[string]any{"bogus": map[string]any{}})
	assert.Error(t, err)
}

func TestFromConfigRejectsUnknownPatternKind(t *testing.T) {
	_, err := FromConfig(map[string]any{"match": map[string]any{"bogus": map[string]any{}}})
	assert.Error(t, err)
}

func TestFromConfigMatchAssetMint(t *testing.T) {
	cfg := map[string]any{
		"match": map[string]any{
			"mint": map[string]any{
				"assets": []any{
					map[string]any{"policy_hex": "ab", "ascii_name": "token"},
				},
			},
		},
	}
	p, err := FromConfig(cfg)
	require.NoError(t, err)

	name := "token"
	hit := &model.ParsedTx{Mint: []model.MultiAsset{{Policy: []byte{0xab}, Assets: []model.AssetUnit{{Name: []byte(name)}}}}}
	assert.Equal(t, Positive, Evaluate(p, hit))
}
