package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
)

func TestToLegacyV1TxShelleyFamily(t *testing.T) {
	idx := 2
	tx := &model.ParsedTx{
		Era:  model.EraBabbage,
		Hash: []byte{0xaa, 0xbb},
		Fee:  170000,
		Inputs: []model.TxInput{
			{TxHash: []byte{0x01}, Index: 0},
		},
		Outputs: []model.TxOutput{
			{Address: []byte{0x61, 0x62}, Lovelace: 5_000_000},
		},
		Mint: []model.MultiAsset{
			{Policy: []byte{0xca, 0xfe}, Assets: []model.AssetUnit{{Name: []byte("token"), Amount: 1}}},
		},
		Metadata: []model.Metadatum{{Label: 674, HasText: true, Text: "hello"}},
	}

	ev, err := ToLegacyV1Tx(tx, 12345, []byte{0xde, 0xad}, &idx)
	require.NoError(t, err)
	assert.Equal(t, "transaction", ev.Event)
	assert.EqualValues(t, 12345, ev.Context.Slot)
	assert.Equal(t, "babbage", ev.Context.Era)
	assert.NotNil(t, ev.Context.TxIdx)
	assert.Equal(t, 2, *ev.Context.TxIdx)
	assert.NotEmpty(t, ev.Payload)
}

func TestToLegacyV1TxByronIsContextOnly(t *testing.T) {
	tx := &model.ParsedTx{Era: model.EraByron, Hash: []byte{0x01}}
	ev, err := ToLegacyV1Tx(tx, 10, []byte{0x02}, nil)
	require.NoError(t, err)
	assert.Equal(t, "transaction", ev.Event)
	assert.Nil(t, ev.Payload)
}

func TestToLegacyV1TxUnknownEra(t *testing.T) {
	tx := &model.ParsedTx{Era: model.Era(99)}
	_, err := ToLegacyV1Tx(tx, 0, nil, nil)
	assert.Error(t, err)
}
