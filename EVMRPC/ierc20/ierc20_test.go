package ierc20

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackTransferSelector(t *testing.T) {
	data, err := PackTransfer(common.HexToAddress("0x00000000000000000000000000000000000000aa"), big.NewInt(5))
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Equal(t, byte(5), data[len(data)-1])
}

func TestUnpackViews(t *testing.T) {
	raw, err := parsed.Methods["decimals"].Outputs.Pack(uint8(18))
	require.NoError(t, err)
	decimals, err := UnpackDecimals(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 18, decimals)

	raw, err = parsed.Methods["balanceOf"].Outputs.Pack(big.NewInt(123456789))
	require.NoError(t, err)
	balance, err := UnpackBalanceOf(raw)
	require.NoError(t, err)
	assert.Equal(t, "123456789", balance.String())
}

func TestParseTransferLog(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	value := new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))

	l := types.Log{
		Topics: []common.Hash{
			TransferEventID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xabc"),
	}

	ev, err := ParseTransferLog(l)
	require.NoError(t, err)
	assert.Equal(t, from, ev.From)
	assert.Equal(t, to, ev.To)
	assert.Equal(t, value.String(), ev.Value.String())
	assert.EqualValues(t, 42, ev.BlockNumber)

	l.Topics = l.Topics[:1]
	_, err = ParseTransferLog(l)
	assert.Error(t, err)
}
