// Package ierc20 is a minimal ERC-20 binding: the calls and the event the bridge uses.
package ierc20

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint8"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},
	           {"name":"to","type":"address","indexed":true},
	           {"name":"value","type":"uint256","indexed":false}]}
]`

var (
	parsed = mustParse()

	// TransferEventID is topic[0] of Transfer(address,address,uint256)
	TransferEventID = parsed.Events["Transfer"].ID
)

func mustParse() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		panic(fmt.Sprintf("ierc20: bad ABI: %v", err))
	}
	return a
}

func PackTransfer(to common.Address, value *big.Int) ([]byte, error) {
	return parsed.Pack("transfer", to, value)
}

func PackBalanceOf(owner common.Address) ([]byte, error) {
	return parsed.Pack("balanceOf", owner)
}

func PackDecimals() ([]byte, error) {
	return parsed.Pack("decimals")
}

func UnpackBalanceOf(data []byte) (*big.Int, error) {
	out, err := parsed.Unpack("balanceOf", data)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func UnpackDecimals(data []byte) (uint8, error) {
	out, err := parsed.Unpack("decimals", data)
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// TransferLog is a decoded Transfer event
type TransferLog struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64
	Index       uint
	Removed     bool
}

func ParseTransferLog(l types.Log) (*TransferLog, error) {
	if len(l.Topics) != 3 || l.Topics[0] != TransferEventID {
		return nil, errors.New("not an ERC-20 Transfer log")
	}
	if len(l.Data) != 32 {
		return nil, fmt.Errorf("unexpected Transfer data length %d", len(l.Data))
	}
	return &TransferLog{
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Value:       new(big.Int).SetBytes(l.Data),
		TxHash:      l.TxHash,
		BlockHash:   l.BlockHash,
		BlockNumber: l.BlockNumber,
		Index:       l.Index,
		Removed:     l.Removed,
	}, nil
}
