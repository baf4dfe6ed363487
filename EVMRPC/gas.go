package EVMRPC

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// scaleGasPrice returns ceil(price * percent / 100)
func scaleGasPrice(price *big.Int, percent int64) *big.Int {
	if percent <= 0 {
		percent = 100
	}
	scaled := new(big.Int).Mul(price, big.NewInt(percent))
	scaled.Add(scaled, big.NewInt(99))
	return scaled.Div(scaled, big.NewInt(100))
}

func scaleGasLimit(estimate, multiplier uint64) uint64 {
	if multiplier == 0 {
		multiplier = 1
	}
	return estimate * multiplier
}

// GasPrice is the node suggestion raised by the configured safety percentage
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := withClient(ctx, c, func(ctx context.Context, b ethBackend) (*big.Int, error) {
		return b.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, err
	}
	return scaleGasPrice(price, c.cfg.GasPricePercent), nil
}

func (c *Client) estimateGas(ctx context.Context, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{From: c.account, To: &c.contract, Data: data}
	estimate, err := withClient(ctx, c, func(ctx context.Context, b ethBackend) (uint64, error) {
		return b.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	return scaleGasLimit(estimate, c.cfg.GasLimitMultiplier), nil
}
