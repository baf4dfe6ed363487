package EVMRPC

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"gobglrelayer/EVMRPC/ierc20"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func (c *Client) Decimals() int32 {
	return c.decimals
}

// ConvertBaseUnits turns a raw token amount into WBGL
func (c *Client) ConvertBaseUnits(raw *big.Int) decimal.Decimal {
	return FromBaseUnits(raw, c.decimals)
}

func (c *Client) ToBaseUnits(amount decimal.Decimal) *big.Int {
	return ToBaseUnits(amount, c.decimals)
}

func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToBaseUnits drops any precision finer than one base unit
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

func (c *Client) tokenDecimals(ctx context.Context) (uint8, error) {
	data, err := ierc20.PackDecimals()
	if err != nil {
		return 0, err
	}
	out, err := c.callContract(ctx, data)
	if err != nil {
		return 0, err
	}
	return ierc20.UnpackDecimals(out)
}

// GetWBGLBalance returns the custodial account's token balance
func (c *Client) GetWBGLBalance(ctx context.Context) (decimal.Decimal, error) {
	data, err := ierc20.PackBalanceOf(c.account)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := c.callContract(ctx, data)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := ierc20.UnpackBalanceOf(out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chain %s: balanceOf: %w", c.cfg.ID, err)
	}
	return c.ConvertBaseUnits(raw), nil
}

func (c *Client) callContract(ctx context.Context, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: c.account, To: &c.contract, Data: data}
	return withClient(ctx, c, func(ctx context.Context, b ethBackend) ([]byte, error) {
		return b.CallContract(ctx, msg, nil)
	})
}

// ValidateAddress accepts checksummed or single-case hex addresses, never the zero address.
// Mixed case is an EIP-55 checksum and must match.
func ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid EVM address %q", address)
	}
	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return fmt.Errorf("refusing zero address")
	}
	if digits := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"); digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if err := ethav.Validate("0x" + digits); err != nil {
			return fmt.Errorf("invalid EVM address %q: %w", address, err)
		}
	}
	return nil
}
