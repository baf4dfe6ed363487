package EVMRPC

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"gobglrelayer/EVMRPC/ierc20"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NonceName is the checkpoint holding the next nonce to use on chain
func NonceName(chain string) string {
	return chain + "Nonce"
}

func (c *Client) pendingNonce(ctx context.Context) (uint64, error) {
	return withClient(ctx, c, func(ctx context.Context, b ethBackend) (uint64, error) {
		return b.PendingNonceAt(ctx, c.account)
	})
}

// nextNonce reads the stored nonce, falling back to the pending transaction count.
// A pending count ahead of the stored value wins so transactions sent from the
// custodial account by other means do not stall the bridge.
func (c *Client) nextNonce(ctx context.Context) (uint64, error) {
	stored, err := c.nonces.Get(ctx, NonceName(c.cfg.ID), func(ctx context.Context) (string, error) {
		n, err := c.pendingNonce(ctx)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(n, 10), nil
	})
	if err != nil {
		return 0, fmt.Errorf("cannot read nonce: %w", err)
	}
	nonce, err := strconv.ParseUint(stored, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt stored nonce %q: %w", stored, err)
	}

	if pending, err := c.pendingNonce(ctx); err == nil && pending > nonce {
		c.logger.Warn("stored nonce behind chain, skipping ahead", zap.Uint64("stored", nonce), zap.Uint64("pending", pending))
		nonce = pending
	}
	return nonce, nil
}

// SendWBGL transfers amount WBGL from the custodial account to address.
// The next nonce is persisted before broadcasting; the returned hash means the
// network accepted the transaction, not that it is mined.
func (c *Client) SendWBGL(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	if err := ValidateAddress(address); err != nil {
		return "", err
	}
	value := c.ToBaseUnits(amount)
	if value.Sign() <= 0 {
		return "", fmt.Errorf("amount %s is below one base unit", amount)
	}
	data, err := ierc20.PackTransfer(common.HexToAddress(address), value)
	if err != nil {
		return "", err
	}

	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return "", err
	}
	gasLimit, err := c.estimateGas(ctx, data)
	if err != nil {
		return "", err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return "", err
	}
	if err := c.nonces.Set(ctx, NonceName(c.cfg.ID), strconv.FormatUint(nonce+1, 10)); err != nil {
		return "", fmt.Errorf("cannot persist nonce: %w", err)
	}

	tx, err := gethtypes.SignTx(gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Data:     data,
	}), gethtypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("cannot sign transaction: %w", err)
	}

	if rejected, err := c.broadcast(ctx, tx); err != nil {
		if rejected {
			c.releaseNonce(ctx, nonce)
		} else {
			c.logger.Error("broadcast outcome unknown, nonce kept",
				zap.Uint64("nonce", nonce),
				zap.String("txid", tx.Hash().Hex()),
				zap.Error(err))
		}
		return "", err
	}

	c.logger.Info("WBGL sent",
		zap.String("address", address),
		zap.String("amount", amount.String()),
		zap.Uint64("nonce", nonce),
		zap.String("txid", tx.Hash().Hex()))
	return tx.Hash().Hex(), nil
}

// broadcast submits a signed transaction, failing over across endpoints.
// The hash is fixed by the signature so resubmitting it elsewhere is harmless.
// rejected reports that every endpoint that was reached refused the
// transaction, so no node can hold it.
func (c *Client) broadcast(ctx context.Context, tx *gethtypes.Transaction) (rejected bool, err error) {
	rejected = true
	_, err = withClient(ctx, c, func(ctx context.Context, b ethBackend) (struct{}, error) {
		err := b.SendTransaction(ctx, tx)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "already known") {
			return struct{}{}, nil
		}
		if err != nil && !isRejection(err) {
			rejected = false
		}
		return struct{}{}, err
	})
	return rejected, err
}

// rejectionReasons are txpool errors after which the node has not kept the transaction
var rejectionReasons = []string{
	"insufficient funds",
	"intrinsic gas too low",
	"invalid sender",
	"exceeds block gas limit",
	"gas limit reached",
	"max fee per gas less than block base fee",
	"oversized data",
	"negative value",
}

// isRejection tells a definitive refusal by the node from a failure
// that leaves the broadcast outcome unknown (timeouts, lost connections).
func isRejection(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "replacement transaction underpriced") || strings.Contains(msg, "nonce too low") {
		return false
	}
	if strings.Contains(msg, "transaction underpriced") {
		return true
	}
	for _, reason := range rejectionReasons {
		if strings.Contains(msg, reason) {
			return true
		}
	}
	return false
}

// releaseNonce rewinds the stored nonce after a failed broadcast when the
// chain has not seen the transaction, so the failure leaves no nonce gap.
func (c *Client) releaseNonce(ctx context.Context, nonce uint64) {
	pending, err := c.pendingNonce(ctx)
	if err != nil || pending > nonce {
		return
	}
	if err := c.nonces.Set(ctx, NonceName(c.cfg.ID), strconv.FormatUint(pending, 10)); err != nil {
		c.logger.Error("cannot rewind nonce", zap.Uint64("nonce", nonce), zap.Error(err))
		return
	}
	c.logger.Warn("broadcast failed, nonce rewound", zap.Uint64("nonce", nonce), zap.Uint64("next", pending))
}
