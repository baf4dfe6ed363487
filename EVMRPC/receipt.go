package EVMRPC

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"gobglrelayer/EVMRPC/ierc20"
	"gobglrelayer/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

// TransactionReceipt returns nil without error while the transaction is not mined
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	hash := common.HexToHash(txHash)
	receipt, err := withClient(ctx, c, func(ctx context.Context, b ethBackend) (*gethtypes.Receipt, error) {
		r, err := b.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return r, err
	})
	if err != nil || receipt == nil {
		return nil, err
	}

	res := &types.Receipt{
		TxHash:    receipt.TxHash.Hex(),
		BlockHash: receipt.BlockHash.Hex(),
		Status:    receipt.Status,
		GasUsed:   receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res, nil
}

func (c *Client) transferQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{ierc20.TransferEventID},
			nil,
			{common.BytesToHash(c.account.Bytes())},
		},
	}
}

// FilterTransfers returns token transfers to the custodial account in [from, to]
func (c *Client) FilterTransfers(ctx context.Context, from, to uint64) ([]ierc20.TransferLog, error) {
	q := c.transferQuery()
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(to)

	logs, err := withClient(ctx, c, func(ctx context.Context, b ethBackend) ([]gethtypes.Log, error) {
		return b.FilterLogs(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	res := make([]ierc20.TransferLog, 0, len(logs))
	for _, l := range logs {
		ev, err := ierc20.ParseTransferLog(l)
		if err != nil {
			c.logger.Warn("skipping undecodable log", zap.String("txid", l.TxHash.Hex()), zap.Error(err))
			continue
		}
		res = append(res, *ev)
	}
	return res, nil
}

// SubscribeTransfers streams new token transfers to the custodial account over
// the WebSocket endpoint. The subscription owns its connection and closes it
// on Unsubscribe or failure.
func (c *Client) SubscribeTransfers(ctx context.Context, ch chan<- ierc20.TransferLog) (ethereum.Subscription, error) {
	if c.cfg.WSURL == "" {
		return nil, ErrNoSubscription
	}
	ws, err := c.dialWS(ctx, c.cfg.WSURL)
	if err != nil {
		return nil, fmt.Errorf("chain %s: cannot dial WebSocket: %w", c.cfg.ID, err)
	}
	logs := make(chan gethtypes.Log, 64)
	inner, err := ws.SubscribeFilterLogs(ctx, c.transferQuery(), logs)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("chain %s: cannot subscribe: %w", c.cfg.ID, err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer ws.Close()
		defer inner.Unsubscribe()
		for {
			select {
			case l := <-logs:
				ev, err := ierc20.ParseTransferLog(l)
				if err != nil {
					c.logger.Warn("skipping undecodable log", zap.String("txid", l.TxHash.Hex()), zap.Error(err))
					continue
				}
				select {
				case ch <- *ev:
				case <-quit:
					return nil
				}
			case err := <-inner.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}
