package workers

import (
	"context"
	"errors"
	"fmt"

	"gobglrelayer/EVMRPC"
	"gobglrelayer/EVMRPC/ierc20"
	"gobglrelayer/metrics"
	"gobglrelayer/redis"
	"gobglrelayer/types"

	"go.uber.org/zap"
)

// watchChain follows WBGL deposits on one chain until ctx is done.
// After any failure it waits ResubscribeDelay and starts over from the checkpoint.
func (e *Engine) watchChain(ctx context.Context, chain ChainClient) {
	logger := e.logger.With(zap.String("chain", chain.ID()))
	for {
		err := e.followChain(ctx, chain)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("EVM watcher interrupted, resubscribing", zap.Duration("delay", e.cfg.Engine.ResubscribeDelay), zap.Error(err))
		e.countError("scan_evm_"+chain.ID(), "watcher")
		if !sleepCtx(ctx, e.cfg.Engine.ResubscribeDelay) {
			return
		}
	}
}

func (e *Engine) followChain(ctx context.Context, chain ChainClient) error {
	if err := e.CatchUpEVM(ctx, chain.ID()); err != nil {
		return err
	}

	events := make(chan ierc20.TransferLog, 64)
	sub, err := chain.SubscribeTransfers(ctx, events)
	if errors.Is(err, EVMRPC.ErrNoSubscription) {
		e.logger.Info("no WebSocket endpoint, polling for WBGL deposits", zap.String("chain", chain.ID()))
		e.runEvery(ctx, "scan_evm_"+chain.ID(), e.cfg.Engine.PollInterval, func(ctx context.Context) error {
			return e.CatchUpEVM(ctx, chain.ID())
		})
		return nil
	}
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	// blocks mined between the first catch-up and the subscription
	if err := e.CatchUpEVM(ctx, chain.ID()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case ev := <-events:
			if err := e.HandleTransferEvent(ctx, chain.ID(), ev); err != nil {
				return err
			}
		}
	}
}

// CatchUpEVM replays Transfer logs to the custodial account from the block
// after the checkpoint up to the current head, BlockBatch blocks at a time.
func (e *Engine) CatchUpEVM(ctx context.Context, chainID string) error {
	chain, err := e.chain(chainID)
	if err != nil {
		return err
	}
	last, err := e.lastEVMBlock(ctx, chain)
	if err != nil {
		return err
	}
	head, err := chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	batch := e.chainConfig(chainID).BlockBatch
	if batch == 0 {
		batch = 1
	}
	for from := last + 1; from <= head; from += batch {
		to := from + batch - 1
		if to > head {
			to = head
		}
		e.logger.Debug("scanning blocks", zap.String("chain", chainID), zap.Uint64("from", from), zap.Uint64("to", to))

		logs, err := chain.FilterTransfers(ctx, from, to)
		if err != nil {
			return fmt.Errorf("cannot filter %s logs %d-%d: %w", chainID, from, to, err)
		}
		for _, ev := range logs {
			if err := e.HandleTransferEvent(ctx, chainID, ev); err != nil {
				return err
			}
		}
		if err := e.advanceEVMCheckpoint(ctx, chainID, to, ""); err != nil {
			return err
		}
	}
	return nil
}

// HandleTransferEvent settles one WBGL deposit and then moves the chain
// checkpoint to the block before the event's. The event's own block may hold
// more deposits, so it only counts as processed once a scanned window ends
// past it or an event from a later block is handled. Replays of that block
// are absorbed by the transaction records. An error leaves the checkpoint in
// place for the next catch-up.
func (e *Engine) HandleTransferEvent(ctx context.Context, chainID string, ev ierc20.TransferLog) error {
	if ev.Removed {
		e.logger.Warn("ignoring removed log", zap.String("chain", chainID), zap.String("txid", ev.TxHash.Hex()))
		return nil
	}
	chain, err := e.chain(chainID)
	if err != nil {
		return err
	}
	if err := e.handleWBGLDeposit(ctx, chain, ev); err != nil {
		return fmt.Errorf("cannot handle WBGL deposit %s: %w", ev.TxHash.Hex(), err)
	}
	if ev.BlockNumber == 0 {
		return nil
	}
	return e.advanceEVMCheckpoint(ctx, chainID, ev.BlockNumber-1, ev.BlockHash.Hex())
}

func (e *Engine) handleWBGLDeposit(ctx context.Context, chain ChainClient, ev ierc20.TransferLog) error {
	txHash := ev.TxHash.Hex()
	transfer, err := e.store.FindOpenTransfer(ctx, types.TransferQuery{
		Type:      types.AssetWBGL,
		Chain:     chain.ID(),
		From:      ev.From.Hex(),
		NotBefore: e.transferCutoff(),
	})
	if err != nil {
		return err
	}
	amount := chain.ConvertBaseUnits(ev.Value)
	if transfer == nil {
		e.logger.Warn("unmatched WBGL deposit",
			zap.String("chain", chain.ID()),
			zap.String("txid", txHash),
			zap.String("from", ev.From.Hex()),
			zap.String("amount", amount.String()))
		metrics.UnmatchedDeposits.WithLabelValues(chain.ID(), string(types.AssetWBGL)).Inc()
		return nil
	}

	exists, err := e.store.TransactionExists(ctx, types.AssetWBGL, chain.ID(), txHash)
	if err != nil || exists {
		return err
	}

	transaction := &types.Transaction{
		ID:         txHash,
		Type:       types.AssetWBGL,
		Chain:      chain.ID(),
		TransferID: transfer.ID,
		Address:    ev.From.Hex(),
		Amount:     amount,
		BlockHash:  ev.BlockHash.Hex(),
		Time:       e.now().UTC(),
	}
	if err := e.store.CreateTransaction(ctx, transaction); err != nil {
		if errors.Is(err, redis.ErrDuplicate) {
			return nil
		}
		return err
	}
	metrics.DepositsDetected.WithLabelValues(chain.ID(), string(types.AssetWBGL)).Inc()

	conversion := &types.Conversion{
		Type:          types.AssetBGL,
		Chain:         chain.ID(),
		TransferID:    transfer.ID,
		TransactionID: transaction.RecordID,
		Address:       transfer.To,
		Amount:        amount,
		SendAmount:    deductFee(amount, e.cfg.FeePercentage),
	}
	if err := e.store.CreateConversion(ctx, conversion); err != nil {
		// the transaction exists now, a retry would skip this deposit
		e.logger.Error("deposit recorded without conversion", zap.String("chain", chain.ID()), zap.String("txid", txHash), zap.Error(err))
		e.countError("scan_evm_"+chain.ID(), "conversion")
		return nil
	}

	e.logger.Info("WBGL deposit",
		zap.String("chain", chain.ID()),
		zap.String("txid", txHash),
		zap.String("from", ev.From.Hex()),
		zap.String("to", transfer.To),
		zap.String("amount", amount.String()),
		zap.String("sendAmount", conversion.SendAmount.String()))

	e.sendBGL(ctx, chain, conversion, transfer.From)
	return nil
}

// sendBGL settles a WBGL deposit. BGL sends count as final once the node
// accepts them, the conversion goes straight to sent.
func (e *Engine) sendBGL(ctx context.Context, chain ChainClient, c *types.Conversion, refundAddress string) {
	balance, err := e.bgl.GetBalance(ctx)
	if err != nil {
		e.failSend(ctx, c, fmt.Errorf("cannot read BGL reserve: %w", err))
		e.returnWBGL(ctx, chain, c, refundAddress)
		return
	}
	metrics.ReserveBalance.WithLabelValues("bgl", string(types.AssetBGL)).Set(balance.InexactFloat64())

	if c.SendAmount.GreaterThan(balance) {
		e.logger.Warn("insufficient BGL reserve, returning WBGL",
			zap.String("chain", chain.ID()),
			zap.String("reserve", balance.String()),
			zap.String("sendAmount", c.SendAmount.String()),
			zap.String("address", refundAddress))
		e.returnWBGL(ctx, chain, c, refundAddress)
		return
	}

	txID, err := e.bgl.SendToAddress(ctx, c.Address, c.SendAmount)
	if err != nil {
		e.failSend(ctx, c, err)
		e.returnWBGL(ctx, chain, c, refundAddress)
		return
	}
	c.TxID = txID
	if err := e.setStatus(ctx, c, types.StatusSent); err != nil {
		e.logger.Error("BGL sent but conversion not saved", zap.String("conversion", c.ID), zap.String("txid", txID), zap.Error(err))
		e.countError("scan_evm_"+chain.ID(), "save")
	}
}
