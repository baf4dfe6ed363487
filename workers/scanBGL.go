package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gobglrelayer/BGLRPC"
	"gobglrelayer/metrics"
	"gobglrelayer/redis"
	"gobglrelayer/types"

	"go.uber.org/zap"
)

// ScanBGL is one pass of the BGL watcher: every confirmed wallet receive since
// the checkpoint is matched and converted, then the checkpoint moves to the
// block the node reported, whatever happened to the single deposits.
func (e *Engine) ScanBGL(ctx context.Context) error {
	blockHash, err := e.store.Get(ctx, BGLCheckpointName, nil)
	if err != nil {
		return fmt.Errorf("cannot read BGL checkpoint: %w", err)
	}

	confirmations := e.cfg.BGL.Confirmations
	result, err := e.bgl.ListSinceBlock(ctx, blockHash, confirmations)
	if err != nil {
		return fmt.Errorf("cannot list BGL transactions since %q: %w", blockHash, err)
	}

	for _, tx := range result.Transactions {
		if tx.Category != "receive" || tx.Confirmations < int64(confirmations) {
			continue
		}
		if err := e.handleBGLDeposit(ctx, tx); err != nil {
			e.logger.Error("cannot handle BGL deposit", zap.String("txid", tx.TxID), zap.Error(err))
			e.countError("scan_bgl", "deposit")
		}
	}

	if result.LastBlock == "" {
		return nil
	}
	if err := e.store.Set(ctx, BGLCheckpointName, result.LastBlock); err != nil {
		return fmt.Errorf("cannot save BGL checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) handleBGLDeposit(ctx context.Context, tx BGLRPC.Transaction) error {
	transfer, err := e.store.FindOpenTransfer(ctx, types.TransferQuery{
		Type:      types.AssetBGL,
		From:      tx.Address,
		NotBefore: e.transferCutoff(),
	})
	if err != nil {
		return err
	}
	if transfer == nil {
		e.logger.Warn("unmatched BGL deposit",
			zap.String("txid", tx.TxID),
			zap.String("address", tx.Address),
			zap.String("amount", tx.Amount.String()))
		metrics.UnmatchedDeposits.WithLabelValues("bgl", string(types.AssetBGL)).Inc()
		return nil
	}
	chain, err := e.chain(transfer.Chain)
	if err != nil {
		return fmt.Errorf("transfer %s: %w", transfer.ID, err)
	}

	exists, err := e.store.TransactionExists(ctx, types.AssetBGL, "", tx.TxID)
	if err != nil || exists {
		return err
	}

	from, err := e.bgl.GetFromAddressForTransaction(ctx, tx.TxID)
	if err != nil {
		return err
	}

	transaction := &types.Transaction{
		ID:         tx.TxID,
		Type:       types.AssetBGL,
		TransferID: transfer.ID,
		Address:    from,
		Amount:     tx.Amount,
		BlockHash:  tx.BlockHash,
		Time:       time.Unix(tx.Time, 0).UTC(),
	}
	if err := e.store.CreateTransaction(ctx, transaction); err != nil {
		if errors.Is(err, redis.ErrDuplicate) {
			return nil
		}
		return err
	}
	metrics.DepositsDetected.WithLabelValues("bgl", string(types.AssetBGL)).Inc()

	conversion := &types.Conversion{
		Type:          types.AssetWBGL,
		Chain:         chain.ID(),
		TransferID:    transfer.ID,
		TransactionID: transaction.RecordID,
		Address:       transfer.To,
		Amount:        tx.Amount,
		SendAmount:    deductFee(tx.Amount, e.cfg.FeePercentage),
	}
	if err := e.store.CreateConversion(ctx, conversion); err != nil {
		return fmt.Errorf("deposit %s recorded without conversion: %w", tx.TxID, err)
	}

	e.logger.Info("BGL deposit",
		zap.String("txid", tx.TxID),
		zap.String("from", from),
		zap.String("to", transfer.To),
		zap.String("chain", chain.ID()),
		zap.String("amount", tx.Amount.String()),
		zap.String("sendAmount", conversion.SendAmount.String()))

	e.sendWBGL(ctx, chain, conversion, from)
	return nil
}

// sendWBGL settles a BGL deposit on chain, refunding to refundAddress when
// the reserve is short or the send fails. The conversion stays pending until
// the confirmation tracker sees enough blocks on top of the transfer.
func (e *Engine) sendWBGL(ctx context.Context, chain ChainClient, c *types.Conversion, refundAddress string) {
	balance, err := chain.GetWBGLBalance(ctx)
	if err != nil {
		e.failSend(ctx, c, fmt.Errorf("cannot read WBGL reserve: %w", err))
		e.returnBGL(ctx, c, refundAddress)
		return
	}
	metrics.ReserveBalance.WithLabelValues(chain.ID(), string(types.AssetWBGL)).Set(balance.InexactFloat64())

	if c.SendAmount.GreaterThan(balance) {
		e.logger.Warn("insufficient WBGL reserve, returning BGL",
			zap.String("chain", chain.ID()),
			zap.String("reserve", balance.String()),
			zap.String("sendAmount", c.SendAmount.String()),
			zap.String("address", refundAddress))
		e.returnBGL(ctx, c, refundAddress)
		return
	}

	txID, err := chain.SendWBGL(ctx, c.Address, c.SendAmount)
	if err != nil {
		e.failSend(ctx, c, err)
		e.returnBGL(ctx, c, refundAddress)
		return
	}
	c.TxID = txID
	if err := e.store.SaveConversion(ctx, c); err != nil {
		e.logger.Error("WBGL sent but conversion not saved", zap.String("conversion", c.ID), zap.String("txid", txID), zap.Error(err))
		e.countError("scan_bgl", "save")
	}
}
