package workers

import (
	"context"

	"gobglrelayer/metrics"
	"gobglrelayer/types"

	"go.uber.org/zap"
)

// CheckPendingConversions marks pending WBGL sends on chainID as sent once
// their receipt is Confirmations blocks deep. Transfers reverted on chain
// go to error instead. Anything else stays pending for the next pass.
func (e *Engine) CheckPendingConversions(ctx context.Context, chainID string) error {
	chain, err := e.chain(chainID)
	if err != nil {
		return err
	}
	conversions, err := e.store.FindConversions(ctx, types.ConversionQuery{
		Chain:  chainID,
		Type:   types.AssetWBGL,
		Status: types.StatusPending,
	})
	if err != nil {
		return err
	}
	metrics.PendingConversions.WithLabelValues(chainID).Set(float64(len(conversions)))

	var current uint64
	for _, c := range conversions {
		if c.TxID == "" {
			continue
		}
		receipt, err := chain.TransactionReceipt(ctx, c.TxID)
		if err != nil {
			e.logger.Warn("cannot get receipt", zap.String("chain", chainID), zap.String("txid", c.TxID), zap.Error(err))
			continue
		}
		if receipt == nil {
			continue
		}
		if current == 0 {
			if current, err = chain.BlockNumber(ctx); err != nil {
				return err
			}
		}
		if current < receipt.BlockNumber || current-receipt.BlockNumber < chain.Confirmations() {
			continue
		}

		c.Receipt = receipt
		status := types.StatusSent
		if receipt.Status == 0 {
			e.logger.Error("WBGL transfer reverted", zap.String("conversion", c.ID), zap.String("chain", chainID), zap.String("txid", c.TxID))
			status = types.StatusError
		}
		if err := e.setStatus(ctx, c, status); err != nil {
			return err
		}
		e.logger.Info("WBGL transfer confirmed", zap.String("conversion", c.ID), zap.String("chain", chainID), zap.String("txid", c.TxID), zap.String("status", string(status)))
	}
	return nil
}
