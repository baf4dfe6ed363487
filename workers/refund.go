package workers

import (
	"context"

	"gobglrelayer/metrics"
	"gobglrelayer/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type sendFunc func(ctx context.Context, address string, amount decimal.Decimal) (string, error)

// returnFunds sends the gross deposit back to address. The conversion is
// saved as returned before sending; any failure leaves it in error for
// an operator, refunds are never retried.
func (e *Engine) returnFunds(ctx context.Context, c *types.Conversion, asset types.Asset, address string, send sendFunc) {
	logger := e.logger.With(
		zap.String("conversion", c.ID),
		zap.String("chain", c.Chain),
		zap.String("asset", string(asset)),
		zap.String("address", address),
		zap.String("amount", c.Amount.String()))

	err := e.setStatus(ctx, c, types.StatusReturned)
	if err == nil {
		c.ReturnTxID, err = send(ctx, address, c.Amount)
	}
	if err == nil {
		err = e.store.SaveConversion(ctx, c)
	}
	if err != nil {
		logger.Error("error returning deposit", zap.Error(err))
		metrics.RefundsTotal.WithLabelValues(c.Chain, string(asset), "failed").Inc()
		if err := e.setStatus(ctx, c, types.StatusError); err != nil {
			logger.Error("cannot save conversion", zap.Error(err))
		}
		return
	}

	logger.Info("deposit returned", zap.String("txid", c.ReturnTxID))
	metrics.RefundsTotal.WithLabelValues(c.Chain, string(asset), "ok").Inc()
}

// returnBGL refunds a BGL deposit whose WBGL leg failed
func (e *Engine) returnBGL(ctx context.Context, c *types.Conversion, address string) {
	e.returnFunds(ctx, c, types.AssetBGL, address, e.bgl.SendToAddress)
}

// returnWBGL refunds a WBGL deposit on its source chain
func (e *Engine) returnWBGL(ctx context.Context, chain ChainClient, c *types.Conversion, address string) {
	e.returnFunds(ctx, c, types.AssetWBGL, address, chain.SendWBGL)
}

// failSend marks c as error after a failed outbound send
func (e *Engine) failSend(ctx context.Context, c *types.Conversion, cause error) {
	e.logger.Error("error sending conversion",
		zap.String("conversion", c.ID),
		zap.String("chain", c.Chain),
		zap.String("asset", string(c.Type)),
		zap.String("address", c.Address),
		zap.String("amount", c.SendAmount.String()),
		zap.Error(cause))
	if err := e.setStatus(ctx, c, types.StatusError); err != nil {
		e.logger.Error("cannot save conversion", zap.String("conversion", c.ID), zap.Error(err))
	}
}
