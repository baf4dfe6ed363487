package workers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gobglrelayer/BGLRPC"
	"gobglrelayer/EVMRPC/ierc20"
	"gobglrelayer/config"
	"gobglrelayer/metrics"
	"gobglrelayer/types"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownChain = errors.New("unknown chain")

// Checkpoints is the durable cursor store
type Checkpoints interface {
	Get(ctx context.Context, name string, init func(context.Context) (string, error)) (string, error)
	Set(ctx context.Context, name, value string) error
}

// Records persists transfers, transactions and conversions
type Records interface {
	FindOpenTransfer(ctx context.Context, q types.TransferQuery) (*types.Transfer, error)
	TransactionExists(ctx context.Context, typ types.Asset, chain, id string) (bool, error)
	CreateTransaction(ctx context.Context, tx *types.Transaction) error
	CreateConversion(ctx context.Context, c *types.Conversion) error
	SaveConversion(ctx context.Context, c *types.Conversion) error
	FindConversions(ctx context.Context, q types.ConversionQuery) ([]*types.Conversion, error)
	GetConversion(ctx context.Context, id string) (*types.Conversion, error)
}

type Store interface {
	Checkpoints
	Records
}

// NativeClient is the custodial BGL wallet
type NativeClient interface {
	ListSinceBlock(ctx context.Context, blockHash string, confirmations int) (*BGLRPC.ListSinceBlockResult, error)
	GetFromAddressForTransaction(ctx context.Context, txID string) (string, error)
	SendToAddress(ctx context.Context, address string, amount decimal.Decimal) (string, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetBlockCount(ctx context.Context) (uint64, error)
}

// ChainClient is the custodial WBGL account on one EVM chain
type ChainClient interface {
	ID() string
	Confirmations() uint64
	BlockNumber(ctx context.Context) (uint64, error)
	GetWBGLBalance(ctx context.Context) (decimal.Decimal, error)
	SendWBGL(ctx context.Context, address string, amount decimal.Decimal) (string, error)
	TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
	FilterTransfers(ctx context.Context, from, to uint64) ([]ierc20.TransferLog, error)
	SubscribeTransfers(ctx context.Context, ch chan<- ierc20.TransferLog) (ethereum.Subscription, error)
	ConvertBaseUnits(raw *big.Int) decimal.Decimal
}

// Engine detects deposits on both sides of the bridge and settles them
type Engine struct {
	cfg    *config.Configuration
	store  Store
	bgl    NativeClient
	chains map[string]ChainClient
	order  []string
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(cfg *config.Configuration, store Store, bgl NativeClient, chains []ChainClient, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		store:  store,
		bgl:    bgl,
		chains: make(map[string]ChainClient, len(chains)),
		logger: logger.With(zap.String("component", "engine")),
		now:    time.Now,
	}
	for _, c := range chains {
		if _, ok := cfg.Chain(c.ID()); !ok {
			return nil, fmt.Errorf("%w: %s has no configuration", ErrUnknownChain, c.ID())
		}
		if _, dup := e.chains[c.ID()]; dup {
			return nil, fmt.Errorf("chain %s registered twice", c.ID())
		}
		e.chains[c.ID()] = c
		e.order = append(e.order, c.ID())
	}
	return e, nil
}

func (e *Engine) chain(id string) (ChainClient, error) {
	c, ok := e.chains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, id)
	}
	return c, nil
}

func (e *Engine) chainConfig(id string) config.ChainConfig {
	cfg, _ := e.cfg.Chain(id)
	return cfg
}

// ChainIDs lists the configured EVM chains in configuration order
func (e *Engine) ChainIDs() []string {
	return append([]string(nil), e.order...)
}

// Run starts every watcher and tracker and blocks until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.runEvery(ctx, "scan_bgl", e.cfg.Engine.PollInterval, e.ScanBGL)
		return nil
	})
	for _, id := range e.order {
		chain := e.chains[id]
		g.Go(func() error {
			e.watchChain(ctx, chain)
			return nil
		})
		g.Go(func() error {
			e.runEvery(ctx, "confirmations_"+chain.ID(), e.cfg.Engine.ConfirmationInterval, func(ctx context.Context) error {
				return e.CheckPendingConversions(ctx, chain.ID())
			})
			return nil
		})
	}

	e.logger.Info("engine started", zap.Strings("chains", e.order))
	err := g.Wait()
	e.logger.Info("engine stopped")
	return err
}

func (e *Engine) transferCutoff() time.Time {
	return e.now().Add(-e.cfg.Engine.TransferValidity)
}

func (e *Engine) setStatus(ctx context.Context, c *types.Conversion, status types.ConversionStatus) error {
	c.Status = status
	if err := e.store.SaveConversion(ctx, c); err != nil {
		return err
	}
	metrics.ConversionsTotal.WithLabelValues(c.Chain, string(c.Type), string(status)).Inc()
	return nil
}

func (e *Engine) countError(component, errorType string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
