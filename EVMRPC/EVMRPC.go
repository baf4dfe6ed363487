package EVMRPC

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"

	"gobglrelayer/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var ErrNoSubscription = errors.New("no WebSocket endpoint configured")

// ethBackend is the part of ethclient.Client the bridge uses
type ethBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	Close()
}

type logSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error)
	Close()
}

// NonceStore persists the next nonce of the custodial account
type NonceStore interface {
	Get(ctx context.Context, name string, init func(context.Context) (string, error)) (string, error)
	Set(ctx context.Context, name, value string) error
}

func dialBackend(ctx context.Context, rawURL string) (ethBackend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func dialSubscriber(ctx context.Context, rawURL string) (logSubscriber, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Client is the WBGL side of the bridge on one EVM chain.
// Reads fail over across cfg.RPCList in order.
type Client struct {
	cfg      config.ChainConfig
	account  common.Address
	key      *ecdsa.PrivateKey
	contract common.Address
	nonces   NonceStore
	logger   *zap.Logger

	dial   func(ctx context.Context, rawURL string) (ethBackend, error)
	dialWS func(ctx context.Context, rawURL string) (logSubscriber, error)

	mu       sync.Mutex
	backends map[string]ethBackend

	// held from nonce read until broadcast
	sendMu   sync.Mutex
	chainID  *big.Int
	decimals int32
}

func NewClient(cfg config.ChainConfig, account, privateKey string, nonces NonceStore, logger *zap.Logger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	derived := crypto.PubkeyToAddress(key.PublicKey)
	if !strings.EqualFold(derived.Hex(), account) {
		return nil, fmt.Errorf("private key belongs to %s, not %s", derived.Hex(), account)
	}
	if len(cfg.RPCList) == 0 {
		return nil, fmt.Errorf("chain %s: no RPC endpoints", cfg.ID)
	}

	return &Client{
		cfg:      cfg,
		account:  derived,
		key:      key,
		contract: common.HexToAddress(cfg.ContractAddress),
		nonces:   nonces,
		logger:   logger.With(zap.String("component", "evmrpc"), zap.String("chain", cfg.ID)),
		dial:     dialBackend,
		dialWS:   dialSubscriber,
		backends: make(map[string]ethBackend),
		chainID:  big.NewInt(cfg.ChainID),
		decimals: int32(cfg.Decimals),
	}, nil
}

// Init checks the node chain id and reads the token decimals,
// keeping the configured decimals when the contract call fails.
func (c *Client) Init(ctx context.Context) error {
	chainID, err := withClient(ctx, c, func(ctx context.Context, b ethBackend) (*big.Int, error) {
		return b.ChainID(ctx)
	})
	if err != nil {
		return err
	}
	if chainID.Cmp(c.chainID) != 0 {
		return fmt.Errorf("chain %s: node reports chain id %s, configured %s", c.cfg.ID, chainID, c.chainID)
	}

	decimals, err := c.tokenDecimals(ctx)
	if err != nil {
		c.logger.Warn("cannot read token decimals, using configured value", zap.Int("decimals", c.cfg.Decimals), zap.Error(err))
		return nil
	}
	c.decimals = int32(decimals)
	return nil
}

func (c *Client) ID() string {
	return c.cfg.ID
}

func (c *Client) Confirmations() uint64 {
	return uint64(c.cfg.Confirmations)
}

func (c *Client) Account() common.Address {
	return c.account
}

func (c *Client) backend(ctx context.Context, rawURL string) (ethBackend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.backends[rawURL]; ok {
		return b, nil
	}
	b, err := c.dial(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	c.backends[rawURL] = b
	return b, nil
}

func endpointHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}
	return u.Host
}

// withClient runs f against each endpoint until one succeeds
func withClient[T any](ctx context.Context, c *Client, f func(ctx context.Context, b ethBackend) (T, error)) (res T, err error) {
	err = errors.New("no RPC endpoint available")
	for _, rawURL := range c.cfg.RPCList {
		var b ethBackend
		b, err = c.backend(ctx, rawURL)
		if err != nil {
			c.logger.Warn("error connecting to RPC", zap.String("endpoint", endpointHost(rawURL)), zap.Error(err))
			continue
		}

		callCtx, cancel := c.callContext(ctx)
		res, err = f(callCtx, b)
		cancel()
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		c.logger.Warn("RPC call failed", zap.String("endpoint", endpointHost(rawURL)), zap.Error(err))
	}
	return res, fmt.Errorf("chain %s: %w", c.cfg.ID, err)
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RPCTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RPCTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return withClient(ctx, c, func(ctx context.Context, b ethBackend) (uint64, error) {
		return b.BlockNumber(ctx)
	})
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for rawURL, b := range c.backends {
		b.Close()
		delete(c.backends, rawURL)
	}
}
