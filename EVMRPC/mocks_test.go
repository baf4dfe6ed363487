package EVMRPC

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"gobglrelayer/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type mockBackend struct {
	chainID      int64
	pendingNonce uint64
	gasPrice     int64
	gasEstimate  uint64

	CallContractFunc       func(msg ethereum.CallMsg) ([]byte, error)
	SendTransactionFunc    func(tx *gethtypes.Transaction) error
	TransactionReceiptFunc func(hash common.Hash) (*gethtypes.Receipt, error)
	FilterLogsFunc         func(q ethereum.FilterQuery) ([]gethtypes.Log, error)

	mu   sync.Mutex
	sent []*gethtypes.Transaction
}

func (m *mockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(m.chainID), nil
}

func (m *mockBackend) BlockNumber(ctx context.Context) (uint64, error) { return 100, nil }

func (m *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return m.pendingNonce, nil
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(m.gasPrice), nil
}

func (m *mockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return m.gasEstimate, nil
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	if m.SendTransactionFunc != nil {
		if err := m.SendTransactionFunc(tx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, tx)
	m.mu.Unlock()
	return nil
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(hash)
	}
	return nil, ethereum.NotFound
}

func (m *mockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.CallContractFunc != nil {
		return m.CallContractFunc(msg)
	}
	return nil, errors.New("execution reverted")
}

func (m *mockBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	if m.FilterLogsFunc != nil {
		return m.FilterLogsFunc(q)
	}
	return nil, nil
}

func (m *mockBackend) Close() {}

type memNonceStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemNonceStore() *memNonceStore {
	return &memNonceStore{values: map[string]string{}}
}

func (s *memNonceStore) Get(ctx context.Context, name string, init func(context.Context) (string, error)) (string, error) {
	s.mu.Lock()
	v, ok := s.values[name]
	s.mu.Unlock()
	if ok {
		return v, nil
	}
	if init == nil {
		return "", nil
	}
	return init(ctx)
}

func (s *memNonceStore) Set(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		ID:                 "eth",
		ChainID:            1,
		RPCList:            []string{"https://rpc-a.example", "https://rpc-b.example"},
		ContractAddress:    "0x2bA64EFB7A4Ec8983E22A49c81fa216AC33f383A",
		Confirmations:      12,
		Decimals:           18,
		GasPricePercent:    125,
		GasLimitMultiplier: 2,
	}
}

func testAccount(t *testing.T) common.Address {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey)
}

// newTestClient wires one mock backend per configured endpoint
func newTestClient(t *testing.T, nonces NonceStore, backends ...*mockBackend) *Client {
	t.Helper()
	cfg := testChainConfig()
	require.Len(t, backends, len(cfg.RPCList))

	c, err := NewClient(cfg, testAccount(t).Hex(), "0x"+testKeyHex, nonces, zap.NewNop())
	require.NoError(t, err)

	byURL := map[string]ethBackend{}
	for i, rawURL := range cfg.RPCList {
		byURL[rawURL] = backends[i]
	}
	c.dial = func(ctx context.Context, rawURL string) (ethBackend, error) {
		return byURL[rawURL], nil
	}
	return c
}

func newMockBackend() *mockBackend {
	return &mockBackend{chainID: 1, pendingNonce: 7, gasPrice: 100, gasEstimate: 30000}
}

// mockSubscriber hands its log channel to the test and fails when fail is sent an error
type mockSubscriber struct {
	query  ethereum.FilterQuery
	logs   chan<- gethtypes.Log
	fail   chan error
	closed chan struct{}
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{fail: make(chan error, 1), closed: make(chan struct{})}
}

func (m *mockSubscriber) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	m.query, m.logs = q, ch
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case err := <-m.fail:
			return err
		case <-quit:
			return nil
		}
	}), nil
}

func (m *mockSubscriber) Close() { close(m.closed) }
