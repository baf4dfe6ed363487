package workers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"gobglrelayer/BGLRPC"
	"gobglrelayer/EVMRPC"
	"gobglrelayer/EVMRPC/ierc20"
	"gobglrelayer/config"
	"gobglrelayer/redis"
	"gobglrelayer/types"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type sentFunds struct {
	Address string
	Amount  decimal.Decimal
}

// mockStore keeps records in memory and remembers every status a conversion was saved with
type mockStore struct {
	mu           sync.Mutex
	data         map[string]string
	transfers    []types.Transfer
	transactions map[string]types.Transaction
	conversions  map[string]types.Conversion
	history      map[string][]types.ConversionStatus
	order        []string

	FindOpenTransferErr error
	// FindOpenTransferFunc, when set, is consulted with the 1-based call count
	FindOpenTransferFunc func(call int) error
	findCalls            int
}

func newMockStore() *mockStore {
	return &mockStore{
		data:         map[string]string{},
		transactions: map[string]types.Transaction{},
		conversions:  map[string]types.Conversion{},
		history:      map[string][]types.ConversionStatus{},
	}
}

func (s *mockStore) Get(ctx context.Context, name string, init func(context.Context) (string, error)) (string, error) {
	s.mu.Lock()
	v, ok := s.data[name]
	s.mu.Unlock()
	if ok {
		return v, nil
	}
	if init == nil {
		return "", nil
	}
	return init(ctx)
}

func (s *mockStore) Set(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = value
	return nil
}

func (s *mockStore) FindOpenTransfer(ctx context.Context, q types.TransferQuery) (*types.Transfer, error) {
	if s.FindOpenTransferErr != nil {
		return nil, s.FindOpenTransferErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.FindOpenTransferFunc != nil {
		if err := s.FindOpenTransferFunc(s.findCalls); err != nil {
			return nil, err
		}
	}
	for _, t := range s.transfers {
		if t.Type != q.Type || !strings.EqualFold(t.From, q.From) {
			continue
		}
		if q.Type == types.AssetWBGL && t.Chain != q.Chain {
			continue
		}
		if !t.Open(q.NotBefore) {
			continue
		}
		found := t
		return &found, nil
	}
	return nil, nil
}

func txKey(typ types.Asset, chain, id string) string {
	return fmt.Sprintf("%s/%s/%s", typ, chain, id)
}

func (s *mockStore) TransactionExists(ctx context.Context, typ types.Asset, chain, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.transactions[txKey(typ, chain, id)]
	return ok, nil
}

func (s *mockStore) CreateTransaction(ctx context.Context, tx *types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := txKey(tx.Type, tx.Chain, tx.ID)
	if _, ok := s.transactions[key]; ok {
		return redis.ErrDuplicate
	}
	if tx.RecordID == "" {
		tx.RecordID = fmt.Sprintf("tx-%d", len(s.transactions)+1)
	}
	s.transactions[key] = *tx
	return nil
}

func (s *mockStore) CreateConversion(ctx context.Context, c *types.Conversion) error {
	s.mu.Lock()
	c.ID = fmt.Sprintf("conv-%d", len(s.conversions)+1)
	if c.Status == "" {
		c.Status = types.StatusPending
	}
	c.CreatedAt = testNow
	s.mu.Unlock()
	return s.SaveConversion(ctx, c)
}

func (s *mockStore) SaveConversion(ctx context.Context, c *types.Conversion) error {
	if !c.Status.Valid() {
		return errors.New("invalid status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversions[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.conversions[c.ID] = *c
	h := s.history[c.ID]
	if len(h) == 0 || h[len(h)-1] != c.Status {
		s.history[c.ID] = append(h, c.Status)
	}
	return nil
}

func (s *mockStore) GetConversion(ctx context.Context, id string) (*types.Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversions[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *mockStore) FindConversions(ctx context.Context, q types.ConversionQuery) ([]*types.Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*types.Conversion
	for _, id := range s.order {
		c := s.conversions[id]
		if (q.Chain != "" && c.Chain != q.Chain) || (q.Type != "" && c.Type != q.Type) || (q.Status != "" && c.Status != q.Status) {
			continue
		}
		res = append(res, &c)
	}
	return res, nil
}

func (s *mockStore) onlyConversion(t *testing.T) types.Conversion {
	t.Helper()
	require.Len(t, s.conversions, 1)
	return s.conversions[s.order[0]]
}

type mockBGL struct {
	Result      *BGLRPC.ListSinceBlockResult
	Senders     map[string]string
	Balance     decimal.Decimal
	BalanceErr  error
	SendFunc    func(address string, amount decimal.Decimal) (string, error)
	Height      uint64
	listedSince []string
	sent        []sentFunds
}

func (m *mockBGL) ListSinceBlock(ctx context.Context, blockHash string, confirmations int) (*BGLRPC.ListSinceBlockResult, error) {
	m.listedSince = append(m.listedSince, blockHash)
	if m.Result == nil {
		return &BGLRPC.ListSinceBlockResult{}, nil
	}
	return m.Result, nil
}

func (m *mockBGL) GetFromAddressForTransaction(ctx context.Context, txID string) (string, error) {
	from, ok := m.Senders[txID]
	if !ok {
		return "", errors.New("unknown transaction")
	}
	return from, nil
}

func (m *mockBGL) SendToAddress(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	if m.SendFunc != nil {
		if _, err := m.SendFunc(address, amount); err != nil {
			return "", err
		}
	}
	m.sent = append(m.sent, sentFunds{address, amount})
	return fmt.Sprintf("bgltx-%d", len(m.sent)), nil
}

func (m *mockBGL) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return m.Balance, m.BalanceErr
}

func (m *mockBGL) GetBlockCount(ctx context.Context) (uint64, error) {
	return m.Height, nil
}

type mockChain struct {
	id            string
	confirmations uint64
	Head          uint64
	Balance       decimal.Decimal
	BalanceErr    error
	SendFunc      func(address string, amount decimal.Decimal) (string, error)
	Receipts      map[string]*types.Receipt
	Logs          []ierc20.TransferLog
	filtered      [][2]uint64
	sent          []sentFunds

	// SubscribeFunc serves the n-th subscription; nil means no WebSocket endpoint
	SubscribeFunc  func(n int, ch chan<- ierc20.TransferLog) (ethereum.Subscription, error)
	subscribeCalls int
}

func (m *mockChain) ID() string { return m.id }

func (m *mockChain) Confirmations() uint64 { return m.confirmations }

func (m *mockChain) BlockNumber(ctx context.Context) (uint64, error) { return m.Head, nil }

func (m *mockChain) GetWBGLBalance(ctx context.Context) (decimal.Decimal, error) {
	return m.Balance, m.BalanceErr
}

func (m *mockChain) SendWBGL(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	if m.SendFunc != nil {
		if _, err := m.SendFunc(address, amount); err != nil {
			return "", err
		}
	}
	m.sent = append(m.sent, sentFunds{address, amount})
	return fmt.Sprintf("0xwbgl%d", len(m.sent)), nil
}

func (m *mockChain) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	return m.Receipts[txHash], nil
}

func (m *mockChain) FilterTransfers(ctx context.Context, from, to uint64) ([]ierc20.TransferLog, error) {
	m.filtered = append(m.filtered, [2]uint64{from, to})
	var res []ierc20.TransferLog
	for _, l := range m.Logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			res = append(res, l)
		}
	}
	return res, nil
}

func (m *mockChain) SubscribeTransfers(ctx context.Context, ch chan<- ierc20.TransferLog) (ethereum.Subscription, error) {
	m.subscribeCalls++
	if m.SubscribeFunc == nil {
		return nil, EVMRPC.ErrNoSubscription
	}
	return m.SubscribeFunc(m.subscribeCalls, ch)
}

func (m *mockChain) ConvertBaseUnits(raw *big.Int) decimal.Decimal {
	return EVMRPC.FromBaseUnits(raw, 18)
}

func testConfig() *config.Configuration {
	cfg := config.Default()
	cfg.BGL.Confirmations = 6
	cfg.FeePercentage = 1
	cfg.EVM.Chains = []config.ChainConfig{{
		ID:             "eth",
		ChainID:        1,
		Confirmations:  12,
		BlockBatch:     100,
		LookbackBlocks: 1000,
	}}
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *mockStore, *mockBGL, *mockChain) {
	t.Helper()
	store := newMockStore()
	bgl := &mockBGL{Senders: map[string]string{}, Balance: decimal.NewFromInt(1000000)}
	chain := &mockChain{id: "eth", confirmations: 12, Head: 1000, Balance: decimal.NewFromInt(1000000), Receipts: map[string]*types.Receipt{}}

	engine, err := NewEngine(testConfig(), store, bgl, []ChainClient{chain}, zap.NewNop())
	require.NoError(t, err)
	engine.now = func() time.Time { return testNow }
	return engine, store, bgl, chain
}
