package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"gobglrelayer/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewStoreWithPool(&redis.Pool{
		MaxIdle: 2,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", mr.Addr())
		},
	})
	s.now = func() time.Time { return storeNow }
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestCheckpoints(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	value, err := s.Get(ctx, "lastEthBlockNumber", func(context.Context) (string, error) { return "4000", nil })
	require.NoError(t, err)
	assert.Equal(t, "4000", value)
	assert.False(t, mr.Exists("data:lastEthBlockNumber"), "initializer result must not be stored")

	value, err = s.Get(ctx, "lastBglBlockHash", nil)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.Set(ctx, "lastEthBlockNumber", "4512"))
	value, err = s.Get(ctx, "lastEthBlockNumber", func(context.Context) (string, error) {
		return "", errors.New("must not be called")
	})
	require.NoError(t, err)
	assert.Equal(t, "4512", value)
}

func TestTransferLookup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	wbgl := &types.Transfer{Type: types.AssetWBGL, Chain: "eth", From: "0xAbCdEf0000000000000000000000000000000001", To: "bgl1qdest"}
	bgl := &types.Transfer{Type: types.AssetBGL, Chain: "bsc", From: "bgl1qDeposit", To: "0x1111111111111111111111111111111111111111"}
	require.NoError(t, s.UpsertTransfer(ctx, wbgl))
	require.NoError(t, s.UpsertTransfer(ctx, bgl))
	assert.NotEmpty(t, wbgl.ID)
	assert.Equal(t, storeNow, wbgl.UpdatedAt)

	found, err := s.FindOpenTransfer(ctx, types.TransferQuery{Type: types.AssetWBGL, Chain: "eth", From: "0xabcdef0000000000000000000000000000000001", NotBefore: storeNow.Add(-time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, wbgl.ID, found.ID)

	found, err = s.FindOpenTransfer(ctx, types.TransferQuery{Type: types.AssetWBGL, Chain: "bsc", From: wbgl.From, NotBefore: storeNow.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Nil(t, found, "other chain")

	found, err = s.FindOpenTransfer(ctx, types.TransferQuery{Type: types.AssetWBGL, Chain: "eth", From: wbgl.From, NotBefore: storeNow.Add(time.Minute)})
	require.NoError(t, err)
	assert.Nil(t, found, "expired")

	found, err = s.FindOpenTransfer(ctx, types.TransferQuery{Type: types.AssetBGL, From: "bgl1qDeposit", NotBefore: storeNow.Add(-time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "bsc", found.Chain)

	found, err = s.FindOpenTransfer(ctx, types.TransferQuery{Type: types.AssetBGL, From: "bgl1qdeposit", NotBefore: storeNow.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Nil(t, found, "BGL addresses are case-sensitive")

	assert.Error(t, s.UpsertTransfer(ctx, &types.Transfer{Type: "eth", From: "a", To: "b"}))
}

func TestCreateTransactionIsUnique(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tx := &types.Transaction{ID: "0xabc", Type: types.AssetWBGL, Chain: "eth", Amount: decimal.NewFromInt(100)}
	require.NoError(t, s.CreateTransaction(ctx, tx))
	assert.NotEmpty(t, tx.RecordID)

	exists, err := s.TransactionExists(ctx, types.AssetWBGL, "eth", "0xabc")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.TransactionExists(ctx, types.AssetWBGL, "bsc", "0xabc")
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.CreateTransaction(ctx, &types.Transaction{ID: "0xabc", Type: types.AssetWBGL, Chain: "eth"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// same hash on another chain is another deposit
	require.NoError(t, s.CreateTransaction(ctx, &types.Transaction{ID: "0xabc", Type: types.AssetWBGL, Chain: "bsc"}))
}

func TestConversionStatusIndex(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	c := &types.Conversion{
		Type:       types.AssetWBGL,
		Chain:      "eth",
		Address:    "0x1111111111111111111111111111111111111111",
		Amount:     decimal.NewFromInt(100),
		SendAmount: decimal.RequireFromString("99.000"),
	}
	require.NoError(t, s.CreateConversion(ctx, c))
	assert.Equal(t, types.StatusPending, c.Status)
	require.NotEmpty(t, c.ID)

	other := &types.Conversion{Type: types.AssetBGL, Chain: "eth", Amount: decimal.NewFromInt(1), SendAmount: decimal.NewFromInt(1)}
	require.NoError(t, s.CreateConversion(ctx, other))

	pending, err := s.FindConversions(ctx, types.ConversionQuery{Chain: "eth", Type: types.AssetWBGL, Status: types.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].ID)
	assert.Equal(t, "99", pending[0].SendAmount.String())

	all, err := s.FindConversions(ctx, types.ConversionQuery{Status: types.StatusPending})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	c.TxID = "0xsend"
	c.Status = types.StatusSent
	c.Receipt = &types.Receipt{TxHash: "0xsend", BlockNumber: 100, Status: 1}
	require.NoError(t, s.SaveConversion(ctx, c))

	pending, err = s.FindConversions(ctx, types.ConversionQuery{Chain: "eth", Type: types.AssetWBGL, Status: types.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	members, err := mr.SMembers("conversions:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, members)

	loaded, err := s.GetConversion(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, types.StatusSent, loaded.Status)
	assert.EqualValues(t, 100, loaded.Receipt.BlockNumber)

	_, err = s.FindConversions(ctx, types.ConversionQuery{Status: "failed"})
	assert.Error(t, err)

	c.Status = "failed"
	assert.Error(t, s.SaveConversion(ctx, c))
}

func TestSaveConversionErrorLeavesConnectionUsable(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	c := &types.Conversion{Type: types.AssetWBGL, Chain: "eth", Amount: decimal.NewFromInt(5), SendAmount: decimal.NewFromInt(4)}
	require.NoError(t, s.CreateConversion(ctx, c))

	mr.SetError("LOADING Redis is loading the dataset in memory")
	c.Status = types.StatusError
	assert.Error(t, s.SaveConversion(ctx, c))
	mr.SetError("")

	loaded, err := s.GetConversion(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, loaded.Status)

	require.NoError(t, s.SaveConversion(ctx, c))
	members, err := mr.SMembers("conversions:error")
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, members)
	assert.False(t, mr.Exists("conversions:pending"))
}
