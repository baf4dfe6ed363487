package BGLRPC

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ybbus/jsonrpc"
	"go.uber.org/zap"
)

// Transaction is one wallet entry of listsinceblock
type Transaction struct {
	TxID          string          `json:"txid"`
	Address       string          `json:"address"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int64           `json:"confirmations"`
	BlockHash     string          `json:"blockhash"`
	Time          int64           `json:"time"`
}

type ListSinceBlockResult struct {
	Transactions []Transaction `json:"transactions"`
	LastBlock    string        `json:"lastblock"`
}

type rawTransaction struct {
	TxID string `json:"txid"`
	Vin  []struct {
		TxID string `json:"txid"`
		Vout uint32 `json:"vout"`
	} `json:"vin"`
	Vout []struct {
		N            uint32 `json:"n"`
		ScriptPubKey struct {
			Address   string   `json:"address"`
			Addresses []string `json:"addresses"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

// RPCClient talks to the BGL node wallet over JSON-RPC.
// Calls are bounded by the HTTP client timeout, the context only
// short-circuits calls made after cancellation.
type RPCClient struct {
	client jsonrpc.RPCClient
	logger *zap.Logger
}

func Endpoint(host string, port int, wallet string) string {
	endpoint := fmt.Sprintf("http://%s:%d", host, port)
	if wallet != "" {
		endpoint += "/wallet/" + wallet
	}
	return endpoint
}

func NewClient(endpoint, user, password string, timeout time.Duration, logger *zap.Logger) *RPCClient {
	headers := map[string]string{}
	if user != "" {
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
	}
	return &RPCClient{
		client: jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
			HTTPClient:    &http.Client{Timeout: timeout},
			CustomHeaders: headers,
		}),
		logger: logger.With(zap.String("component", "bglrpc")),
	}
}

func (c *RPCClient) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.CallFor(out, method, params...); err != nil {
		return fmt.Errorf("BGL RPC %s: %w", method, err)
	}
	return nil
}

func (c *RPCClient) GetBlockCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := c.call(ctx, &count, "getblockcount")
	return count, err
}

// GetBalance returns the custodial wallet balance including unconfirmed funds
func (c *RPCClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := c.call(ctx, &balance, "getbalance", "*", 0)
	return balance, err
}

// ListSinceBlock lists wallet transactions after blockHash (all of them when empty).
// LastBlock of the result is the block confirmations deep from the tip, passing it
// back lists every transaction that had fewer confirmations again.
func (c *RPCClient) ListSinceBlock(ctx context.Context, blockHash string, confirmations int) (*ListSinceBlockResult, error) {
	var hash interface{}
	if blockHash != "" {
		hash = blockHash
	}
	if confirmations < 1 {
		confirmations = 1
	}

	var result ListSinceBlockResult
	if err := c.call(ctx, &result, "listsinceblock", hash, confirmations); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFromAddressForTransaction resolves the address that funded the first input
// of txid. The wallet reports the receiving address only.
func (c *RPCClient) GetFromAddressForTransaction(ctx context.Context, txID string) (string, error) {
	var tx rawTransaction
	if err := c.call(ctx, &tx, "getrawtransaction", txID, true); err != nil {
		return "", err
	}
	if len(tx.Vin) == 0 || tx.Vin[0].TxID == "" {
		return "", fmt.Errorf("transaction %s has no spendable input", txID)
	}
	vin := tx.Vin[0]

	var prev rawTransaction
	if err := c.call(ctx, &prev, "getrawtransaction", vin.TxID, true); err != nil {
		return "", err
	}
	for _, out := range prev.Vout {
		if out.N != vin.Vout {
			continue
		}
		if out.ScriptPubKey.Address != "" {
			return out.ScriptPubKey.Address, nil
		}
		if len(out.ScriptPubKey.Addresses) > 0 {
			return out.ScriptPubKey.Addresses[0], nil
		}
		break
	}
	return "", errors.New("cannot resolve sender address of " + txID)
}

// SendToAddress sends amount BGL, truncated to satoshi precision, and returns the txid
func (c *RPCClient) SendToAddress(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	value := json.Number(amount.Truncate(8).StringFixed(8))

	var txID string
	if err := c.call(ctx, &txID, "sendtoaddress", address, value); err != nil {
		return "", err
	}
	c.logger.Info("BGL sent", zap.String("address", address), zap.String("amount", string(value)), zap.String("txid", txID))
	return txID, nil
}
