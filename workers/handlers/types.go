package handlers

import (
	"context"

	"gobglrelayer/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

type APIStateResponse struct {
	Status        string            `json:"status"`
	Message       string            `json:"message,omitempty"`
	FeePercentage int               `json:"feePercentage"`
	Heights       map[string]uint64 `json:"heights"`
	Checkpoints   map[string]string `json:"checkpoints"`
}

type APIConversionsResponse struct {
	Status      string              `json:"status"`
	Count       int                 `json:"count"`
	Conversions []*types.Conversion `json:"conversions"`
}

type APIConversionResponse struct {
	Status     string            `json:"status"`
	Conversion *types.Conversion `json:"conversion"`
}

type NativeWallet interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetBlockCount(ctx context.Context) (uint64, error)
}

type TokenWallet interface {
	GetWBGLBalance(ctx context.Context) (decimal.Decimal, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type ConversionFinder interface {
	FindConversions(ctx context.Context, q types.ConversionQuery) ([]*types.Conversion, error)
	GetConversion(ctx context.Context, id string) (*types.Conversion, error)
}

type CheckpointReader interface {
	Get(ctx context.Context, name string, init func(context.Context) (string, error)) (string, error)
}

// API serves the read-only operator endpoints
type API struct {
	BGL             NativeWallet
	Chains          map[string]TokenWallet
	Records         ConversionFinder
	Checkpoints     CheckpointReader
	CheckpointNames []string
	FeePercentage   int
	Logger          *zap.Logger
}
