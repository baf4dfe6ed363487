package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset identifies one side of the bridge.
// BGL is the native coin, WBGL is the ERC-20 representation on an EVM chain.
type Asset string

const (
	AssetBGL  Asset = "bgl"
	AssetWBGL Asset = "wbgl"
)

type ConversionStatus string

const (
	StatusPending  ConversionStatus = "pending"  // created, outbound action not resolved yet
	StatusSent     ConversionStatus = "sent"     // outbound submitted (and confirmed for WBGL)
	StatusReturned ConversionStatus = "returned" // refund of the original deposit submitted
	StatusError    ConversionStatus = "error"    // failed, needs operator attention
)

var ConversionStatuses = []ConversionStatus{StatusPending, StatusSent, StatusReturned, StatusError}

func (s ConversionStatus) Valid() bool {
	for _, v := range ConversionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Transfer is a standing user request to convert funds in one direction.
// Type is the asset the user deposits. Chain is the EVM chain involved
// (destination for bgl transfers, source for wbgl transfers).
// Transfers are written by the front end, the relayer only reads them.
type Transfer struct {
	ID        string    `json:"id"`
	Type      Asset     `json:"type"`
	Chain     string    `json:"chain"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open reports whether the transfer may still be matched against deposits.
func (t *Transfer) Open(notBefore time.Time) bool {
	return !t.UpdatedAt.Before(notBefore)
}

// Transaction is one inbound deposit seen on chain, (Type, Chain, ID) is unique.
type Transaction struct {
	ID         string          `json:"id"` // native txid or EVM tx hash
	RecordID   string          `json:"recordId"`
	Type       Asset           `json:"type"`
	Chain      string          `json:"chain,omitempty"`
	TransferID string          `json:"transfer"`
	Address    string          `json:"address"`
	Amount     decimal.Decimal `json:"amount"`
	BlockHash  string          `json:"blockHash"`
	Time       time.Time       `json:"time"`
}

// Receipt keeps the parts of an EVM receipt the bridge needs for auditing.
type Receipt struct {
	TxHash      string `json:"transactionHash"`
	BlockHash   string `json:"blockHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Status      uint64 `json:"status"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Conversion is the outbound settlement of one Transaction.
// Type is the outbound asset.
type Conversion struct {
	ID            string           `json:"id"`
	Type          Asset            `json:"type"`
	Chain         string           `json:"chain"`
	TransferID    string           `json:"transfer"`
	TransactionID string           `json:"transaction"`
	Address       string           `json:"address"`
	Amount        decimal.Decimal  `json:"amount"`
	SendAmount    decimal.Decimal  `json:"sendAmount"`
	Status        ConversionStatus `json:"status"`
	TxID          string           `json:"txid,omitempty"`
	ReturnTxID    string           `json:"returnTxid,omitempty"`
	Receipt       *Receipt         `json:"receipt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// TransferQuery selects an open Transfer for a deposit.
// From is matched case-insensitively for wbgl transfers.
type TransferQuery struct {
	Type      Asset
	Chain     string
	From      string
	NotBefore time.Time
}

// ConversionQuery filters conversions; empty fields match everything.
type ConversionQuery struct {
	Chain  string
	Type   Asset
	Status ConversionStatus
}
