package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsDetected counts matched inbound deposits by source chain and asset
	DepositsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_deposits_detected_total",
			Help: "Total number of inbound deposits matched to a transfer request",
		},
		[]string{"chain", "asset"},
	)

	// UnmatchedDeposits counts deposits left with the custodian because no open transfer exists
	UnmatchedDeposits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_unmatched_deposits_total",
			Help: "Total number of deposits without an open transfer request",
		},
		[]string{"chain", "asset"},
	)

	// ConversionsTotal counts conversion status transitions
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_conversions_total",
			Help: "Total number of conversion status changes",
		},
		[]string{"chain", "asset", "status"},
	)

	// RefundsTotal counts refund attempts by result
	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_refunds_total",
			Help: "Total number of refunds of original deposits",
		},
		[]string{"chain", "asset", "result"},
	)

	// ReserveBalance tracks the custodial balance seen at the last reserve check
	ReserveBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_reserve_balance",
			Help: "Custodial reserve balance by chain and asset",
		},
		[]string{"chain", "asset"},
	)

	// LastProcessedBlock tracks the block checkpoint of EVM watchers
	LastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_last_processed_block",
			Help: "Last processed block number by chain",
		},
		[]string{"chain"},
	)

	// PendingConversions tracks conversions waiting for confirmations
	PendingConversions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_pending_conversions",
			Help: "Number of WBGL conversions waiting for confirmation depth",
		},
		[]string{"chain"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
