package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SwapsTotal counts swaps by direction and status
	SwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wban_swaps_total",
			Help: "Total number of swaps",
		},
		[]string{"direction", "status"},
	)

	// DepositsTotal counts ingested BAN deposits
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wban_deposits_total",
			Help: "Total number of BAN deposits ingested",
		},
		[]string{"status"},
	)

	// WithdrawalsTotal counts withdrawals by status
	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wban_withdrawals_total",
			Help: "Total number of BAN withdrawals",
		},
		[]string{"status"},
	)

	// PendingWithdrawals tracks withdrawals waiting on hot wallet liquidity
	PendingWithdrawals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wban_pending_withdrawals",
			Help: "Number of withdrawals waiting for hot wallet liquidity",
		},
	)

	// ClaimsTotal counts claim requests by result
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wban_claims_total",
			Help: "Total number of claim requests",
		},
		[]string{"result"},
	)

	// BlocksScanned counts destination chain blocks scanned for burns
	BlocksScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wban_blocks_scanned_total",
			Help: "Total number of destination chain blocks scanned",
		},
	)

	// HotWalletBalance tracks the hot wallet balance in BAN
	HotWalletBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wban_hot_wallet_balance",
			Help: "Current hot wallet balance in BAN",
		},
	)

	// JobsTotal counts queue jobs by name and status
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wban_jobs_total",
			Help: "Total number of queue jobs processed",
		},
		[]string{"name", "status"},
	)
)
