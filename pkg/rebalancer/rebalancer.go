// Package rebalancer skims fresh deposits off the hot wallet into cold
// storage. Only the part of a deposit exceeding the hot wallet floor is
// eligible, and a configured share of it stays hot to serve withdrawals.
package rebalancer

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/banano"
)

var hundred = decimal.NewFromInt(100)

// Config tunes the split
type Config struct {
	// HotWalletMinimum is the BAN floor kept liquid in the hot wallet
	HotWalletMinimum decimal.Decimal
	// ColdRatio is the percentage of the transferable part kept hot
	ColdRatio int64
	// HotWallet and ColdWallet are the two custody accounts
	HotWallet  string
	ColdWallet string
}

// Rebalancer moves deposit overflow to cold storage
type Rebalancer struct {
	node   banano.Client
	cfg    Config
	logger *zap.Logger
}

func New(node banano.Client, cfg Config, logger *zap.Logger) *Rebalancer {
	return &Rebalancer{node: node, cfg: cfg, logger: logger}
}

// AmountToCold computes how much BAN of a fresh deposit moves to cold
// storage, given the hot wallet balance before that deposit landed.
func (r *Rebalancer) AmountToCold(hotBefore, deposit decimal.Decimal) decimal.Decimal {
	total := hotBefore.Add(deposit)
	excess := total.Sub(r.cfg.HotWalletMinimum)
	if excess.Sign() <= 0 {
		return decimal.Zero
	}
	transferable := excess
	if deposit.LessThan(transferable) {
		transferable = deposit
	}
	// only whole BAN moves to cold storage
	transferable = transferable.Floor()
	if transferable.Sign() <= 0 {
		return decimal.Zero
	}
	keepRatio := decimal.NewFromInt(r.cfg.ColdRatio).Div(hundred)
	return transferable.Sub(transferable.Mul(keepRatio))
}

// AfterDeposit rebalances the hot wallet right after a deposit was
// pocketed. Returns the amount moved to cold storage in raw.
func (r *Rebalancer) AfterDeposit(ctx context.Context, depositRaw *big.Int) (*big.Int, error) {
	hotNow, err := r.node.Balance(ctx, r.cfg.HotWallet)
	if err != nil {
		return nil, err
	}
	hotBefore := banano.FromRaw(new(big.Int).Sub(hotNow, depositRaw))
	deposit := banano.FromRaw(depositRaw)

	amount := r.AmountToCold(hotBefore, deposit)
	if amount.Sign() <= 0 {
		r.logger.Debug("Nothing to move to cold storage",
			zap.String("hot", hotBefore.String()),
			zap.String("deposit", deposit.String()))
		return big.NewInt(0), nil
	}

	raw, err := banano.ToRaw(amount)
	if err != nil {
		return nil, err
	}
	hash, err := r.node.Send(ctx, r.cfg.ColdWallet, raw)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Moved deposit overflow to cold storage",
		zap.String("amount", amount.String()),
		zap.String("cold_wallet", r.cfg.ColdWallet),
		zap.String("hash", hash))
	return raw, nil
}
