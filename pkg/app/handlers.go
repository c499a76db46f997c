package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/internal/metrics"
	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
	"github.com/wBanano/wban-backend/pkg/bsc"
	"github.com/wBanano/wban-backend/pkg/ledger"
	"github.com/wBanano/wban-backend/pkg/queue"
	"github.com/wBanano/wban-backend/pkg/swap"
	"github.com/wBanano/wban-backend/pkg/withdrawal"
)

// depositPayload is the banano-deposit job body. Amount is in raw.
type depositPayload struct {
	From      string    `json:"from"`
	Amount    string    `json:"amount"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// burnPayload is the swap-wban-to-ban job body. Amount is in wei-scale
// token units.
type burnPayload struct {
	BlockchainWallet string    `json:"blockchain_wallet"`
	BanWallet        string    `json:"ban_wallet"`
	Amount           string    `json:"amount"`
	Hash             string    `json:"hash"`
	Block            int64     `json:"block"`
	Timestamp        time.Time `json:"timestamp"`
}

func (a *App) registerHandlers() {
	a.worker.Register(ledger.OpDeposit, a.handleDeposit)
	a.worker.Register(ledger.OpWithdrawal, a.handleWithdrawal)
	a.worker.Register(JobPendingWithdrawal, a.handlePendingWithdrawal)
	a.worker.Register(ledger.OpSwapToWBAN, a.handleSwapToWBAN)
	a.worker.Register(ledger.OpSwapToBAN, a.handleSwapToBAN)
	a.worker.Register(JobScan, a.handleScan)
}

// handleDeposit routes one pocketed deposit. A deposit from an address
// with a claim credits the owner's balance; a pending claim is confirmed
// by it; anything else goes straight back to the sender.
func (a *App) handleDeposit(ctx context.Context, job queue.Job) (string, error) {
	var payload depositPayload
	if err := job.Decode(&payload); err != nil {
		return "", err
	}
	amount, ok := new(big.Int).SetString(payload.Amount, 10)
	if !ok {
		return "", fmt.Errorf("malformed deposit amount %q", payload.Amount)
	}

	barred, err := a.blacklist.Contains(ctx, payload.From)
	if err != nil {
		return "", err
	}
	if barred {
		metrics.DepositsTotal.WithLabelValues("refunded").Inc()
		return a.refundDeposit(ctx, payload, amount, "blacklisted sender")
	}

	owner, err := a.claims.OwnerOf(ctx, payload.From)
	if err != nil {
		return "", err
	}
	if owner == "" {
		// first deposit confirms a pending claim
		confirmed, err := a.claims.Confirm(ctx, payload.From)
		if err != nil {
			return "", err
		}
		if !confirmed {
			metrics.DepositsTotal.WithLabelValues("refunded").Inc()
			return a.refundDeposit(ctx, payload, amount, "unclaimed address")
		}
	}

	err = a.ledger.RecordDeposit(ctx, ledger.Deposit{
		BanWallet: payload.From,
		Amount:    amount,
		Timestamp: payload.Timestamp,
		Hash:      payload.Hash,
	})
	if err != nil {
		return "", err
	}
	metrics.DepositsTotal.WithLabelValues("credited").Inc()

	// rebalancing failures never undo an ingested deposit
	if _, err := a.rebalancer.AfterDeposit(ctx, amount); err != nil {
		a.logger.Warn("Rebalancing after deposit failed",
			zap.String("hash", payload.Hash),
			zap.Error(err))
	}
	return fmt.Sprintf("deposit of %s raw from %s credited", payload.Amount, payload.From), nil
}

func (a *App) refundDeposit(ctx context.Context, payload depositPayload, amount *big.Int, reason string) (string, error) {
	hash, err := a.node.Send(ctx, payload.From, amount)
	if err != nil {
		return "", fmt.Errorf("failed to refund deposit %s: %w", payload.Hash, err)
	}
	a.logger.Warn("Refunded deposit",
		zap.String("from", payload.From),
		zap.String("amount", payload.Amount),
		zap.String("reason", reason),
		zap.String("refund_hash", hash))
	return fmt.Sprintf("deposit refunded: %s", reason), nil
}

func (a *App) handleWithdrawal(ctx context.Context, job queue.Job) (string, error) {
	var req withdrawal.Request
	if err := job.Decode(&req); err != nil {
		return "", err
	}
	return a.processWithdrawal(ctx, req, false)
}

func (a *App) handlePendingWithdrawal(ctx context.Context, job queue.Job) (string, error) {
	metrics.PendingWithdrawals.Dec()
	var req withdrawal.Request
	if err := job.Decode(&req); err != nil {
		return "", err
	}
	return a.processWithdrawal(ctx, req, true)
}

func (a *App) processWithdrawal(ctx context.Context, req withdrawal.Request, retry bool) (string, error) {
	outcome, err := a.withdrawals.Process(ctx, req)
	if err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("failed").Inc()
		return "", err
	}
	if outcome.Status == withdrawal.Pending {
		req.Attempt = outcome.Attempt
		id := fmt.Sprintf("%s-%s-%d-%d", JobPendingWithdrawal, req.BanWallet, req.Timestamp.UnixMilli(), req.Attempt)
		if _, err := a.queue.EnqueueDelayed(ctx, JobPendingWithdrawal, id, req, outcome.Delay); err != nil {
			return "", err
		}
		metrics.PendingWithdrawals.Inc()
		return fmt.Sprintf("withdrawal waiting on hot wallet liquidity, attempt %d", req.Attempt), nil
	}
	metrics.WithdrawalsTotal.WithLabelValues("completed").Inc()
	if retry {
		a.logger.Info("Pending withdrawal resolved",
			zap.String("ban_wallet", req.BanWallet),
			zap.Int("attempts", req.Attempt))
	}
	return fmt.Sprintf("withdrawal of %s BAN sent to %s", req.Amount, req.BanWallet), nil
}

func (a *App) handleSwapToWBAN(ctx context.Context, job queue.Job) (string, error) {
	var req swap.Request
	if err := job.Decode(&req); err != nil {
		return "", err
	}
	receipt, err := a.swaps.ToWBAN(ctx, req)
	if apperrors.Is(err, apperrors.CategoryAlreadyProcessed) {
		return "swap already processed", nil
	}
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("ban-to-wban", "failed").Inc()
		return "", err
	}
	metrics.SwapsTotal.WithLabelValues("ban-to-wban", "completed").Inc()

	result, _ := json.Marshal(receipt)
	return string(result), nil
}

func (a *App) handleSwapToBAN(ctx context.Context, job queue.Job) (string, error) {
	var payload burnPayload
	if err := job.Decode(&payload); err != nil {
		return "", err
	}
	amount, ok := new(big.Int).SetString(payload.Amount, 10)
	if !ok {
		return "", fmt.Errorf("malformed burn amount %q", payload.Amount)
	}
	err := a.swaps.FromWBAN(ctx, bsc.BurnEvent{
		From:      common.HexToAddress(payload.BlockchainWallet),
		BanWallet: payload.BanWallet,
		Amount:    amount,
		TxHash:    common.HexToHash(payload.Hash),
		Block:     payload.Block,
		Timestamp: payload.Timestamp,
	})
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("wban-to-ban", "failed").Inc()
		return "", err
	}
	metrics.SwapsTotal.WithLabelValues("wban-to-ban", "completed").Inc()
	return fmt.Sprintf("credited burn %s to %s", payload.Hash, payload.BanWallet), nil
}

func (a *App) handleScan(ctx context.Context, _ queue.Job) (string, error) {
	before, err := a.ledger.LastBlockProcessed(ctx)
	if err != nil {
		return "", err
	}
	if err := a.scanner.Scan(ctx); err != nil {
		return "", err
	}
	after, err := a.ledger.LastBlockProcessed(ctx)
	if err != nil {
		return "", err
	}
	if after > before {
		metrics.BlocksScanned.Add(float64(after - before))
	}
	return fmt.Sprintf("scanned up to block %d", after), nil
}

// walletOf extracts the affected wallet from a job payload for event
// listeners. Payload shapes differ per job, so every known field is tried.
func walletOf(job queue.Job) string {
	var probe struct {
		From      string `json:"from"`
		BanWallet string `json:"ban_wallet"`
	}
	if err := json.Unmarshal(job.Payload, &probe); err != nil {
		return ""
	}
	if probe.BanWallet != "" {
		return probe.BanWallet
	}
	return probe.From
}
