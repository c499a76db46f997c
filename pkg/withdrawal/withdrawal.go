// Package withdrawal pays out locked BAN balance to the owner's BAN
// address. A withdrawal that finds the hot wallet short waits on a retry
// ladder instead of failing, since the next cold-to-hot refill resolves it.
package withdrawal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
	"github.com/wBanano/wban-backend/pkg/auth"
	"github.com/wBanano/wban-backend/pkg/banano"
	"github.com/wBanano/wban-backend/pkg/claim"
	"github.com/wBanano/wban-backend/pkg/ledger"
)

// Status of one processing pass
type Status int

const (
	// Done means the BAN left the hot wallet, or already had
	Done Status = iota
	// Pending means the hot wallet is short and the request should come
	// back after Delay.
	Pending
)

// Request is a user-initiated withdrawal. Attempt counts pending rounds:
// the signature is only checked on the first pass, replays from the retry
// ladder carry the original already-verified request.
type Request struct {
	BanWallet        string    `json:"ban_wallet"`
	BlockchainWallet string    `json:"blockchain_wallet"`
	Amount           string    `json:"amount"`
	Signature        string    `json:"signature"`
	Timestamp        time.Time `json:"timestamp"`
	Attempt          int       `json:"attempt"`
}

// Outcome of one processing pass
type Outcome struct {
	Status  Status
	TxHash  string
	Delay   time.Duration
	Attempt int
}

// Config bounds the retry ladder
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// HotWallet is the account holding the deposited BAN
	HotWallet string
}

// Processor drives withdrawals
type Processor struct {
	ledger *ledger.Service
	claims *claim.Engine
	node   banano.Client
	cfg    Config
	logger *zap.Logger
}

func NewProcessor(l *ledger.Service, claims *claim.Engine, node banano.Client, cfg Config, logger *zap.Logger) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 180
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	return &Processor{ledger: l, claims: claims, node: node, cfg: cfg, logger: logger}
}

// Process runs one pass over a withdrawal request
func (p *Processor) Process(ctx context.Context, req Request) (Outcome, error) {
	done, err := p.ledger.WithdrawalProcessed(ctx, req.BanWallet, req.Timestamp)
	if err != nil {
		return Outcome{}, err
	}
	if done {
		p.logger.Warn("Withdrawal already processed, skipping",
			zap.String("ban_wallet", req.BanWallet))
		return Outcome{Status: Done}, nil
	}

	if req.Attempt == 0 {
		if !auth.CheckSignature(req.BlockchainWallet, req.Signature, auth.WithdrawalStatement(req.Amount, req.BanWallet)) {
			return Outcome{}, apperrors.InvalidSignatureError(nil,
				fmt.Sprintf("withdrawal signature does not match wallet %s", req.BlockchainWallet))
		}
		owner, err := p.claims.OwnerOf(ctx, req.BanWallet)
		if err != nil {
			return Outcome{}, err
		}
		if owner != auth.NormalizeAddress(req.BlockchainWallet) {
			return Outcome{}, apperrors.InvalidOwnerError(nil,
				fmt.Sprintf("%s does not own a claim on %s", req.BlockchainWallet, req.BanWallet))
		}
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return Outcome{}, apperrors.GeneralError(err, fmt.Sprintf("malformed amount %q", req.Amount))
	}
	raw, err := banano.ToRaw(amount)
	if err != nil {
		return Outcome{}, apperrors.GeneralError(err, "unwithdrawable amount")
	}

	balance, err := p.ledger.AvailableBalance(ctx, req.BanWallet)
	if err != nil {
		return Outcome{}, err
	}
	if balance.Cmp(raw) < 0 {
		return Outcome{}, apperrors.InsufficientBalanceError(nil,
			fmt.Sprintf("balance %s raw, withdrawal needs %s raw", balance, raw))
	}

	hot, err := p.node.Balance(ctx, p.cfg.HotWallet)
	if err != nil {
		return Outcome{}, err
	}
	if hot.Cmp(raw) < 0 {
		attempt := req.Attempt + 1
		if attempt >= p.cfg.MaxAttempts {
			return Outcome{}, apperrors.Terminal(apperrors.InsufficientHotWalletError(nil,
				fmt.Sprintf("hot wallet still short after %d attempts", req.Attempt)))
		}
		delay := time.Duration(attempt) * p.cfg.RetryDelay
		p.logger.Warn("Hot wallet short, delaying withdrawal",
			zap.String("ban_wallet", req.BanWallet),
			zap.String("amount", req.Amount),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		return Outcome{Status: Pending, Delay: delay, Attempt: attempt}, nil
	}

	hash, err := p.node.Send(ctx, req.BanWallet, raw)
	if err != nil {
		return Outcome{}, err
	}

	err = p.ledger.RecordWithdrawal(ctx, ledger.Withdrawal{
		BanWallet:        req.BanWallet,
		BlockchainWallet: req.BlockchainWallet,
		Amount:           raw,
		Timestamp:        req.Timestamp,
		Hash:             hash,
	})
	if err != nil && !apperrors.Is(err, apperrors.CategoryAlreadyProcessed) {
		return Outcome{}, err
	}

	p.logger.Info("Processed withdrawal",
		zap.String("ban_wallet", req.BanWallet),
		zap.String("amount", req.Amount),
		zap.String("hash", hash))
	return Outcome{Status: Done, TxHash: hash}, nil
}
