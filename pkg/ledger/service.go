package ledger

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
)

// historyLimit caps every per-wallet history listing
const historyLimit = 20

// Service is the single entry point for ledger mutations. Every record
// operation checks its idempotency marker before writing so job retries
// and scanner replays never double-apply.
type Service struct {
	storage Storage
	logger  *zap.Logger
}

func NewService(storage Storage, logger *zap.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

func (s *Service) AvailableBalance(ctx context.Context, banWallet string) (*big.Int, error) {
	return s.storage.AvailableBalance(ctx, banWallet)
}

// RecordDeposit credits a confirmed on-ledger deposit. A hash seen before
// is skipped without error.
func (s *Service) RecordDeposit(ctx context.Context, deposit Deposit) error {
	seen, err := s.storage.ContainsDeposit(ctx, deposit.BanWallet, deposit.Hash)
	if err != nil {
		return err
	}
	if seen {
		s.logger.Warn("Deposit already ingested, skipping",
			zap.String("wallet", deposit.BanWallet),
			zap.String("hash", deposit.Hash))
		return nil
	}
	return s.storage.StoreDeposit(ctx, deposit)
}

// WithdrawalProcessed reports whether a withdrawal request with this
// timestamp was already recorded for the wallet.
func (s *Service) WithdrawalProcessed(ctx context.Context, banWallet string, timestamp time.Time) (bool, error) {
	return s.storage.ContainsWithdrawal(ctx, banWallet, timestamp)
}

// RecordWithdrawal debits the owner's balance. Returns AlreadyProcessed when
// the same withdrawal request was recorded before.
func (s *Service) RecordWithdrawal(ctx context.Context, withdrawal Withdrawal) error {
	seen, err := s.storage.ContainsWithdrawal(ctx, withdrawal.BanWallet, withdrawal.Timestamp)
	if err != nil {
		return err
	}
	if seen {
		return apperrors.AlreadyProcessedError(nil, "withdrawal already processed")
	}
	return s.storage.StoreWithdrawal(ctx, withdrawal)
}

// RecordSwapToWBAN debits the owner's balance for a BAN to wBAN swap.
// Returns AlreadyProcessed when the same swap request was recorded before.
func (s *Service) RecordSwapToWBAN(ctx context.Context, swap SwapToWBAN) error {
	seen, err := s.storage.ContainsSwapToWBAN(ctx, swap.BanWallet, swap.Timestamp)
	if err != nil {
		return err
	}
	if seen {
		return apperrors.AlreadyProcessedError(nil, "swap already processed")
	}
	return s.storage.StoreSwapToWBAN(ctx, swap)
}

// RecordSwapToBAN credits the owner's balance for a burn observed on the
// blockchain. Returns (true, nil) when the transaction hash was already
// ingested, so scanners can replay ranges safely.
func (s *Service) RecordSwapToBAN(ctx context.Context, swap SwapToBAN) (bool, error) {
	seen, err := s.storage.ContainsSwapToBAN(ctx, swap.Hash)
	if err != nil {
		return false, err
	}
	if seen {
		s.logger.Warn("Swap transaction already ingested, skipping",
			zap.String("hash", swap.Hash))
		return true, nil
	}
	return false, s.storage.StoreSwapToBAN(ctx, swap)
}

func (s *Service) Deposits(ctx context.Context, banWallet string) ([]AuditEntry, error) {
	return s.storage.Deposits(ctx, banWallet, historyLimit)
}

func (s *Service) Withdrawals(ctx context.Context, banWallet string) ([]AuditEntry, error) {
	return s.storage.Withdrawals(ctx, banWallet, historyLimit)
}

func (s *Service) SwapsToWBAN(ctx context.Context, banWallet string) ([]AuditEntry, error) {
	return s.storage.SwapsToWBAN(ctx, banWallet, historyLimit)
}

func (s *Service) SwapsToBAN(ctx context.Context, blockchainWallet string) ([]AuditEntry, error) {
	return s.storage.SwapsToBAN(ctx, blockchainWallet, historyLimit)
}

func (s *Service) LastBlockProcessed(ctx context.Context) (int64, error) {
	return s.storage.LastBlockProcessed(ctx)
}

func (s *Service) SetLastBlockProcessed(ctx context.Context, block int64) error {
	return s.storage.SetLastBlockProcessed(ctx, block)
}

func (s *Service) GaslessMintGranted(ctx context.Context, blockchainWallet string) (bool, error) {
	return s.storage.GaslessMintGranted(ctx, blockchainWallet)
}

func (s *Service) MarkGaslessMint(ctx context.Context, blockchainWallet string) error {
	return s.storage.MarkGaslessMint(ctx, blockchainWallet)
}
