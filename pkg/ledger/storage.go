package ledger

import (
	"context"
	"math/big"
	"time"
)

// Storage defines the persistence operations behind the ledger service.
// The redis implementation is the single production backend; tests use
// either miniredis or in-memory fakes.
type Storage interface {
	// Balance accounting. Mutations run inside the owner's lock and commit
	// the balance change, the idempotency marker and the audit entry as one
	// atomic write.
	AvailableBalance(ctx context.Context, banWallet string) (*big.Int, error)
	StoreDeposit(ctx context.Context, deposit Deposit) error
	StoreWithdrawal(ctx context.Context, withdrawal Withdrawal) error
	StoreSwapToWBAN(ctx context.Context, swap SwapToWBAN) error
	StoreSwapToBAN(ctx context.Context, swap SwapToBAN) error

	// Idempotency predicates
	ContainsDeposit(ctx context.Context, banWallet, hash string) (bool, error)
	ContainsWithdrawal(ctx context.Context, banWallet string, timestamp time.Time) (bool, error)
	ContainsSwapToWBAN(ctx context.Context, banWallet string, timestamp time.Time) (bool, error)
	ContainsSwapToBAN(ctx context.Context, hash string) (bool, error)

	// History queries, reverse-chronological, capped by the caller
	Deposits(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error)
	Withdrawals(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error)
	SwapsToWBAN(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error)
	SwapsToBAN(ctx context.Context, blockchainWallet string, count int64) ([]AuditEntry, error)

	// Scanner checkpoint. The setter never moves the checkpoint backwards.
	LastBlockProcessed(ctx context.Context) (int64, error)
	SetLastBlockProcessed(ctx context.Context, block int64) error

	// Gasless mint policy marker
	GaslessMintGranted(ctx context.Context, blockchainWallet string) (bool, error)
	MarkGaslessMint(ctx context.Context, blockchainWallet string) error
}

// ClaimStorage defines the wallet-binding persistence consumed by the claim
// engine. Implemented by the same redis storage.
type ClaimStorage interface {
	HasPendingClaim(ctx context.Context, banWallet string) (bool, error)
	PendingClaimWallet(ctx context.Context, banWallet string) (string, error)
	StorePendingClaim(ctx context.Context, banWallet, blockchainWallet string, ttl time.Duration) error
	IsClaimed(ctx context.Context, banWallet string) (bool, error)
	HasClaim(ctx context.Context, banWallet, blockchainWallet string) (bool, error)
	ConfirmedClaimWallet(ctx context.Context, banWallet string) (string, error)
	ConfirmClaim(ctx context.Context, banWallet string) (bool, error)
}
