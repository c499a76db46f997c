package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
)

type mockStorage struct {
	availableBalanceFn     func(ctx context.Context, banWallet string) (*big.Int, error)
	storeDepositFn         func(ctx context.Context, deposit Deposit) error
	storeWithdrawalFn      func(ctx context.Context, withdrawal Withdrawal) error
	storeSwapToWBANFn      func(ctx context.Context, swap SwapToWBAN) error
	storeSwapToBANFn       func(ctx context.Context, swap SwapToBAN) error
	containsDepositFn      func(ctx context.Context, banWallet, hash string) (bool, error)
	containsWithdrawalFn   func(ctx context.Context, banWallet string, ts time.Time) (bool, error)
	containsSwapToWBANFn   func(ctx context.Context, banWallet string, ts time.Time) (bool, error)
	containsSwapToBANFn    func(ctx context.Context, hash string) (bool, error)
	lastBlockProcessedFn   func(ctx context.Context) (int64, error)
	setLastBlockFn         func(ctx context.Context, block int64) error
	gaslessMintGrantedFn   func(ctx context.Context, blockchainWallet string) (bool, error)
	markGaslessMintFn      func(ctx context.Context, blockchainWallet string) error
	historyFn              func(ctx context.Context, wallet string, count int64) ([]AuditEntry, error)
}

func (m *mockStorage) AvailableBalance(ctx context.Context, banWallet string) (*big.Int, error) {
	return m.availableBalanceFn(ctx, banWallet)
}
func (m *mockStorage) StoreDeposit(ctx context.Context, deposit Deposit) error {
	return m.storeDepositFn(ctx, deposit)
}
func (m *mockStorage) StoreWithdrawal(ctx context.Context, withdrawal Withdrawal) error {
	return m.storeWithdrawalFn(ctx, withdrawal)
}
func (m *mockStorage) StoreSwapToWBAN(ctx context.Context, swap SwapToWBAN) error {
	return m.storeSwapToWBANFn(ctx, swap)
}
func (m *mockStorage) StoreSwapToBAN(ctx context.Context, swap SwapToBAN) error {
	return m.storeSwapToBANFn(ctx, swap)
}
func (m *mockStorage) ContainsDeposit(ctx context.Context, banWallet, hash string) (bool, error) {
	return m.containsDepositFn(ctx, banWallet, hash)
}
func (m *mockStorage) ContainsWithdrawal(ctx context.Context, banWallet string, ts time.Time) (bool, error) {
	return m.containsWithdrawalFn(ctx, banWallet, ts)
}
func (m *mockStorage) ContainsSwapToWBAN(ctx context.Context, banWallet string, ts time.Time) (bool, error) {
	return m.containsSwapToWBANFn(ctx, banWallet, ts)
}
func (m *mockStorage) ContainsSwapToBAN(ctx context.Context, hash string) (bool, error) {
	return m.containsSwapToBANFn(ctx, hash)
}
func (m *mockStorage) Deposits(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error) {
	return m.historyFn(ctx, banWallet, count)
}
func (m *mockStorage) Withdrawals(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error) {
	return m.historyFn(ctx, banWallet, count)
}
func (m *mockStorage) SwapsToWBAN(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error) {
	return m.historyFn(ctx, banWallet, count)
}
func (m *mockStorage) SwapsToBAN(ctx context.Context, blockchainWallet string, count int64) ([]AuditEntry, error) {
	return m.historyFn(ctx, blockchainWallet, count)
}
func (m *mockStorage) LastBlockProcessed(ctx context.Context) (int64, error) {
	return m.lastBlockProcessedFn(ctx)
}
func (m *mockStorage) SetLastBlockProcessed(ctx context.Context, block int64) error {
	return m.setLastBlockFn(ctx, block)
}
func (m *mockStorage) GaslessMintGranted(ctx context.Context, blockchainWallet string) (bool, error) {
	return m.gaslessMintGrantedFn(ctx, blockchainWallet)
}
func (m *mockStorage) MarkGaslessMint(ctx context.Context, blockchainWallet string) error {
	return m.markGaslessMintFn(ctx, blockchainWallet)
}

func TestRecordDepositSkipsKnownHash(t *testing.T) {
	stored := 0
	storage := &mockStorage{
		containsDepositFn: func(_ context.Context, _, _ string) (bool, error) {
			return true, nil
		},
		storeDepositFn: func(_ context.Context, _ Deposit) error {
			stored++
			return nil
		},
	}
	svc := NewService(storage, zap.NewNop())

	err := svc.RecordDeposit(context.Background(), Deposit{
		BanWallet: testBanWallet,
		Amount:    ban(1),
		Timestamp: time.Now(),
		Hash:      "AAA",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
}

func TestRecordDepositStoresNewHash(t *testing.T) {
	stored := 0
	storage := &mockStorage{
		containsDepositFn: func(_ context.Context, _, _ string) (bool, error) {
			return false, nil
		},
		storeDepositFn: func(_ context.Context, _ Deposit) error {
			stored++
			return nil
		},
	}
	svc := NewService(storage, zap.NewNop())

	err := svc.RecordDeposit(context.Background(), Deposit{
		BanWallet: testBanWallet,
		Amount:    ban(1),
		Timestamp: time.Now(),
		Hash:      "AAA",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestRecordWithdrawalRejectsReplay(t *testing.T) {
	storage := &mockStorage{
		containsWithdrawalFn: func(_ context.Context, _ string, _ time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := NewService(storage, zap.NewNop())

	err := svc.RecordWithdrawal(context.Background(), Withdrawal{
		BanWallet:        testBanWallet,
		BlockchainWallet: testBscWallet,
		Amount:           ban(1),
		Timestamp:        time.Now(),
	})
	assert.True(t, apperrors.Is(err, apperrors.CategoryAlreadyProcessed))
}

func TestRecordSwapToWBANRejectsReplay(t *testing.T) {
	storage := &mockStorage{
		containsSwapToWBANFn: func(_ context.Context, _ string, _ time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := NewService(storage, zap.NewNop())

	err := svc.RecordSwapToWBAN(context.Background(), SwapToWBAN{
		BanWallet: testBanWallet,
		Amount:    ban(1),
		Timestamp: time.Now(),
	})
	assert.True(t, apperrors.Is(err, apperrors.CategoryAlreadyProcessed))
}

func TestRecordSwapToBANReportsReplayWithoutError(t *testing.T) {
	stored := 0
	storage := &mockStorage{
		containsSwapToBANFn: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		},
		storeSwapToBANFn: func(_ context.Context, _ SwapToBAN) error {
			stored++
			return nil
		},
	}
	svc := NewService(storage, zap.NewNop())

	alreadyDone, err := svc.RecordSwapToBAN(context.Background(), SwapToBAN{
		BlockchainWallet: testBscWallet,
		BanWallet:        testBanWallet,
		Amount:           ban(1),
		Hash:             "0xdeadbeef",
		Timestamp:        time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, alreadyDone)
	assert.Equal(t, 0, stored)
}
