package app

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/banano"
	"github.com/wBanano/wban-backend/pkg/bsc"
	"github.com/wBanano/wban-backend/pkg/config"
	"github.com/wBanano/wban-backend/pkg/ledger"
	"github.com/wBanano/wban-backend/pkg/queue"
	"github.com/wBanano/wban-backend/pkg/store"
	"github.com/wBanano/wban-backend/pkg/withdrawal"
)

const (
	senderWallet = "ban_1o3k8868n6d1679iz6fcz1wwwaq9hhgghm7rsrfasdrwf47cj8a9edfh8d9z"
	ownerWallet  = "0x69FD25B60Da76Afd10D8Fc7306f10f2934fC4829"
	hotWallet    = "ban_1wban1bridge11111111111111111111111111111111111111111111111z"
	coldWallet   = "ban_1wban1cold111111111111111111111111111111111111111111111111z"
)

type testApp struct {
	app     *App
	storage *ledger.RedisStorage
	node    *mockNode
	chain   *mockChain
	mr      *miniredis.Miniredis
}

func newTestApp(t *testing.T, blacklist ...string) *testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewStoreWithClient(client)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{}
	cfg.Banano.DepositsWallet = hotWallet
	cfg.Banano.ColdWallet = coldWallet
	cfg.Banano.Blacklist = blacklist
	cfg.Swaps.Mode = "receipt"
	cfg.Withdrawals.MaxAttempts = 180
	cfg.Withdrawals.RetryDelay = 30 * time.Second
	cfg.Rebalancing.ColdRatio = 20
	cfg.Queue.Concurrency = 1
	cfg.Queue.Attempts = 3
	cfg.Queue.Backoff = time.Second

	node := &mockNode{
		balanceFn: func(_ context.Context, _ string) (*big.Int, error) {
			return big.NewInt(0), nil
		},
		sendFn: func(_ context.Context, _ string, _ *big.Int) (string, error) {
			return "SENDHASH", nil
		},
	}
	chain := &mockChain{}
	a := build(cfg, zap.NewNop(), s, node, chain,
		decimal.RequireFromString("0.004"), decimal.NewFromInt(10))
	return &testApp{
		app:     a,
		storage: ledger.NewRedisStorage(s, zap.NewNop()),
		node:    node,
		chain:   chain,
		mr:      mr,
	}
}

func depositJob(t *testing.T, amountRaw string) queue.Job {
	t.Helper()
	payload, err := json.Marshal(depositPayload{
		From:      senderWallet,
		Amount:    amountRaw,
		Hash:      "DEPHASH",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return queue.Job{ID: "banano-deposit-test", Name: ledger.OpDeposit, Payload: payload}
}

func TestDepositConfirmsPendingClaimAndCredits(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, ta.storage.StorePendingClaim(ctx, senderWallet, ownerWallet, time.Minute))

	raw, err := banano.ToRaw(decimal.NewFromInt(29))
	require.NoError(t, err)
	ta.node.balanceFn = func(_ context.Context, _ string) (*big.Int, error) {
		return raw, nil // hot wallet right after the deposit
	}
	var coldMoves []string
	ta.node.sendFn = func(_ context.Context, destination string, amount *big.Int) (string, error) {
		coldMoves = append(coldMoves, destination)
		return "COLDHASH", nil
	}

	result, err := ta.app.handleDeposit(ctx, depositJob(t, raw.String()))
	require.NoError(t, err)
	assert.Contains(t, result, "credited")

	claimed, err := ta.storage.HasClaim(ctx, senderWallet, ownerWallet)
	require.NoError(t, err)
	assert.True(t, claimed)

	balance, err := ta.storage.AvailableBalance(ctx, senderWallet)
	require.NoError(t, err)
	assert.Equal(t, raw, balance)

	// 29 BAN into an empty hot wallet with a 10 BAN floor moves 80% of 19
	require.Len(t, coldMoves, 1)
	assert.Equal(t, coldWallet, coldMoves[0])
}

func TestDepositFromUnclaimedAddressIsRefunded(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	var refunds []string
	ta.node.sendFn = func(_ context.Context, destination string, _ *big.Int) (string, error) {
		refunds = append(refunds, destination)
		return "REFUNDHASH", nil
	}

	result, err := ta.app.handleDeposit(ctx, depositJob(t, "100"))
	require.NoError(t, err)
	assert.Contains(t, result, "refunded")
	assert.Equal(t, []string{senderWallet}, refunds)

	balance, err := ta.storage.AvailableBalance(ctx, senderWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Int64())
}

func TestDepositFromBlacklistedAddressIsRefunded(t *testing.T) {
	ta := newTestApp(t, senderWallet)
	ctx := context.Background()
	require.NoError(t, ta.storage.StorePendingClaim(ctx, senderWallet, ownerWallet, time.Minute))

	var refunds []string
	ta.node.sendFn = func(_ context.Context, destination string, _ *big.Int) (string, error) {
		refunds = append(refunds, destination)
		return "REFUNDHASH", nil
	}

	result, err := ta.app.handleDeposit(ctx, depositJob(t, "100"))
	require.NoError(t, err)
	assert.Contains(t, result, "blacklisted")
	assert.Equal(t, []string{senderWallet}, refunds)
}

func TestWithdrawalShortHotWalletParksPendingJob(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	// claimed, funded account but an empty hot wallet
	require.NoError(t, ta.storage.StorePendingClaim(ctx, senderWallet, ownerWallet, time.Minute))
	_, err := ta.storage.ConfirmClaim(ctx, senderWallet)
	require.NoError(t, err)
	raw, err := banano.ToRaw(decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, ta.storage.StoreDeposit(ctx, ledger.Deposit{
		BanWallet: senderWallet, Amount: raw, Timestamp: time.Now(), Hash: "SEED",
	}))

	req := withdrawal.Request{
		BanWallet:        senderWallet,
		BlockchainWallet: ownerWallet,
		Amount:           "7",
		Timestamp:        time.Now(),
		Attempt:          2, // past the signature check
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	result, err := ta.app.handleWithdrawal(ctx, queue.Job{
		ID: "banano-withdrawal-test", Name: ledger.OpWithdrawal, Payload: payload,
	})
	require.NoError(t, err)
	assert.Contains(t, result, "waiting on hot wallet liquidity")

	// a pending-withdrawal job is parked in redis
	found := false
	for _, key := range ta.mr.Keys() {
		if strings.HasPrefix(key, "queue:jobs:pending-withdrawal-") {
			found = true
		}
	}
	assert.True(t, found, "expected a parked pending-withdrawal job")
}

func TestBurnJobCreditsClaimedWallet(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, ta.storage.StorePendingClaim(ctx, senderWallet, ownerWallet, time.Minute))
	_, err := ta.storage.ConfirmClaim(ctx, senderWallet)
	require.NoError(t, err)

	payload, err := json.Marshal(burnPayload{
		BlockchainWallet: ownerWallet,
		BanWallet:        senderWallet,
		Amount:           "5000000000000000000", // 5 wBAN in wei
		Hash:             "0xburnhash",
		Block:            1200,
		Timestamp:        time.Now(),
	})
	require.NoError(t, err)

	result, err := ta.app.handleSwapToBAN(ctx, queue.Job{
		ID: "swap-wban-to-ban-test", Name: ledger.OpSwapToBAN, Payload: payload,
	})
	require.NoError(t, err)
	assert.Contains(t, result, "credited")

	balance, err := ta.storage.AvailableBalance(ctx, senderWallet)
	require.NoError(t, err)
	raw, err := banano.ToRaw(decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, raw, balance)
}

func TestScanJobAdvancesCheckpoint(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	ta.chain.latestBlockFn = func(context.Context) (int64, error) { return 2500, nil }
	ta.chain.burnEventsFn = func(_ context.Context, from, to int64) ([]bsc.BurnEvent, error) {
		return nil, nil
	}

	result, err := ta.app.handleScan(ctx, queue.Job{ID: "bc-scan-test", Name: JobScan})
	require.NoError(t, err)
	assert.Contains(t, result, "2500")

	last, err := ta.storage.LastBlockProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), last)
}
