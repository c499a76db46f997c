package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/store"
)

// Store key namespaces. Every wallet-derived key is lower-cased so lookups
// are case-insensitive.
const (
	keyBalance        = "deposits:"
	keyTransactions   = "txn:"
	keyClaimsPending  = "claims:pending:"
	keyClaimsDone     = "claims:"
	keySwapsOut       = "swaps:ban-to-wban:"
	keySwapsIn        = "swaps:wban-to-ban:"
	keySwapsInTxn     = "swaps:wban-to-ban:txn"
	keyAuditPrefix    = "audit:"
	keyLastBlock      = "blockchain:blocks:latest"
	keyGasless        = "gasless:"
	// balanceLockTTL must outlast a full read-modify-write round trip even
	// under redis latency spikes; expiry mid-write would admit a second
	// writer. The Lua-guarded release keeps a long TTL harmless.
	balanceLockTTL    = 10 * time.Second
	withdrawalTsScale = time.Millisecond
)

// checkpointScript advances the checkpoint only forward. Writing a value at
// or below the current one is a no-op, which keeps restarts replay-safe.
var checkpointScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "-1")
local next = tonumber(ARGV[1])
if next > current then
	redis.call("SET", KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// RedisStorage persists ledger and claim state in redis
type RedisStorage struct {
	store  *store.Store
	logger *zap.Logger
}

// NewRedisStorage creates the production ledger storage
func NewRedisStorage(s *store.Store, logger *zap.Logger) *RedisStorage {
	return &RedisStorage{store: s, logger: logger}
}

func wallet(w string) string {
	return strings.ToLower(w)
}

// tsKey renders a timestamp the way the frontend sends it: unix milliseconds
func tsKey(ts time.Time) string {
	return strconv.FormatInt(ts.UnixNano()/int64(withdrawalTsScale), 10)
}

func (r *RedisStorage) AvailableBalance(ctx context.Context, banWallet string) (*big.Int, error) {
	var balance *big.Int
	err := r.store.WithLock(ctx, keyBalance+wallet(banWallet), balanceLockTTL, func(ctx context.Context) error {
		raw, err := r.store.Get(ctx, keyBalance+wallet(banWallet))
		if err != nil {
			return err
		}
		balance = parseAmount(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

func parseAmount(raw string) *big.Int {
	if raw == "" {
		return big.NewInt(0)
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}

// adjustBalance applies delta to the owner's balance and commits the given
// idempotency marker and audit entry in the same MULTI/EXEC block, all under
// the owner's lock.
func (r *RedisStorage) adjustBalance(
	ctx context.Context,
	banWallet string,
	delta *big.Int,
	markerKey, marker string,
	auditKey string,
	entry AuditEntry,
) error {
	w := wallet(banWallet)
	return r.store.WithLock(ctx, keyBalance+w, balanceLockTTL, func(ctx context.Context) error {
		raw, err := r.store.Get(ctx, keyBalance+w)
		if err != nil {
			return err
		}
		balance := new(big.Int).Add(parseAmount(raw), delta)

		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}

		return r.store.Atomically(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyBalance+w, balance.String(), 0)
			pipe.SAdd(ctx, markerKey, marker)
			pipe.ZAdd(ctx, auditKey, redis.Z{Score: float64(entry.Timestamp), Member: string(payload)})
			return nil
		})
	})
}

func (r *RedisStorage) StoreDeposit(ctx context.Context, deposit Deposit) error {
	w := wallet(deposit.BanWallet)
	r.logger.Info("Storing user deposit",
		zap.String("wallet", w),
		zap.String("amount", deposit.Amount.String()),
		zap.String("hash", deposit.Hash))
	return r.adjustBalance(ctx, w, deposit.Amount,
		keyTransactions+w, deposit.Hash,
		keyAuditPrefix+"deposits:"+w,
		AuditEntry{
			Type:      OpDeposit,
			Amount:    deposit.Amount.String(),
			Hash:      deposit.Hash,
			Timestamp: deposit.Timestamp.UnixMilli(),
		})
}

func (r *RedisStorage) StoreWithdrawal(ctx context.Context, withdrawal Withdrawal) error {
	w := wallet(withdrawal.BanWallet)
	r.logger.Info("Storing user withdrawal",
		zap.String("wallet", w),
		zap.String("amount", withdrawal.Amount.String()),
		zap.String("hash", withdrawal.Hash))
	return r.adjustBalance(ctx, w, new(big.Int).Neg(withdrawal.Amount),
		keyTransactions+w, tsKey(withdrawal.Timestamp),
		keyAuditPrefix+"withdrawals:"+w,
		AuditEntry{
			Type:      OpWithdrawal,
			Amount:    withdrawal.Amount.String(),
			Hash:      withdrawal.Hash,
			Wallet:    wallet(withdrawal.BlockchainWallet),
			Timestamp: withdrawal.Timestamp.UnixMilli(),
		})
}

func (r *RedisStorage) StoreSwapToWBAN(ctx context.Context, swap SwapToWBAN) error {
	w := wallet(swap.BanWallet)
	r.logger.Info("Storing swap of BAN for wBAN",
		zap.String("wallet", w),
		zap.String("amount", swap.Amount.String()))
	return r.adjustBalance(ctx, w, new(big.Int).Neg(swap.Amount),
		keySwapsOut+w, tsKey(swap.Timestamp),
		keyAuditPrefix+"swaps:ban-to-wban:"+w,
		AuditEntry{
			Type:      OpSwapToWBAN,
			Amount:    swap.Amount.String(),
			Receipt:   swap.Receipt,
			UUID:      swap.UUID,
			Wallet:    wallet(swap.BlockchainWallet),
			Timestamp: swap.Timestamp.UnixMilli(),
		})
}

func (r *RedisStorage) StoreSwapToBAN(ctx context.Context, swap SwapToBAN) error {
	w := wallet(swap.BanWallet)
	bw := wallet(swap.BlockchainWallet)
	r.logger.Info("Storing swap of wBAN for BAN",
		zap.String("blockchain_wallet", bw),
		zap.String("ban_wallet", w),
		zap.String("amount", swap.Amount.String()),
		zap.String("hash", swap.Hash))
	entry := AuditEntry{
		Type:      OpSwapToBAN,
		Amount:    swap.Amount.String(),
		Hash:      swap.Hash,
		Wallet:    bw,
		Timestamp: swap.Timestamp.UnixMilli(),
	}
	if err := r.adjustBalance(ctx, w, swap.Amount,
		keySwapsInTxn, swap.Hash,
		keyAuditPrefix+"swaps:wban-to-ban:"+bw,
		entry); err != nil {
		return err
	}
	// wallet-scoped replay set kept alongside the global one for history
	return r.store.AddToSet(ctx, keySwapsIn+bw, swap.Hash)
}

func (r *RedisStorage) ContainsDeposit(ctx context.Context, banWallet, hash string) (bool, error) {
	return r.store.IsMember(ctx, keyTransactions+wallet(banWallet), hash)
}

func (r *RedisStorage) ContainsWithdrawal(ctx context.Context, banWallet string, timestamp time.Time) (bool, error) {
	return r.store.IsMember(ctx, keyTransactions+wallet(banWallet), tsKey(timestamp))
}

func (r *RedisStorage) ContainsSwapToWBAN(ctx context.Context, banWallet string, timestamp time.Time) (bool, error) {
	return r.store.IsMember(ctx, keySwapsOut+wallet(banWallet), tsKey(timestamp))
}

func (r *RedisStorage) ContainsSwapToBAN(ctx context.Context, hash string) (bool, error) {
	return r.store.IsMember(ctx, keySwapsInTxn, hash)
}

func (r *RedisStorage) history(ctx context.Context, key string, count int64) ([]AuditEntry, error) {
	members, err := r.store.LatestScored(ctx, key, count)
	if err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, 0, len(members))
	for _, member := range members {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			r.logger.Warn("Skipping malformed audit entry", zap.String("key", key), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RedisStorage) Deposits(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error) {
	return r.history(ctx, keyAuditPrefix+"deposits:"+wallet(banWallet), count)
}

func (r *RedisStorage) Withdrawals(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error) {
	return r.history(ctx, keyAuditPrefix+"withdrawals:"+wallet(banWallet), count)
}

func (r *RedisStorage) SwapsToWBAN(ctx context.Context, banWallet string, count int64) ([]AuditEntry, error) {
	return r.history(ctx, keyAuditPrefix+"swaps:ban-to-wban:"+wallet(banWallet), count)
}

func (r *RedisStorage) SwapsToBAN(ctx context.Context, blockchainWallet string, count int64) ([]AuditEntry, error) {
	return r.history(ctx, keyAuditPrefix+"swaps:wban-to-ban:"+wallet(blockchainWallet), count)
}

func (r *RedisStorage) LastBlockProcessed(ctx context.Context) (int64, error) {
	raw, err := r.store.Get(ctx, keyLastBlock)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	block, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed checkpoint %q: %w", raw, err)
	}
	return block, nil
}

func (r *RedisStorage) SetLastBlockProcessed(ctx context.Context, block int64) error {
	advanced, err := checkpointScript.Run(ctx, r.store.Client(), []string{keyLastBlock}, block).Int64()
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	if advanced == 0 {
		r.logger.Debug("Checkpoint not advanced", zap.Int64("block", block))
	}
	return nil
}

func (r *RedisStorage) GaslessMintGranted(ctx context.Context, blockchainWallet string) (bool, error) {
	return r.store.Exists(ctx, keyGasless+wallet(blockchainWallet))
}

func (r *RedisStorage) MarkGaslessMint(ctx context.Context, blockchainWallet string) error {
	return r.store.Set(ctx, keyGasless+wallet(blockchainWallet), "1")
}

// =============================================================================
// Claim storage
// =============================================================================

func (r *RedisStorage) HasPendingClaim(ctx context.Context, banWallet string) (bool, error) {
	keys, err := r.store.Keys(ctx, keyClaimsPending+wallet(banWallet)+":*")
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (r *RedisStorage) PendingClaimWallet(ctx context.Context, banWallet string) (string, error) {
	keys, err := r.store.Keys(ctx, keyClaimsPending+wallet(banWallet)+":*")
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0][strings.LastIndex(keys[0], ":")+1:], nil
}

func (r *RedisStorage) StorePendingClaim(ctx context.Context, banWallet, blockchainWallet string, ttl time.Duration) error {
	key := keyClaimsPending + wallet(banWallet) + ":" + wallet(blockchainWallet)
	if err := r.store.SetWithTTL(ctx, key, "1", ttl); err != nil {
		return err
	}
	r.logger.Info("Stored pending claim",
		zap.String("ban_wallet", wallet(banWallet)),
		zap.String("blockchain_wallet", wallet(blockchainWallet)))
	return nil
}

func (r *RedisStorage) IsClaimed(ctx context.Context, banWallet string) (bool, error) {
	keys, err := r.store.Keys(ctx, keyClaimsDone+wallet(banWallet)+":*")
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (r *RedisStorage) HasClaim(ctx context.Context, banWallet, blockchainWallet string) (bool, error) {
	return r.store.Exists(ctx, keyClaimsDone+wallet(banWallet)+":"+wallet(blockchainWallet))
}

func (r *RedisStorage) ConfirmedClaimWallet(ctx context.Context, banWallet string) (string, error) {
	keys, err := r.store.Keys(ctx, keyClaimsDone+wallet(banWallet)+":*")
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0][strings.LastIndex(keys[0], ":")+1:], nil
}

func (r *RedisStorage) ConfirmClaim(ctx context.Context, banWallet string) (bool, error) {
	confirmed, err := r.IsClaimed(ctx, banWallet)
	if err != nil {
		return false, err
	}
	if confirmed {
		return true, nil
	}
	pending, err := r.PendingClaimWallet(ctx, banWallet)
	if err != nil {
		return false, err
	}
	if pending == "" {
		return false, nil
	}
	key := keyClaimsDone + wallet(banWallet) + ":" + pending
	if err := r.store.Set(ctx, key, "1"); err != nil {
		return false, err
	}
	r.logger.Info("Confirmed claim",
		zap.String("ban_wallet", wallet(banWallet)),
		zap.String("blockchain_wallet", pending))
	return true, nil
}
