// Package claim binds BAN addresses to blockchain wallets. A claim starts
// pending and is confirmed by the first deposit from the claimed address.
package claim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/auth"
	"github.com/wBanano/wban-backend/pkg/ledger"
)

// pendingTTL is how long a pending claim waits for its confirming deposit
const pendingTTL = 5 * time.Minute

// Result of a claim request
type Result int

const (
	Ok Result = iota
	InvalidSignature
	InvalidOwner
	Blacklisted
	AlreadyDone
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case InvalidSignature:
		return "invalid signature"
	case InvalidOwner:
		return "invalid owner"
	case Blacklisted:
		return "blacklisted"
	case AlreadyDone:
		return "already done"
	default:
		return "unknown"
	}
}

// Blacklist answers whether a BAN address is barred from claiming.
// Exchange hot wallets live here: coins sent from them belong to the
// exchange, not the claimer.
type Blacklist interface {
	Contains(ctx context.Context, banWallet string) (bool, error)
}

// Engine validates and records claims
type Engine struct {
	store     ledger.ClaimStorage
	blacklist Blacklist
	logger    *zap.Logger
}

func NewEngine(store ledger.ClaimStorage, blacklist Blacklist, logger *zap.Logger) *Engine {
	return &Engine{store: store, blacklist: blacklist, logger: logger}
}

// Request registers a pending claim of banWallet by blockchainWallet. The
// signature must be the blockchain wallet signing the claim statement.
func (e *Engine) Request(ctx context.Context, banWallet, blockchainWallet, signature string) (Result, error) {
	if !auth.ValidateBananoAddress(banWallet) || !auth.ValidateBlockchainAddress(blockchainWallet) {
		return InvalidOwner, nil
	}
	if !auth.CheckSignature(blockchainWallet, signature, auth.ClaimStatement(banWallet)) {
		e.logger.Warn("Claim with invalid signature",
			zap.String("ban_wallet", banWallet),
			zap.String("blockchain_wallet", blockchainWallet))
		return InvalidSignature, nil
	}
	barred, err := e.blacklist.Contains(ctx, banWallet)
	if err != nil {
		return InvalidOwner, err
	}
	if barred {
		e.logger.Warn("Claim for blacklisted address",
			zap.String("ban_wallet", banWallet),
			zap.String("blockchain_wallet", blockchainWallet))
		return Blacklisted, nil
	}

	claimed, err := e.store.IsClaimed(ctx, banWallet)
	if err != nil {
		return InvalidOwner, err
	}
	if claimed {
		mine, err := e.store.HasClaim(ctx, banWallet, blockchainWallet)
		if err != nil {
			return InvalidOwner, err
		}
		if mine {
			return AlreadyDone, nil
		}
		return InvalidOwner, nil
	}

	pending, err := e.store.PendingClaimWallet(ctx, banWallet)
	if err != nil {
		return InvalidOwner, err
	}
	if pending != "" && pending != auth.NormalizeAddress(blockchainWallet) {
		return InvalidOwner, nil
	}

	if err := e.store.StorePendingClaim(ctx, banWallet, blockchainWallet, pendingTTL); err != nil {
		return InvalidOwner, err
	}
	return Ok, nil
}

// Confirm upgrades the pending claim for banWallet to a confirmed one.
// Returns false when no claim, pending or confirmed, exists.
func (e *Engine) Confirm(ctx context.Context, banWallet string) (bool, error) {
	return e.store.ConfirmClaim(ctx, banWallet)
}

// OwnerOf returns the blockchain wallet that confirmed a claim on
// banWallet, or "" when none did.
func (e *Engine) OwnerOf(ctx context.Context, banWallet string) (string, error) {
	return e.store.ConfirmedClaimWallet(ctx, banWallet)
}

// HasAnyClaim reports whether banWallet has a pending or confirmed claim
func (e *Engine) HasAnyClaim(ctx context.Context, banWallet string) (bool, error) {
	claimed, err := e.store.IsClaimed(ctx, banWallet)
	if err != nil || claimed {
		return claimed, err
	}
	return e.store.HasPendingClaim(ctx, banWallet)
}
