// Package swap orchestrates the two swap directions: locked BAN balance to
// freshly minted wBAN, and burned wBAN back to BAN balance.
package swap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
	"github.com/wBanano/wban-backend/pkg/auth"
	"github.com/wBanano/wban-backend/pkg/banano"
	"github.com/wBanano/wban-backend/pkg/bsc"
	"github.com/wBanano/wban-backend/pkg/claim"
	"github.com/wBanano/wban-backend/pkg/ledger"
)

// Mode selects how mints are delivered
const (
	ModeReceipt = "receipt"
	ModeDirect  = "direct"
)

// wBAN has 18 decimals; BAN raw has 29
var (
	weiPerWBAN = decimal.New(1, 18)
	rawPerWei  = new(big.Int).Exp(big.NewInt(10), big.NewInt(11), nil)
)

// Config tunes the orchestrator
type Config struct {
	Mode             string
	GaslessEnabled   bool
	GaslessThreshold decimal.Decimal
}

// Request is a user-initiated BAN to wBAN swap
type Request struct {
	BanWallet        string
	BlockchainWallet string
	// Amount in whole BAN, as the user signed it
	Amount    string
	Signature string
	Timestamp time.Time
}

// Receipt is the outcome of a BAN to wBAN swap
type Receipt struct {
	// Receipt and UUID are set in receipt mode
	Receipt string
	UUID    string
	// TxHash is set in direct mode
	TxHash string
	Wallet string
	Amount *big.Int
}

// Orchestrator drives swaps across the ledger and the token contract
type Orchestrator struct {
	ledger *ledger.Service
	claims *claim.Engine
	chain  bsc.Client
	cfg    Config
	logger *zap.Logger
}

func NewOrchestrator(l *ledger.Service, claims *claim.Engine, chain bsc.Client, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = ModeReceipt
	}
	return &Orchestrator{ledger: l, claims: claims, chain: chain, cfg: cfg, logger: logger}
}

// ToWBAN swaps locked BAN balance for wBAN. The debit and the mint receipt
// are tied to the request timestamp, so a replay of the same request
// returns AlreadyProcessed instead of minting twice.
func (o *Orchestrator) ToWBAN(ctx context.Context, req Request) (Receipt, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return Receipt{}, apperrors.GeneralError(err, fmt.Sprintf("malformed amount %q", req.Amount))
	}
	raw, err := banano.ToRaw(amount)
	if err != nil {
		return Receipt{}, apperrors.GeneralError(err, "unswappable amount")
	}

	if !auth.CheckSignature(req.BlockchainWallet, req.Signature, auth.SwapStatement(req.Amount, req.BanWallet)) {
		return Receipt{}, apperrors.InvalidSignatureError(nil,
			fmt.Sprintf("swap signature does not match wallet %s", req.BlockchainWallet))
	}

	owner, err := o.claims.OwnerOf(ctx, req.BanWallet)
	if err != nil {
		return Receipt{}, err
	}
	if owner != auth.NormalizeAddress(req.BlockchainWallet) {
		return Receipt{}, apperrors.InvalidOwnerError(nil,
			fmt.Sprintf("%s does not own a claim on %s", req.BlockchainWallet, req.BanWallet))
	}

	balance, err := o.ledger.AvailableBalance(ctx, req.BanWallet)
	if err != nil {
		return Receipt{}, err
	}
	if balance.Cmp(raw) < 0 {
		return Receipt{}, apperrors.InsufficientBalanceError(nil,
			fmt.Sprintf("balance %s raw, swap needs %s raw", balance, raw))
	}

	wei := amount.Mul(weiPerWBAN).BigInt()
	recipient := common.HexToAddress(req.BlockchainWallet)

	// Receipt forging is local signing with no chain side effect, so it can
	// happen before the debit. A replayed request then fails the record step
	// with AlreadyProcessed and the forged receipt is discarded unminted.
	var receipt Receipt
	if o.cfg.Mode == ModeDirect {
		receipt = Receipt{Wallet: recipient.Hex(), Amount: wei}
	} else {
		mint, err := o.chain.CreateMintReceipt(recipient, wei)
		if err != nil {
			return Receipt{}, apperrors.TransactionFailedError(err, "failed to forge mint receipt")
		}
		receipt = Receipt{Receipt: mint.Receipt, UUID: mint.UUID, Wallet: mint.Wallet, Amount: wei}
	}

	err = o.ledger.RecordSwapToWBAN(ctx, ledger.SwapToWBAN{
		BanWallet:        req.BanWallet,
		BlockchainWallet: req.BlockchainWallet,
		Amount:           raw,
		Timestamp:        req.Timestamp,
		Receipt:          receipt.Receipt,
		UUID:             receipt.UUID,
	})
	if err != nil {
		return Receipt{}, err
	}

	// In direct mode the mint follows the debit. A failed mint leaves the
	// debit in place for operator review rather than silently re-crediting.
	if o.cfg.Mode == ModeDirect {
		hash, err := o.chain.MintTo(ctx, recipient, wei)
		if err != nil {
			return Receipt{}, apperrors.TransactionFailedError(err, "mint transaction failed")
		}
		receipt.TxHash = hash
	}

	o.maybeTopUpGas(ctx, recipient)

	o.logger.Info("Swapped BAN for wBAN",
		zap.String("ban_wallet", req.BanWallet),
		zap.String("blockchain_wallet", req.BlockchainWallet),
		zap.String("amount", req.Amount))
	return receipt, nil
}

// maybeTopUpGas sends a one-time dusting of gas tokens to wallets too poor
// to redeem their first receipt. Failures only log: the swap itself is done.
func (o *Orchestrator) maybeTopUpGas(ctx context.Context, wallet common.Address) {
	if !o.cfg.GaslessEnabled {
		return
	}
	granted, err := o.ledger.GaslessMintGranted(ctx, wallet.Hex())
	if err != nil || granted {
		return
	}
	balance, err := o.chain.NativeBalance(ctx, wallet)
	if err != nil {
		o.logger.Warn("Could not check native balance for gas top-up", zap.Error(err))
		return
	}
	threshold := o.cfg.GaslessThreshold.Mul(weiPerWBAN).BigInt()
	if balance.Cmp(threshold) >= 0 {
		return
	}
	if _, err := o.chain.SendNative(ctx, wallet, threshold); err != nil {
		o.logger.Warn("Gas top-up failed",
			zap.String("wallet", wallet.Hex()),
			zap.Error(err))
		return
	}
	if err := o.ledger.MarkGaslessMint(ctx, wallet.Hex()); err != nil {
		o.logger.Warn("Failed to mark gas top-up", zap.Error(err))
	}
	o.logger.Info("Topped up gas for first-time minter", zap.String("wallet", wallet.Hex()))
}

// FromWBAN credits a burn observed on-chain back to the owner's BAN
// balance. Safe to call any number of times per transaction hash.
func (o *Orchestrator) FromWBAN(ctx context.Context, event bsc.BurnEvent) error {
	if !auth.ValidateBananoAddress(event.BanWallet) {
		return apperrors.GeneralError(nil,
			fmt.Sprintf("burn %s names malformed BAN address %q", event.TxHash.Hex(), event.BanWallet))
	}
	// wBAN wei to BAN raw is an exact integer rescale: 18 decimals to 29.
	raw := new(big.Int).Mul(event.Amount, rawPerWei)

	alreadyDone, err := o.ledger.RecordSwapToBAN(ctx, ledger.SwapToBAN{
		BlockchainWallet: event.From.Hex(),
		BanWallet:        event.BanWallet,
		Amount:           raw,
		Hash:             event.TxHash.Hex(),
		Timestamp:        event.Timestamp,
	})
	if err != nil {
		return err
	}
	if alreadyDone {
		return nil
	}
	o.logger.Info("Swapped wBAN back to BAN",
		zap.String("blockchain_wallet", event.From.Hex()),
		zap.String("ban_wallet", event.BanWallet),
		zap.String("amount", raw.String()),
		zap.String("hash", event.TxHash.Hex()))
	return nil
}
