// Package bsc talks to the EVM chain hosting the wBAN token contract.
package bsc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MintReceipt authorizes the holder to mint wBAN by submitting it to the
// token contract themselves, paying their own gas.
type MintReceipt struct {
	// Receipt is the hex-encoded bridge signature over
	// (recipient, amount, uuid, chainID).
	Receipt string
	// UUID makes the receipt single-use contract-side
	UUID string
	// Wallet is the recipient the receipt is bound to
	Wallet string
	// Amount is the mintable amount in wei-scale token units
	Amount *big.Int
}

// BurnEvent is a wBAN burn observed on-chain, carrying the BAN address the
// holder wants their coins sent to.
type BurnEvent struct {
	From      common.Address
	BanWallet string
	Amount    *big.Int
	TxHash    common.Hash
	Block     int64
	Timestamp time.Time
}

// Client is the chain capability surface the bridge consumes
type Client interface {
	// CreateMintReceipt forges a signed off-chain mint authorization
	CreateMintReceipt(wallet common.Address, amount *big.Int) (MintReceipt, error)
	// MintTo submits the mint transaction from the bridge wallet
	MintTo(ctx context.Context, wallet common.Address, amount *big.Int) (string, error)
	// BurnEvents returns wBAN burns in the inclusive block range
	BurnEvents(ctx context.Context, fromBlock, toBlock int64) ([]BurnEvent, error)
	// LatestBlock returns the newest confirmed block number
	LatestBlock(ctx context.Context) (int64, error)
	// NativeBalance returns the wallet's gas token balance in wei
	NativeBalance(ctx context.Context, wallet common.Address) (*big.Int, error)
	// SendNative transfers gas tokens from the bridge wallet
	SendNative(ctx context.Context, wallet common.Address, amount *big.Int) (string, error)
}
