// Package banano talks to a Banano node. Sends and receives are signed by
// a wallet hosted on the node itself, addressed by wallet ID.
package banano

import (
	"context"
	"math/big"
	"time"
)

// Deposit is an incoming send block aimed at the bridge deposit account
type Deposit struct {
	From      string
	Amount    *big.Int
	Hash      string
	Timestamp time.Time
}

// Client is the node capability surface the bridge consumes
type Client interface {
	// Balance returns the confirmed balance of an account in raw
	Balance(ctx context.Context, account string) (*big.Int, error)
	// Send transfers raw from the hot wallet to the destination account
	// and returns the hash of the send block.
	Send(ctx context.Context, destination string, amount *big.Int) (string, error)
	// ReceivePending pockets all receivable blocks on the deposit account
	// and returns the resulting deposits.
	ReceivePending(ctx context.Context) ([]Deposit, error)
	// Subscribe streams confirmed deposits as the network reports them.
	// The channel closes when the context is cancelled or the stream dies.
	Subscribe(ctx context.Context) (<-chan Deposit, error)
}
