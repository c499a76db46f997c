package ledger

import (
	"math/big"
	"time"
)

// Operation types recorded in audit entries
const (
	OpDeposit    = "banano-deposit"
	OpWithdrawal = "banano-withdrawal"
	OpSwapToWBAN = "swap-ban-to-wban"
	OpSwapToBAN  = "swap-wban-to-ban"
)

// Deposit is a BAN transfer received by the custodial deposits wallet.
// Ingested at most once per (BanWallet, Hash).
type Deposit struct {
	BanWallet string
	Amount    *big.Int
	Timestamp time.Time
	Hash      string
}

// Withdrawal is a request to pay deposited BAN back out.
// Ingested at most once per (BanWallet, Timestamp).
type Withdrawal struct {
	BanWallet        string
	BlockchainWallet string
	Amount           *big.Int
	Timestamp        time.Time
	Hash             string
}

// SwapToWBAN moves deposited BAN into wBAN on the destination chain.
// One record per (BanWallet, Timestamp).
type SwapToWBAN struct {
	BanWallet        string
	BlockchainWallet string
	Amount           *big.Int
	Timestamp        time.Time
	// Receipt either holds the off-chain signed mint authorization plus its
	// UUID, or the hash of a directly submitted mint transaction.
	Receipt string
	UUID    string
}

// SwapToBAN credits deposited BAN from a destination-chain burn event.
// One record per transaction Hash; replay-safe.
type SwapToBAN struct {
	BlockchainWallet string
	BanWallet        string
	Amount           *big.Int
	Hash             string
	Timestamp        time.Time
}

// AuditEntry is the immutable record behind history queries
type AuditEntry struct {
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Hash      string `json:"hash,omitempty"`
	Receipt   string `json:"receipt,omitempty"`
	UUID      string `json:"uuid,omitempty"`
	Wallet    string `json:"wallet,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
