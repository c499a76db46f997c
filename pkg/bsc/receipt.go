package bsc

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// signer forges mint receipts with the bridge wallet key. The contract
// recovers the same digest, so the word layout here has to match its
// abi.encode call exactly: four 32-byte words.
type signer struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func (s *signer) createMintReceipt(wallet common.Address, amount *big.Int) (MintReceipt, error) {
	id := uuid.New()
	nonce := new(big.Int).SetBytes(id[:])

	var payload []byte
	payload = append(payload, common.LeftPadBytes(wallet.Bytes(), 32)...)
	payload = append(payload, math.U256Bytes(new(big.Int).Set(amount))...)
	payload = append(payload, math.U256Bytes(nonce)...)
	payload = append(payload, math.U256Bytes(new(big.Int).Set(s.chainID))...)
	digest := crypto.Keccak256(payload)

	prefixed := crypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))),
		digest,
	)
	sig, err := crypto.Sign(prefixed, s.key)
	if err != nil {
		return MintReceipt{}, fmt.Errorf("failed to sign mint receipt: %w", err)
	}
	// contract-side ecrecover expects v in {27, 28}
	sig[64] += 27

	return MintReceipt{
		Receipt: hexutil.Encode(sig),
		UUID:    nonce.String(),
		Wallet:  wallet.Hex(),
		Amount:  new(big.Int).Set(amount),
	}, nil
}
