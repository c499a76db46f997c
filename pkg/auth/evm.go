package auth

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var bananoAddressPattern = regexp.MustCompile(`^ban_[13][13-9a-km-uw-z]{59}$`)

// VerifyEIP191Signature verifies an EIP-191 personal_sign signature
// Returns the recovered address if valid
func VerifyEIP191Signature(message, signature string) (common.Address, error) {
	// Decode signature from hex
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}

	if len(sigBytes) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: expected 65, got %d", len(sigBytes))
	}

	// Ethereum signature has recovery id (v) at the end
	// v can be 0, 1, 27, or 28 - normalize to 0 or 1
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	// Create the EIP-191 prefixed message hash
	prefixedMsg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	msgHash := crypto.Keccak256Hash([]byte(prefixedMsg))

	// Recover the public key
	pubKey, err := crypto.SigToPub(msgHash.Bytes(), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	// Derive the address from the public key
	addr := crypto.PubkeyToAddress(*pubKey)
	return addr, nil
}

// CheckSignature verifies that signature authenticates the expected statement
// as signed by the private key behind blockchainWallet.
func CheckSignature(blockchainWallet, signature, expected string) bool {
	author, err := VerifyEIP191Signature(expected, signature)
	if err != nil {
		return false
	}
	return author == common.HexToAddress(blockchainWallet)
}

// ValidateBlockchainAddress checks if a string is a valid destination-chain address
func ValidateBlockchainAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	if len(address) != 42 {
		return false
	}
	_, err := hex.DecodeString(address[2:])
	return err == nil
}

// ValidateBananoAddress checks if a string is a well-formed BAN address
func ValidateBananoAddress(address string) bool {
	return bananoAddressPattern.MatchString(address)
}

// NormalizeAddress lower-cases a destination-chain address. Stored wallet
// keys always use this form.
func NormalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(address).Hex())
}
