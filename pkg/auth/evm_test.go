package auth

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func signMessage(t *testing.T, message string) (string, string) {
	t.Helper()

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}

	prefixedMessage := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256Hash([]byte(prefixedMessage))

	signature, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
	return address, "0x" + hex.EncodeToString(signature)
}

func TestCheckSignature(t *testing.T) {
	banWallet := "ban_1o3k8868n6d1679iz6fcz1wwwaq9hek4ykd58wsj5bozb8gkf38pm7njrr1o"
	statement := SwapStatement("29.0", banWallet)
	wallet, signature := signMessage(t, statement)

	if !CheckSignature(wallet, signature, statement) {
		t.Error("expected signature to verify for the signing wallet")
	}
	if CheckSignature("0x59fd25b60da76afd10d8fc7306f10f2934fc4828", signature, statement) {
		t.Error("expected signature to fail for a different wallet")
	}
	if CheckSignature(wallet, signature, SwapStatement("30.0", banWallet)) {
		t.Error("expected signature to fail for a different statement")
	}
}

func TestCheckSignature_MalformedSignature(t *testing.T) {
	statement := ClaimStatement("ban_1o3k8868n6d1679iz6fcz1wwwaq9hek4ykd58wsj5bozb8gkf38pm7njrr1o")
	if CheckSignature("0x69fd25b60da76afd10d8fc7306f10f2934fc4829", "0xdeadbeef", statement) {
		t.Error("expected short signature to be rejected")
	}
	if CheckSignature("0x69fd25b60da76afd10d8fc7306f10f2934fc4829", "not-hex", statement) {
		t.Error("expected non-hex signature to be rejected")
	}
}

func TestValidateBananoAddress(t *testing.T) {
	valid := []string{
		"ban_1o3k8868n6d1679iz6fcz1wwwaq9hek4ykd58wsj5bozb8gkf38pm7njrr1o",
		"ban_3wban3p8a4kd19xsrapisff7b9sc16ef8erifdzk8w8ihjsromc1cwhd6i1f",
	}
	invalid := []string{
		"",
		"nano_1o3k8868n6d1679iz6fcz1wwwaq9hek4ykd58wsj5bozb8gkf38pm7njrr1o",
		"ban_2o3k8868n6d1679iz6fcz1wwwaq9hek4ykd58wsj5bozb8gkf38pm7njrr1o",
		"ban_1o3k8868n6d1679iz6",
		"0x69fd25b60da76afd10d8fc7306f10f2934fc4829",
	}
	for _, addr := range valid {
		if !ValidateBananoAddress(addr) {
			t.Errorf("expected %q to be valid", addr)
		}
	}
	for _, addr := range invalid {
		if ValidateBananoAddress(addr) {
			t.Errorf("expected %q to be invalid", addr)
		}
	}
}

func TestValidateBlockchainAddress(t *testing.T) {
	if !ValidateBlockchainAddress("0x69fd25b60da76afd10d8fc7306f10f2934fc4829") {
		t.Error("expected address to be valid")
	}
	if ValidateBlockchainAddress("69fd25b60da76afd10d8fc7306f10f2934fc4829") {
		t.Error("expected address without 0x prefix to be invalid")
	}
	if ValidateBlockchainAddress("0x69fd") {
		t.Error("expected short address to be invalid")
	}
}
