package auth

import "fmt"

// The bridge only accepts requests whose signature covers one of these
// literal statements. Wording is part of the wire contract with the frontend
// and must not change.

// ClaimStatement is the statement a user signs to bind a BAN wallet to their
// destination-chain wallet.
func ClaimStatement(banWallet string) string {
	return fmt.Sprintf(`I hereby claim that the BAN address "%s" is mine`, banWallet)
}

// SwapStatement is the statement a user signs to swap deposited BAN for wBAN.
// The amount is expressed in whole BAN, exactly as the user typed it.
func SwapStatement(amount, banWallet string) string {
	return fmt.Sprintf(`Swap %s BAN for wBAN with BAN I deposited from my wallet "%s"`, amount, banWallet)
}

// WithdrawalStatement is the statement a user signs to withdraw deposited BAN.
func WithdrawalStatement(amount, banWallet string) string {
	return fmt.Sprintf(`Withdraw %s BAN to my wallet "%s"`, amount, banWallet)
}
