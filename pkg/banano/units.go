package banano

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// one BAN is 10^29 raw
var rawPerBan = decimal.New(1, 29)

// FromRaw converts a raw amount to whole BAN
func FromRaw(raw *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, 0).Div(rawPerBan)
}

// ToRaw converts whole BAN to raw. Fails on amounts finer than raw
// resolution or not positive.
func ToRaw(amount decimal.Decimal) (*big.Int, error) {
	raw := amount.Mul(rawPerBan)
	if !raw.IsInteger() {
		return nil, fmt.Errorf("amount %s is finer than raw resolution", amount)
	}
	if raw.Sign() <= 0 {
		return nil, fmt.Errorf("amount %s is not positive", amount)
	}
	return raw.BigInt(), nil
}
