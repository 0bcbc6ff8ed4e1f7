package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stratapool/native/common"
)

// ErrDenomMismatch is returned when arithmetic combines two tokens of
// different denominations.
var ErrDenomMismatch = errors.New("token: denomination mismatch")

// VoucherMarker prefixes every voucher denomination. Denominations without the
// marker are plain reserve assets ("ETH", "USDC", "LP").
const VoucherMarker = '<'

// Token is an immutable amount of a single denomination. Tokens are transient
// values; only their effect on pool balances and circulating supply persists.
type Token struct {
	amount *big.Rat
	denom  string
}

// New constructs a token, copying the amount. A nil amount is treated as zero.
func New(amount *big.Rat, denom string) Token {
	return Token{amount: common.Rat(amount), denom: denom}
}

// Zero returns a zero-amount token of the given denomination.
func Zero(denom string) Token {
	return Token{amount: new(big.Rat), denom: denom}
}

// Amount returns a copy of the token amount.
func (t Token) Amount() *big.Rat { return common.Rat(t.amount) }

// Denom returns the denomination tag.
func (t Token) Denom() string { return t.denom }

// IsZero reports whether the amount is exactly zero.
func (t Token) IsZero() bool { return t.amount == nil || t.amount.Sign() == 0 }

// IsVoucher reports whether the token belongs to a voucher series.
func (t Token) IsVoucher() bool { return IsVoucherDenom(t.denom) }

// Add returns the sum of two tokens of the same denomination.
func (t Token) Add(other Token) (Token, error) {
	if other.denom != t.denom {
		return Token{}, fmt.Errorf("%w: %s + %s", ErrDenomMismatch, t.denom, other.denom)
	}
	return Token{amount: new(big.Rat).Add(t.Amount(), other.Amount()), denom: t.denom}, nil
}

// Sub returns the difference of two tokens of the same denomination.
func (t Token) Sub(other Token) (Token, error) {
	if other.denom != t.denom {
		return Token{}, fmt.Errorf("%w: %s - %s", ErrDenomMismatch, t.denom, other.denom)
	}
	return Token{amount: new(big.Rat).Sub(t.Amount(), other.Amount()), denom: t.denom}, nil
}

// Scale multiplies the amount by a pure scalar. No denomination check applies.
func (t Token) Scale(factor *big.Rat) Token {
	return Token{amount: new(big.Rat).Mul(t.Amount(), common.Rat(factor)), denom: t.denom}
}

// String renders the token for logs.
func (t Token) String() string {
	return fmt.Sprintf("%s %s", common.FormatRat(t.amount), t.denom)
}

// IsVoucherDenom reports whether the denomination carries the voucher marker.
func IsVoucherDenom(denom string) bool {
	return strings.HasPrefix(denom, string(VoucherMarker))
}
