package common

import (
	"fmt"
	"math/big"
	"strings"
)

// Tolerance bounds applied by the comparison helpers. Repeated rational
// division keeps values exact, but upstream price feeds arrive as decimal
// strings, so every threshold comparison in the engine is tolerant to avoid
// state flapping on rounding noise.
var (
	relTol = big.NewRat(1, 1_000_000_000)         // 1e-9
	absTol = big.NewRat(1, 1_000_000_000_000)     // 1e-12
	zero   = new(big.Rat)
	one    = big.NewRat(1, 1)
)

// Zero returns a fresh rational zero.
func Zero() *big.Rat { return new(big.Rat) }

// One returns a fresh rational one.
func One() *big.Rat { return new(big.Rat).Set(one) }

// Rat copies the supplied value, treating nil as zero.
func Rat(v *big.Rat) *big.Rat {
	if v == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(v)
}

// ParseRat interprets a decimal or rational string ("1337", "0.2", "3/2") as an
// exact rational value.
func ParseRat(value string) (*big.Rat, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("common: empty rational value")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("common: invalid rational value %q", value)
	}
	return rat, nil
}

// MustRat is a convenience for static values; it panics on malformed input and
// is intended for constants and tests only.
func MustRat(value string) *big.Rat {
	rat, err := ParseRat(value)
	if err != nil {
		panic(err)
	}
	return rat
}

// IsClose reports whether a and b are numerically close under the engine's
// fixed epsilon policy: |a-b| <= max(relTol*max(|a|,|b|), absTol).
func IsClose(a, b *big.Rat) bool {
	if a == nil {
		a = zero
	}
	if b == nil {
		b = zero
	}
	diff := new(big.Rat).Sub(a, b)
	diff.Abs(diff)
	magA := new(big.Rat).Abs(a)
	magB := new(big.Rat).Abs(b)
	if magB.Cmp(magA) > 0 {
		magA = magB
	}
	bound := new(big.Rat).Mul(relTol, magA)
	if bound.Cmp(absTol) < 0 {
		bound = absTol
	}
	return diff.Cmp(bound) <= 0
}

// Leq reports a < b, or a close enough to b to be treated as equal.
func Leq(a, b *big.Rat) bool {
	return ratCmp(a, b) < 0 || IsClose(a, b)
}

// Geq reports a > b, or a close enough to b to be treated as equal.
func Geq(a, b *big.Rat) bool {
	return ratCmp(a, b) > 0 || IsClose(a, b)
}

// Gt reports that a exceeds b by more than the tolerance.
func Gt(a, b *big.Rat) bool { return !Leq(a, b) }

// Lt reports that a falls below b by more than the tolerance.
func Lt(a, b *big.Rat) bool { return !Geq(a, b) }

// Min returns a copy of the smaller of a and b.
func Min(a, b *big.Rat) *big.Rat {
	if ratCmp(a, b) <= 0 {
		return Rat(a)
	}
	return Rat(b)
}

// Max returns a copy of the larger of a and b.
func Max(a, b *big.Rat) *big.Rat {
	if ratCmp(a, b) >= 0 {
		return Rat(a)
	}
	return Rat(b)
}

// ClampNonNegative floors the value at zero.
func ClampNonNegative(v *big.Rat) *big.Rat {
	if v == nil || v.Sign() < 0 {
		return new(big.Rat)
	}
	return new(big.Rat).Set(v)
}

// FormatRat renders the value as a fixed six decimal place string for logs and
// event attributes.
func FormatRat(v *big.Rat) string {
	if v == nil {
		return "0"
	}
	return v.FloatString(6)
}

func ratCmp(a, b *big.Rat) int {
	if a == nil {
		a = zero
	}
	if b == nil {
		b = zero
	}
	return a.Cmp(b)
}
