package supply

import (
	"fmt"
	"math/big"
	"strings"

	"stratapool/native/common"
	"stratapool/native/token"
)

const (
	voucherDenomPrefix = "<price-"
	voucherDenomSuffix = ">"
)

// VoucherContract is the price-indexed voucher ledger. Each issuance price
// opens its own denomination, so distinct buy prices form distinct series.
type VoucherContract struct {
	Contract
}

// NewVoucherContract constructs an empty voucher ledger.
func NewVoucherContract() *VoucherContract {
	return &VoucherContract{Contract: *NewContract()}
}

// SerializeDenom encodes an issuance price as a voucher denomination. The
// rational string form round-trips losslessly through ParseDenom.
func SerializeDenom(price *big.Rat) string {
	return voucherDenomPrefix + common.Rat(price).RatString() + voucherDenomSuffix
}

// ParseDenom recovers the issuance price from a voucher denomination.
func ParseDenom(denom string) (*big.Rat, error) {
	if !strings.HasPrefix(denom, voucherDenomPrefix) || !strings.HasSuffix(denom, voucherDenomSuffix) {
		return nil, fmt.Errorf("supply: malformed voucher denomination %q", denom)
	}
	encoded := denom[len(voucherDenomPrefix) : len(denom)-len(voucherDenomSuffix)]
	price, err := common.ParseRat(encoded)
	if err != nil {
		return nil, fmt.Errorf("supply: malformed voucher denomination %q: %w", denom, err)
	}
	return price, nil
}

// AdjustedQuantity converts per-tier withdrawal amounts into a voucher
// quantity. Steps are ordered from the least-stressed tier downward; the
// first tier mints at the full safety premium and each deeper tier is
// discounted by 1/floors, penalising purchases made while the stable reserve
// is already depleted.
func (vc *VoucherContract) AdjustedQuantity(steps []token.Token, safetyPremium *big.Rat, floors int) *big.Rat {
	quantity := new(big.Rat)
	if floors <= 0 {
		return quantity
	}
	premium := common.Rat(safetyPremium)
	discount := big.NewRat(1, int64(floors))
	for _, step := range steps {
		quantity.Add(quantity, new(big.Rat).Mul(step.Amount(), premium))
		premium = new(big.Rat).Sub(premium, discount)
	}
	return quantity
}
