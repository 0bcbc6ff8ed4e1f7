package solvency

import (
	"fmt"
	"math/big"

	"stratapool/native/common"
	"stratapool/native/oracle"
	"stratapool/native/supply"
)

// InflationConfig carries the redemption knobs for the inflation tracker.
type InflationConfig struct {
	// RedeemCap bounds the fraction of the surplus redeemable per call.
	RedeemCap *big.Rat
}

// InflationTracker computes the inflation-linked redemption rate for voucher
// holders. It is a pure function of the oracle price, the voucher supply and
// the solvency tracker's pool valuations.
type InflationTracker struct {
	vouchers *supply.VoucherContract
	tracker  *BalanceTracker
	source   oracle.Source
	vaDenom  string
	cfg      InflationConfig
}

// NewInflationTracker constructs an inflation tracker over the voucher supply.
func NewInflationTracker(vouchers *supply.VoucherContract, tracker *BalanceTracker, source oracle.Source, vaDenom string, cfg InflationConfig) *InflationTracker {
	return &InflationTracker{
		vouchers: vouchers,
		tracker:  tracker,
		source:   source,
		vaDenom:  vaDenom,
		cfg:      cfg,
	}
}

// Inflation returns the inflation rate of the volatile asset against the
// supplied issuance price, floored at zero under deflation.
func (it *InflationTracker) Inflation(issuePrice *big.Rat) (*big.Rat, error) {
	if issuePrice == nil || issuePrice.Sign() <= 0 {
		return nil, fmt.Errorf("solvency: issue price must be positive")
	}
	current, err := it.source.Price(it.vaDenom)
	if err != nil {
		return nil, err
	}
	rate := new(big.Rat).Quo(current, issuePrice)
	rate.Sub(rate, common.One())
	return common.ClampNonNegative(rate), nil
}

// MaxRedeemRate returns the fraction of accrued inflation returns the
// volatile reserve surplus can actually cover, capped at the configured
// redemption ceiling. Zero when there is no surplus or no inflation accrual.
func (it *InflationTracker) MaxRedeemRate() (*big.Rat, error) {
	vaValue, err := it.tracker.VAPoolValueUSD()
	if err != nil {
		return nil, err
	}
	surplus := new(big.Rat).Sub(vaValue, it.tracker.TargetVAPoolValueUSD())
	surplus = common.ClampNonNegative(surplus)

	returns, err := it.poolReturnsUSD()
	if err != nil {
		return nil, err
	}
	if common.Leq(surplus, common.Zero()) || common.Leq(returns, common.Zero()) {
		return common.Zero(), nil
	}
	rate := new(big.Rat).Quo(surplus, returns)
	return common.Min(rate, it.cfg.RedeemCap), nil
}

// poolReturnsUSD sums the accrued inflation value across every voucher
// series: inflation(p) * p * circulating supply.
func (it *InflationTracker) poolReturnsUSD() (*big.Rat, error) {
	total := new(big.Rat)
	for _, denom := range it.vouchers.Denoms() {
		issued := it.vouchers.Issued(denom)
		if issued.Sign() == 0 {
			continue
		}
		issuePrice, err := supply.ParseDenom(denom)
		if err != nil {
			return nil, err
		}
		inflation, err := it.Inflation(issuePrice)
		if err != nil {
			return nil, err
		}
		series := new(big.Rat).Mul(inflation, issuePrice)
		series.Mul(series, issued)
		total.Add(total, series)
	}
	return total, nil
}
