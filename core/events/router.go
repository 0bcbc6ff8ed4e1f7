package events

import "math/big"

const (
	// TypeBuyCompleted is emitted after a successful voucher purchase.
	TypeBuyCompleted = "router.buy_completed"
	// TypeVoucherRedeemed is emitted after a successful buyer redemption.
	TypeVoucherRedeemed = "router.voucher_redeemed"
	// TypeNothingToRedeem is emitted when a buyer redemption nets zero and the
	// vouchers are re-minted unchanged.
	TypeNothingToRedeem = "router.nothing_to_redeem"
	// TypeLiquidityProvided is emitted after a successful stake.
	TypeLiquidityProvided = "router.liquidity_provided"
	// TypeSharesRedeemed is emitted after a successful provider redemption.
	TypeSharesRedeemed = "router.shares_redeemed"
	// TypeAutoConverted is emitted when a stable shortfall is serviced by
	// liquidating the volatile reserve during a buy.
	TypeAutoConverted = "router.auto_converted"
)

// Redemption outcome causes reported by NothingToRedeem.
const (
	CauseDeflation  = "deflation"
	CauseLowBalance = "low_balance"
)

// BuyCompleted summarises a voucher purchase.
type BuyCompleted struct {
	TxID          string
	VADenom       string
	VAAmount      *big.Rat
	StableCost    *big.Rat
	Fee           *big.Rat
	VoucherDenom  string
	VoucherAmount *big.Rat
	AutoConverted *big.Rat
	WarningActive bool
}

func (BuyCompleted) EventType() string { return TypeBuyCompleted }

// VoucherRedeemed summarises a buyer redemption.
type VoucherRedeemed struct {
	TxID          string
	VoucherDenom  string
	VoucherAmount *big.Rat
	RedeemUSD     *big.Rat
	PaidVA        *big.Rat
	FeeUSD        *big.Rat
}

func (VoucherRedeemed) EventType() string { return TypeVoucherRedeemed }

// NothingToRedeem reports a zero-value redemption and its cause.
type NothingToRedeem struct {
	TxID          string
	VoucherDenom  string
	VoucherAmount *big.Rat
	Cause         string
}

func (NothingToRedeem) EventType() string { return TypeNothingToRedeem }

// LiquidityProvided summarises a provider stake.
type LiquidityProvided struct {
	TxID             string
	StableAmount     *big.Rat
	SharesMinted     *big.Rat
	ProtocolInjected bool
}

func (LiquidityProvided) EventType() string { return TypeLiquidityProvided }

// SharesRedeemed summarises a provider redemption.
type SharesRedeemed struct {
	TxID            string
	ShareAmount     *big.Rat
	PrincipalPayout *big.Rat
	FeePayout       *big.Rat
}

func (SharesRedeemed) EventType() string { return TypeSharesRedeemed }

// AutoConverted reports the volatile amount liquidated to cover a stable
// shortfall in a buy.
type AutoConverted struct {
	TxID     string
	VADenom  string
	VAAmount *big.Rat
}

func (AutoConverted) EventType() string { return TypeAutoConverted }
