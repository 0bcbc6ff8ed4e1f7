package router

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stratapool/core/events"
	"stratapool/native/common"
	"stratapool/native/oracle"
	"stratapool/native/pool"
	"stratapool/native/supply"
	"stratapool/native/token"
)

type testWallet struct {
	kind  string
	funds map[string]*big.Rat
}

func newTestWallet(kind string) *testWallet {
	return &testWallet{kind: kind, funds: make(map[string]*big.Rat)}
}

func (w *testWallet) Kind() string { return w.kind }

func (w *testWallet) Receives(tokens token.Token) {
	held, ok := w.funds[tokens.Denom()]
	if !ok {
		held = new(big.Rat)
		w.funds[tokens.Denom()] = held
	}
	held.Add(held, tokens.Amount())
}

func (w *testWallet) holding(denom string) *big.Rat {
	held, ok := w.funds[denom]
	if !ok {
		return new(big.Rat)
	}
	return held
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) byType(eventType string) []events.Event {
	var matched []events.Event
	for _, evt := range r.events {
		if evt.EventType() == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

func testConfig() Config {
	return Config{
		VADenom:           "ETH",
		SADenom:           "USDC",
		FeeRate:           common.MustRat("0.2"),
		OpPremium:         common.MustRat("0.1"),
		SafetyPremium:     common.MustRat("1"),
		RedeemCap:         common.MustRat("1"),
		LiquidationSpread: common.MustRat("0.2"),
		Tolerance:         common.MustRat("0.2"),
		Content:           common.MustRat("0.5"),
		BuyCap:            common.MustRat("100"),
		StakeCap:          common.MustRat("1000000"),
		Floors:            4,
		Cooldown:          200,
	}
}

type fixture struct {
	router   *Router
	source   *oracle.Manual
	emitted  *recordingEmitter
	protocol *testWallet
}

func newFixture(t *testing.T, cfg Config, price string) *fixture {
	t.Helper()
	source := oracle.NewManual(map[string]*big.Rat{
		"ETH":  common.MustRat(price),
		"USDC": common.MustRat("1"),
	})
	r, err := New(cfg, source)
	require.NoError(t, err)
	emitted := &recordingEmitter{}
	r.SetEmitter(emitted)
	return &fixture{
		router:   r,
		source:   source,
		emitted:  emitted,
		protocol: newTestWallet(KindProtocol),
	}
}

func (f *fixture) bootstrap(t *testing.T, amount string) {
	t.Helper()
	deposit := token.New(common.MustRat(amount), f.router.SADenom())
	require.NoError(t, f.router.Provide(context.Background(), f.protocol, deposit))
}

func TestProvideRequiresProtocolBootstrap(t *testing.T) {
	f := newFixture(t, testConfig(), "1337")
	staker := newTestWallet("provider")

	err := f.router.Provide(context.Background(), staker, token.New(common.MustRat("500"), "USDC"))
	require.ErrorIs(t, err, pool.ErrNotInitialized)

	f.bootstrap(t, "1000000")
	require.NoError(t, f.router.Provide(context.Background(), staker, token.New(common.MustRat("500"), "USDC")))
	require.Equal(t, 0, common.MustRat("500").Cmp(f.router.StablePool().Principal()))
}

func TestBuyBootstrapScenario(t *testing.T) {
	f := newFixture(t, testConfig(), "1337")
	f.bootstrap(t, "1000000")
	buyer := newTestWallet("buyer")

	err := f.router.Buy(context.Background(), buyer, token.New(common.MustRat("100"), "ETH"))
	require.NoError(t, err)

	// Cost 133,700 drawn entirely from the top band at full premium.
	require.Equal(t, 0, common.MustRat("866300").Cmp(f.router.StablePool().Balance()))
	require.Equal(t, 0, common.MustRat("26740").Cmp(f.router.FeePool().Balance()))
	require.Equal(t, 0, common.MustRat("100").Cmp(f.router.VolatilePool().Balance()))

	voucherDenom := supply.SerializeDenom(common.MustRat("1337"))
	require.Equal(t, 0, common.MustRat("100").Cmp(f.router.Vouchers().Issued(voucherDenom)))
	require.Equal(t, 0, common.MustRat("100").Cmp(buyer.holding(voucherDenom)))

	completed := f.emitted.byType(events.TypeBuyCompleted)
	require.Len(t, completed, 1)
	buy := completed[0].(events.BuyCompleted)
	require.False(t, buy.WarningActive)
	require.NotEmpty(t, buy.TxID)
	require.Equal(t, 0, common.MustRat("133700").Cmp(buy.StableCost))
}

func TestBuyDuringWarningAutoConvertsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = 2
	f := newFixture(t, cfg, "100")
	f.bootstrap(t, "100")
	staker := newTestWallet("provider")
	require.NoError(t, f.router.Provide(context.Background(), staker, token.New(common.MustRat("1000"), "USDC")))

	buyer := newTestWallet("buyer")
	// Drain most of the stable reserve so the solvency target rises.
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("8"), "ETH")))
	require.False(t, f.router.Warning())

	// Price collapse below the derived threshold fires the emergency on the
	// next transaction.
	require.NoError(t, f.source.SetPrice("ETH", common.MustRat("80")))
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("0.1"), "ETH")))
	require.True(t, f.router.Warning())
	require.Equal(t, uint64(1), f.router.TriggeredCount())
	require.Equal(t, 0, new(big.Rat).Cmp(f.router.VolatilePool().Balance()))

	// While warning is active the stable reserve is frozen: no vouchers mint
	// and the entire cost is auto-converted.
	supplyBefore := len(f.router.Vouchers().Denoms())
	feeBefore := f.router.FeePool().Balance()
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("1"), "ETH")))
	require.Len(t, f.router.Vouchers().Denoms(), supplyBefore)
	require.Equal(t, 0, new(big.Rat).Cmp(f.router.VolatilePool().Balance()))

	converted := f.emitted.byType(events.TypeAutoConverted)
	require.NotEmpty(t, converted)
	expectedFee := new(big.Rat).Add(feeBefore, common.MustRat("16"))
	require.Equal(t, 0, expectedFee.Cmp(f.router.FeePool().Balance()))
	require.True(t, f.router.Warning())
}

func TestRedeemVoucherZeroInflationIsNoOp(t *testing.T) {
	f := newFixture(t, testConfig(), "1337")
	f.bootstrap(t, "1000000")
	buyer := newTestWallet("buyer")
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("100"), "ETH")))

	voucherDenom := supply.SerializeDenom(common.MustRat("1337"))
	saBefore := f.router.StablePool().Balance()
	vaBefore := f.router.VolatilePool().Balance()
	feeBefore := f.router.FeePool().Balance()

	vouchers := token.New(buyer.holding(voucherDenom), voucherDenom)
	buyer.funds[voucherDenom] = new(big.Rat)
	require.NoError(t, f.router.RedeemVoucher(context.Background(), buyer, vouchers))

	// Identical vouchers handed back; every reserve untouched.
	require.Equal(t, 0, common.MustRat("100").Cmp(buyer.holding(voucherDenom)))
	require.Equal(t, 0, common.MustRat("100").Cmp(f.router.Vouchers().Issued(voucherDenom)))
	require.Equal(t, 0, saBefore.Cmp(f.router.StablePool().Balance()))
	require.Equal(t, 0, vaBefore.Cmp(f.router.VolatilePool().Balance()))
	require.Equal(t, 0, feeBefore.Cmp(f.router.FeePool().Balance()))

	skipped := f.emitted.byType(events.TypeNothingToRedeem)
	require.Len(t, skipped, 1)
	require.Equal(t, events.CauseDeflation, skipped[0].(events.NothingToRedeem).Cause)

	// Repeated no-op redemptions must not drift circulating supply: an
	// inflated supply would permanently depress the max redeem rate.
	buyer.funds[voucherDenom] = new(big.Rat)
	require.NoError(t, f.router.RedeemVoucher(context.Background(), buyer, vouchers))
	require.Equal(t, 0, common.MustRat("100").Cmp(buyer.holding(voucherDenom)))
	require.Equal(t, 0, common.MustRat("100").Cmp(f.router.Vouchers().Issued(voucherDenom)))
}

func TestRedeemVoucherPaysInflationUpside(t *testing.T) {
	f := newFixture(t, testConfig(), "1337")
	f.bootstrap(t, "1000000")
	buyer := newTestWallet("buyer")
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("100"), "ETH")))

	require.NoError(t, f.source.SetPrice("ETH", common.MustRat("1500")))

	voucherDenom := supply.SerializeDenom(common.MustRat("1337"))
	vouchers := token.New(buyer.holding(voucherDenom), voucherDenom)
	buyer.funds[voucherDenom] = new(big.Rat)
	require.NoError(t, f.router.RedeemVoucher(context.Background(), buyer, vouchers))

	// Inflation (1500-1337)/1337 over 100 vouchers at issue price 1337 yields
	// 16,300 USD; the full rate applies because the surplus dwarfs the
	// returns. The buyer keeps 90% in volatile units, the premium lands in
	// the fee reserve converted to stable.
	expectedPaidVA := common.MustRat("9.78") // 16300/1500 * 0.9
	require.Equal(t, 0, expectedPaidVA.Cmp(buyer.holding("ETH")))
	require.Equal(t, 0, new(big.Rat).Cmp(f.router.Vouchers().Issued(voucherDenom)))

	expectedFee := common.MustRat("28370") // 26740 + 16300*0.1
	require.Equal(t, 0, expectedFee.Cmp(f.router.FeePool().Balance()))

	expectedVA := common.MustRat("1337/15") // 100 - 16300/1500
	require.Equal(t, 0, expectedVA.Cmp(f.router.VolatilePool().Balance()))

	redeemed := f.emitted.byType(events.TypeVoucherRedeemed)
	require.Len(t, redeemed, 1)
	require.Equal(t, 0, common.MustRat("16300").Cmp(redeemed[0].(events.VoucherRedeemed).RedeemUSD))
}

func TestRedeemSharesDeficitRetryLiquidatesVolatile(t *testing.T) {
	f := newFixture(t, testConfig(), "100")
	f.bootstrap(t, "1000")
	staker := newTestWallet("provider")
	require.NoError(t, f.router.Provide(context.Background(), staker, token.New(common.MustRat("1000"), "USDC")))
	require.Equal(t, 0, common.One().Cmp(staker.holding(supply.ShareDenom)))

	buyer := newTestWallet("buyer")
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("15"), "ETH")))
	require.Equal(t, 0, common.MustRat("500").Cmp(f.router.StablePool().Balance()))

	// The staker's half of the owed 2,000 is 1,000 against a 500 balance.
	// The 500 deficit is liquidated out of the volatile reserve and the
	// redemption retried once.
	require.NoError(t, f.router.RedeemShares(context.Background(), staker, token.New(common.One(), supply.ShareDenom)))

	expectedPayout := common.MustRat("1150") // 1000 principal + 150 fee share
	require.Equal(t, 0, expectedPayout.Cmp(staker.holding("USDC")))
	require.Equal(t, 0, common.One().Cmp(f.router.Shares().Issued(supply.ShareDenom)))

	// The drained reserve triggers a proactive refill during the closing
	// rebalance.
	require.Equal(t, uint64(1), f.router.RebalancedCount())
	require.Equal(t, 0, common.MustRat("250").Cmp(f.router.StablePool().Balance()))
	require.Equal(t, 0, common.MustRat("7.5").Cmp(f.router.VolatilePool().Balance()))
}

func TestRedeemSharesInsolventLiquidationPropagates(t *testing.T) {
	f := newFixture(t, testConfig(), "100")
	f.bootstrap(t, "1000")
	staker := newTestWallet("provider")
	require.NoError(t, f.router.Provide(context.Background(), staker, token.New(common.MustRat("3000"), "USDC")))

	buyer := newTestWallet("buyer")
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("30"), "ETH")))
	require.Equal(t, 0, common.MustRat("1000").Cmp(f.router.StablePool().Balance()))

	// With the volatile reserve nearly worthless the deficit cannot be
	// liquidated away; the insolvency signal propagates untouched.
	require.NoError(t, f.source.SetPrice("ETH", common.MustRat("1")))
	err := f.router.RedeemShares(context.Background(), staker, token.New(common.MustRat("3"), supply.ShareDenom))
	require.ErrorIs(t, err, pool.ErrCannotLiquidateEnough)

	// Share burn precedes the payout; the failed transaction leaves the burn
	// in place. Multi-step transactions are not atomic.
	require.Equal(t, 0, common.One().Cmp(f.router.Shares().Issued(supply.ShareDenom)))
}

func TestDryRunRedeemSharesDoesNotMutate(t *testing.T) {
	f := newFixture(t, testConfig(), "100")
	f.bootstrap(t, "1000")
	staker := newTestWallet("provider")
	require.NoError(t, f.router.Provide(context.Background(), staker, token.New(common.MustRat("1000"), "USDC")))

	saBefore := f.router.StablePool().Balance()
	estimate, err := f.router.DryRunRedeemShares(token.New(common.One(), supply.ShareDenom))
	require.NoError(t, err)

	// Half of the owed 2,000 plus half of the empty fee reserve.
	require.Equal(t, 0, common.MustRat("1000").Cmp(estimate))
	require.Equal(t, 0, saBefore.Cmp(f.router.StablePool().Balance()))
	require.Equal(t, 0, common.MustRat("2").Cmp(f.router.Shares().Issued(supply.ShareDenom)))
}

func TestAcceptingLiquidityCapsPrincipal(t *testing.T) {
	cfg := testConfig()
	cfg.StakeCap = common.MustRat("500")
	f := newFixture(t, cfg, "100")
	f.bootstrap(t, "1000")
	require.True(t, f.router.AcceptingLiquidity())

	staker := newTestWallet("provider")
	require.NoError(t, f.router.Provide(context.Background(), staker, token.New(common.MustRat("1001"), "USDC")))
	require.False(t, f.router.AcceptingLiquidity())
}

func TestBuyRejectsWrongDenom(t *testing.T) {
	f := newFixture(t, testConfig(), "1337")
	f.bootstrap(t, "1000000")
	buyer := newTestWallet("buyer")

	err := f.router.Buy(context.Background(), buyer, token.New(common.MustRat("1"), "USDC"))
	require.ErrorIs(t, err, pool.ErrDenomMismatch)
	require.False(t, errors.As(err, new(*pool.DeficitError)))
}

func TestConservationAcrossOperations(t *testing.T) {
	f := newFixture(t, testConfig(), "1337")
	f.bootstrap(t, "1000000")
	buyer := newTestWallet("buyer")
	require.NoError(t, f.router.Buy(context.Background(), buyer, token.New(common.MustRat("100"), "ETH")))

	// Internal value: stable + volatile at price + fee. The buy injected the
	// buyer's 133,700 of volatile value and charged the 26,740 fee on top.
	price := common.MustRat("1337")
	total := func() *big.Rat {
		value := new(big.Rat).Mul(f.router.VolatilePool().Balance(), price)
		value.Add(value, f.router.StablePool().Balance())
		value.Add(value, f.router.FeePool().Balance())
		return value
	}
	require.Equal(t, 0, common.MustRat("1026740").Cmp(total()))

	// A zero-inflation redemption moves no value.
	voucherDenom := supply.SerializeDenom(price)
	require.NoError(t, f.router.RedeemVoucher(context.Background(), buyer,
		token.New(buyer.holding(voucherDenom), voucherDenom)))
	require.Equal(t, 0, common.MustRat("1026740").Cmp(total()))
}
