package solvency

import (
	"math/big"
	"testing"

	"stratapool/native/common"
	"stratapool/native/supply"
	"stratapool/native/token"
)

type discardWallet struct{}

func (discardWallet) Receives(token.Token) {}

func newInflationFixture(t *testing.T, ethPrice string) (*fixture, *supply.VoucherContract, *InflationTracker) {
	t.Helper()
	f := newFixture(t, ethPrice)
	vouchers := supply.NewVoucherContract()
	it := NewInflationTracker(vouchers, f.tracker, f.source, "ETH", InflationConfig{RedeemCap: common.One()})
	return f, vouchers, it
}

func TestInflationRate(t *testing.T) {
	_, _, it := newInflationFixture(t, "1337")

	rate, err := it.Inflation(common.MustRat("1000"))
	if err != nil {
		t.Fatalf("inflation: %v", err)
	}
	if rate.Cmp(common.MustRat("0.337")) != 0 {
		t.Fatalf("rate = %s, want 0.337", rate)
	}

	deflated, err := it.Inflation(common.MustRat("1500"))
	if err != nil {
		t.Fatalf("inflation: %v", err)
	}
	if deflated.Sign() != 0 {
		t.Fatalf("deflation must floor at 0, got %s", deflated)
	}

	if _, err := it.Inflation(new(big.Rat)); err == nil {
		t.Fatalf("zero issue price must be rejected")
	}
}

func TestMaxRedeemRateZeroWithoutVouchers(t *testing.T) {
	f, _, it := newInflationFixture(t, "1337")
	f.bootstrap(t, "500", "")
	if err := f.va.Deposit(token.New(common.MustRat("1"), "ETH")); err != nil {
		t.Fatalf("va deposit: %v", err)
	}

	rate, err := it.MaxRedeemRate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Sign() != 0 {
		t.Fatalf("rate = %s, want 0", rate)
	}
}

func TestMaxRedeemRateZeroWithoutSurplus(t *testing.T) {
	f, vouchers, it := newInflationFixture(t, "1337")
	f.bootstrap(t, "100", "100000")
	f.drainStable(t, "100000")
	vouchers.MintTo(discardWallet{}, token.New(common.MustRat("100"), supply.SerializeDenom(common.MustRat("1000"))))

	// Target (principal 100000 - balance 100) dwarfs the 1337 of volatile
	// value, so there is no surplus to distribute.
	rate, err := it.MaxRedeemRate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Sign() != 0 {
		t.Fatalf("rate = %s, want 0", rate)
	}
}

func TestMaxRedeemRateProRata(t *testing.T) {
	f, vouchers, it := newInflationFixture(t, "1337")
	f.bootstrap(t, "500", "")
	if err := f.va.Deposit(token.New(common.MustRat("1"), "ETH")); err != nil {
		t.Fatalf("va deposit: %v", err)
	}
	vouchers.MintTo(discardWallet{}, token.New(common.MustRat("100"), supply.SerializeDenom(common.MustRat("1000"))))

	// Surplus 1337 over returns 0.337*1000*100 = 33700.
	rate, err := it.MaxRedeemRate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	want := new(big.Rat).Quo(common.MustRat("1337"), common.MustRat("33700"))
	if rate.Cmp(want) != 0 {
		t.Fatalf("rate = %s, want %s", rate, want)
	}
}

func TestMaxRedeemRateCapped(t *testing.T) {
	f, vouchers, it := newInflationFixture(t, "1337")
	f.bootstrap(t, "500", "")
	if err := f.va.Deposit(token.New(common.MustRat("1"), "ETH")); err != nil {
		t.Fatalf("va deposit: %v", err)
	}
	// Tiny voucher series: returns 337 against a 1337 surplus caps at 1.
	vouchers.MintTo(discardWallet{}, token.New(common.MustRat("1"), supply.SerializeDenom(common.MustRat("1000"))))

	rate, err := it.MaxRedeemRate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(common.One()) != 0 {
		t.Fatalf("rate = %s, want capped at 1", rate)
	}
}
