package oracle

import (
	"errors"
	"math/big"
	"testing"

	"stratapool/native/common"
	"stratapool/native/token"
)

func newTestSource(t *testing.T) *Manual {
	t.Helper()
	return NewManual(map[string]*big.Rat{
		"ETH":  common.MustRat("1337"),
		"USDC": common.MustRat("1"),
	})
}

func TestPriceLookup(t *testing.T) {
	m := newTestSource(t)
	price, err := m.Price("ETH")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(common.MustRat("1337")) != 0 {
		t.Fatalf("price = %s", price)
	}
	if _, err := m.Price("DOGE"); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}

func TestExchange(t *testing.T) {
	m := newTestSource(t)
	out, err := m.Exchange(token.New(common.MustRat("100"), "ETH"), "USDC")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if out.Denom() != "USDC" {
		t.Fatalf("denom = %s", out.Denom())
	}
	if out.Amount().Cmp(common.MustRat("133700")) != 0 {
		t.Fatalf("amount = %s, want 133700", out.Amount())
	}

	back, err := m.Exchange(out, "ETH")
	if err != nil {
		t.Fatalf("exchange back: %v", err)
	}
	if back.Amount().Cmp(common.MustRat("100")) != 0 {
		t.Fatalf("round trip = %s, want 100", back.Amount())
	}

	same, err := m.Exchange(out, "USDC")
	if err != nil {
		t.Fatalf("identity exchange: %v", err)
	}
	if same.Amount().Cmp(out.Amount()) != 0 {
		t.Fatalf("identity exchange changed amount")
	}
}

func TestSetPrice(t *testing.T) {
	m := newTestSource(t)
	if err := m.SetPriceDecimal("ETH", "1500.5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	price, err := m.Price("ETH")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(common.MustRat("1500.5")) != 0 {
		t.Fatalf("price = %s", price)
	}
	if err := m.SetPriceDecimal("ETH", "zero"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := m.SetPrice("ETH", common.MustRat("-3")); err == nil {
		t.Fatalf("expected rejection of non-positive price")
	}
}
