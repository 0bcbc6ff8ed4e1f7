package sim

import (
	"fmt"
	"math/big"
	"sort"

	"stratapool/native/common"
	"stratapool/native/supply"
	"stratapool/native/token"
)

// Wallet tracks an agent's holdings per denomination along with lifetime
// totals, so spend and redemption flows remain auditable after the funds
// themselves have moved.
type Wallet struct {
	owner         string
	funds         map[string]*big.Rat
	totalSpent    map[string]*big.Rat
	totalRedeemed map[string]*big.Rat
}

// NewWallet constructs an empty wallet.
func NewWallet(owner string) *Wallet {
	return &Wallet{
		owner:         owner,
		funds:         make(map[string]*big.Rat),
		totalSpent:    make(map[string]*big.Rat),
		totalRedeemed: make(map[string]*big.Rat),
	}
}

// Owner returns the wallet holder's name.
func (w *Wallet) Owner() string { return w.owner }

// Receives credits the wallet and records the lifetime redemption total.
func (w *Wallet) Receives(tokens token.Token) {
	bump(w.funds, tokens.Denom(), tokens.Amount())
	bump(w.totalRedeemed, tokens.Denom(), tokens.Amount())
}

// Send debits the wallet and records the lifetime spend total.
func (w *Wallet) Send(tokens token.Token) error {
	held := w.BalanceOf(tokens.Denom())
	if common.Lt(held, tokens.Amount()) {
		return fmt.Errorf("sim: wallet %s holds %s %s, cannot send %s",
			w.owner, common.FormatRat(held), tokens.Denom(), common.FormatRat(tokens.Amount()))
	}
	balance, ok := w.funds[tokens.Denom()]
	if !ok {
		balance = new(big.Rat)
		w.funds[tokens.Denom()] = balance
	}
	balance.Sub(balance, tokens.Amount())
	bump(w.totalSpent, tokens.Denom(), tokens.Amount())
	return nil
}

// BalanceOf returns the held amount for a denomination.
func (w *Wallet) BalanceOf(denom string) *big.Rat {
	return common.Rat(w.funds[denom])
}

// TotalSpent returns the lifetime amount sent for a denomination.
func (w *Wallet) TotalSpent(denom string) *big.Rat {
	return common.Rat(w.totalSpent[denom])
}

// TotalRedeemed returns the lifetime amount received for a denomination.
func (w *Wallet) TotalRedeemed(denom string) *big.Rat {
	return common.Rat(w.totalRedeemed[denom])
}

// RedeemableVouchers returns the first held voucher series whose issue price
// does not exceed the current price. Denominations are scanned in sorted
// order so the lookup stays deterministic.
func (w *Wallet) RedeemableVouchers(currentPrice *big.Rat) (token.Token, bool) {
	denoms := make([]string, 0, len(w.funds))
	for denom := range w.funds {
		if token.IsVoucherDenom(denom) {
			denoms = append(denoms, denom)
		}
	}
	sort.Strings(denoms)
	for _, denom := range denoms {
		held := w.funds[denom]
		if held == nil || held.Sign() == 0 {
			continue
		}
		issuePrice, err := supply.ParseDenom(denom)
		if err != nil {
			continue
		}
		if common.Leq(issuePrice, currentPrice) {
			return token.New(held, denom), true
		}
	}
	return token.Token{}, false
}

func bump(ledger map[string]*big.Rat, denom string, amount *big.Rat) {
	held, ok := ledger[denom]
	if !ok {
		held = new(big.Rat)
		ledger[denom] = held
	}
	held.Add(held, amount)
}
