package sim

import (
	"context"
	"math/big"
	"math/rand"

	"stratapool/native/common"
	"stratapool/native/oracle"
	"stratapool/native/router"
	"stratapool/native/supply"
	"stratapool/native/token"
)

// Agent is one simulated participant stepped once per round.
type Agent interface {
	router.Participant
	Name() string
	Step(ctx context.Context) error
}

// Protocol is the treasury participant whose deposits seed initial liquidity.
// It holds no wallet; injected funds leave the simulation's books.
type Protocol struct{}

// Kind tags the participant as the protocol treasury.
func (Protocol) Kind() string { return router.KindProtocol }

// Receives discards credited tokens.
func (Protocol) Receives(token.Token) {}

// Buyer purchases vouchers with an unlimited volatile budget and redeems
// them opportunistically. Spend and redemption are tracked in USD terms.
type Buyer struct {
	name   string
	wallet *Wallet
	engine *router.Router
	source oracle.Source
	rng    *rand.Rand

	bought      bool
	spentUSD    *big.Rat
	redeemedUSD *big.Rat
}

// NewBuyer constructs a buyer with its own deterministic random stream.
func NewBuyer(name string, engine *router.Router, source oracle.Source, seed int64) *Buyer {
	return &Buyer{
		name:        name,
		wallet:      NewWallet(name),
		engine:      engine,
		source:      source,
		rng:         rand.New(rand.NewSource(seed)),
		spentUSD:    new(big.Rat),
		redeemedUSD: new(big.Rat),
	}
}

// Name returns the buyer's display name.
func (b *Buyer) Name() string { return b.name }

// Kind tags the participant as a buyer.
func (b *Buyer) Kind() string { return "buyer" }

// Wallet exposes the buyer's holdings.
func (b *Buyer) Wallet() *Wallet { return b.wallet }

// SpentUSD returns the cumulative volatile spend valued at receipt time.
func (b *Buyer) SpentUSD() *big.Rat { return common.Rat(b.spentUSD) }

// RedeemedUSD returns the cumulative volatile redemptions valued at receipt
// time.
func (b *Buyer) RedeemedUSD() *big.Rat { return common.Rat(b.redeemedUSD) }

// Receives credits the wallet, valuing volatile inflows at the current price.
func (b *Buyer) Receives(tokens token.Token) {
	if tokens.Denom() == b.engine.VADenom() {
		if price, err := b.source.Price(tokens.Denom()); err == nil {
			b.redeemedUSD.Add(b.redeemedUSD, new(big.Rat).Mul(tokens.Amount(), price))
		}
	}
	b.wallet.Receives(tokens)
}

// Step runs one round of the buyer policy: an even chance of redeeming a
// random portion of a mature voucher series, then an even chance of buying a
// random amount under the purchase cap. Lifetime spend above ten times the
// cap retires the buyer from further purchases.
func (b *Buyer) Step(ctx context.Context) error {
	price, err := b.source.Price(b.engine.VADenom())
	if err != nil {
		return err
	}

	if b.bought && b.rng.Intn(2) == 0 {
		if redeemable, ok := b.wallet.RedeemableVouchers(price); ok {
			portion := randomRat(b.rng)
			redeem := redeemable.Scale(portion)
			if err := b.wallet.Send(redeem); err != nil {
				return err
			}
			if err := b.engine.RedeemVoucher(ctx, b, redeem); err != nil {
				return err
			}
		}
	}
	if b.rng.Intn(2) == 0 || b.reachedSpendCap() {
		return nil
	}

	amount := new(big.Rat).Mul(randomRat(b.rng), b.engine.BuyCap())
	if amount.Sign() == 0 {
		return nil
	}
	buy := token.New(amount, b.engine.VADenom())
	b.spentUSD.Add(b.spentUSD, new(big.Rat).Mul(amount, price))
	b.bought = true
	return b.engine.Buy(ctx, b, buy)
}

func (b *Buyer) reachedSpendCap() bool {
	limit := new(big.Rat).Mul(b.engine.BuyCap(), big.NewRat(10, 1))
	return common.Gt(b.spentUSD, limit)
}

// Provider stakes stable tokens while the protocol accepts liquidity and
// unwinds a random portion of its shares from time to time.
type Provider struct {
	name   string
	wallet *Wallet
	engine *router.Router
	rng    *rand.Rand

	stakeBound  *big.Rat
	stakedUSD   *big.Rat
	redeemedUSD *big.Rat
}

// NewProvider constructs a provider with its own deterministic random
// stream. stakeBound caps a single stake.
func NewProvider(name string, engine *router.Router, stakeBound *big.Rat, seed int64) *Provider {
	return &Provider{
		name:        name,
		wallet:      NewWallet(name),
		engine:      engine,
		rng:         rand.New(rand.NewSource(seed)),
		stakeBound:  common.Rat(stakeBound),
		stakedUSD:   new(big.Rat),
		redeemedUSD: new(big.Rat),
	}
}

// Name returns the provider's display name.
func (p *Provider) Name() string { return p.name }

// Kind tags the participant as a liquidity provider.
func (p *Provider) Kind() string { return "provider" }

// Wallet exposes the provider's holdings.
func (p *Provider) Wallet() *Wallet { return p.wallet }

// StakedUSD returns the cumulative stable amount staked.
func (p *Provider) StakedUSD() *big.Rat { return common.Rat(p.stakedUSD) }

// RedeemedUSD returns the cumulative stable amount redeemed back.
func (p *Provider) RedeemedUSD() *big.Rat { return common.Rat(p.redeemedUSD) }

// Yield returns redeemed/staked - 1, the provider's realised return, or zero
// before any stake.
func (p *Provider) Yield() *big.Rat {
	if p.stakedUSD.Sign() == 0 {
		return new(big.Rat)
	}
	yield := new(big.Rat).Quo(p.redeemedUSD, p.stakedUSD)
	return yield.Sub(yield, common.One())
}

// Receives credits the wallet, tracking stable inflows.
func (p *Provider) Receives(tokens token.Token) {
	if tokens.Denom() == p.engine.SADenom() {
		p.redeemedUSD.Add(p.redeemedUSD, tokens.Amount())
	}
	p.wallet.Receives(tokens)
}

// Step runs one round of the provider policy: an even chance of unwinding a
// random portion of held shares, otherwise an even chance of staking a
// random amount while the protocol still accepts liquidity.
func (p *Provider) Step(ctx context.Context) error {
	shares := p.wallet.BalanceOf(supply.ShareDenom)
	if shares.Sign() > 0 && p.rng.Intn(2) == 0 {
		redeem := token.New(shares, supply.ShareDenom).Scale(randomRat(p.rng))
		if redeem.IsZero() {
			return nil
		}
		if err := p.wallet.Send(redeem); err != nil {
			return err
		}
		return p.engine.RedeemShares(ctx, p, redeem)
	}

	if p.rng.Intn(2) == 0 || !p.engine.AcceptingLiquidity() {
		return nil
	}
	amount := new(big.Rat).Mul(randomRat(p.rng), p.stakeBound)
	if amount.Sign() == 0 {
		return nil
	}
	p.stakedUSD.Add(p.stakedUSD, amount)
	return p.engine.Provide(ctx, p, token.New(amount, p.engine.SADenom()))
}

// randomRat draws a uniform rational from [0, 1).
func randomRat(rng *rand.Rand) *big.Rat {
	value := new(big.Rat).SetFloat64(rng.Float64())
	if value == nil {
		return new(big.Rat)
	}
	return value
}
