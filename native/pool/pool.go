package pool

import (
	"fmt"
	"math/big"

	"stratapool/core/events"
	"stratapool/native/common"
	"stratapool/native/token"
)

// Recipient is the capability a pool needs to credit a participant during
// redemption. Agent decision logic lives entirely outside the engine.
type Recipient interface {
	Receives(token.Token)
}

// Pool is a reserve ledger holding a balance of a single denomination. The
// balance only changes through Deposit, Withdraw, RedeemTo and Liquidate and
// never goes negative.
//
// Shortfall policy is resolved per variant: the base (stable) pool returns a
// recoverable *DeficitError, while fail-fast pools treat any shortfall as an
// invariant violation and return a terminal error.
type Pool struct {
	kind     string
	denom    string
	balance  *big.Rat
	failFast bool
	emitter  events.Emitter
}

func newPool(kind, denom string, failFast bool) Pool {
	return Pool{
		kind:     kind,
		denom:    denom,
		balance:  new(big.Rat),
		failFast: failFast,
		emitter:  events.NoopEmitter{},
	}
}

// SetEmitter wires a telemetry subscriber. A nil emitter is ignored.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if p == nil || emitter == nil {
		return
	}
	p.emitter = emitter
}

// Kind returns the pool's descriptive tag ("volatile", "stable", "fee").
func (p *Pool) Kind() string { return p.kind }

// Denom returns the pool denomination, fixed at construction.
func (p *Pool) Denom() string { return p.denom }

// Balance returns a copy of the current balance.
func (p *Pool) Balance() *big.Rat { return common.Rat(p.balance) }

// Deposit credits the pool with tokens of its own denomination.
func (p *Pool) Deposit(tokens token.Token) error {
	if err := p.credit(tokens); err != nil {
		return err
	}
	p.emitter.Emit(events.PoolDeposited{Pool: p.kind, Denom: p.denom, Amount: tokens.Amount()})
	return nil
}

// credit adds to the balance without emitting; variant deposits emit their
// own event with variant-specific fields.
func (p *Pool) credit(tokens token.Token) error {
	if err := p.enforceDenom(tokens.Denom()); err != nil {
		return err
	}
	p.balance.Add(p.balance, tokens.Amount())
	return nil
}

// Withdraw debits the pool. On shortfall nothing is debited: fail-fast pools
// return a terminal error, the stable pool returns a *DeficitError carrying
// the recoverable difference.
func (p *Pool) Withdraw(tokens token.Token) error {
	if err := p.enforceDenom(tokens.Denom()); err != nil {
		return err
	}
	amount := tokens.Amount()
	if common.Lt(p.balance, amount) {
		if p.failFast {
			return fmt.Errorf("%w: %s reserve has %s, need %s", ErrInsufficientBalance,
				p.kind, common.FormatRat(p.balance), common.FormatRat(amount))
		}
		return &DeficitError{
			Denom:     p.denom,
			Balance:   p.Balance(),
			Requested: amount,
			Deficit:   new(big.Rat).Sub(amount, p.balance),
		}
	}
	p.balance.Sub(p.balance, amount)
	p.emitter.Emit(events.PoolWithdrawn{Pool: p.kind, Denom: p.denom, Amount: amount})
	return nil
}

// RedeemTo withdraws tokens and credits the recipient. Shortfall behaviour
// follows the pool's withdraw policy.
func (p *Pool) RedeemTo(recipient Recipient, tokens token.Token) error {
	if err := p.Withdraw(tokens); err != nil {
		return err
	}
	recipient.Receives(tokens)
	p.emitter.Emit(events.PoolRedeemed{Pool: p.kind, Denom: p.denom, Amount: tokens.Amount()})
	return nil
}

func (p *Pool) enforceDenom(denom string) error {
	if denom != p.denom {
		return fmt.Errorf("%w: %s pool received %s", ErrDenomMismatch, p.denom, denom)
	}
	return nil
}

// StablePool is the stable reserve. On top of the base ledger it tracks the
// principal owed to providers and the one-time protocol bootstrap liquidity,
// and it rejects every operation until that bootstrap deposit arrives.
type StablePool struct {
	Pool
	principal        *big.Rat
	initialLiquidity *big.Rat
	initialised      bool
}

// NewStablePool constructs an uninitialised stable reserve.
func NewStablePool(denom string) *StablePool {
	return &StablePool{
		Pool:             newPool("stable", denom, false),
		principal:        new(big.Rat),
		initialLiquidity: new(big.Rat),
	}
}

// Principal returns the cumulative non-protocol deposits minus redemptions.
func (sp *StablePool) Principal() *big.Rat { return common.Rat(sp.principal) }

// InitialLiquidity returns the bootstrap amount, zero until initialised.
func (sp *StablePool) InitialLiquidity() *big.Rat { return common.Rat(sp.initialLiquidity) }

// Initialised reports whether the protocol bootstrap deposit has occurred.
func (sp *StablePool) Initialised() bool { return sp.initialised }

// Deposit credits the stable reserve. Before initialisation only
// protocol-injected deposits are accepted; the first such deposit fixes the
// initial liquidity. Protocol-injected deposits never raise principal.
func (sp *StablePool) Deposit(tokens token.Token, protocolInjected bool) error {
	if !sp.initialised && !protocolInjected {
		return fmt.Errorf("%w: %s reserve", ErrNotInitialized, sp.Denom())
	}
	if err := sp.Pool.credit(tokens); err != nil {
		return err
	}
	sp.emitter.Emit(events.PoolDeposited{
		Pool:             sp.Kind(),
		Denom:            sp.Denom(),
		Amount:           tokens.Amount(),
		ProtocolInjected: protocolInjected,
	})
	if !sp.initialised && protocolInjected {
		sp.initialLiquidity = tokens.Amount()
		sp.initialised = true
		sp.emitter.Emit(events.PoolInitialized{Pool: sp.Kind(), Denom: sp.Denom(), InitialLiquidity: tokens.Amount()})
	} else if !protocolInjected {
		sp.principal.Add(sp.principal, tokens.Amount())
	}
	return nil
}

// Withdraw debits the stable reserve, returning a recoverable *DeficitError
// on shortfall.
func (sp *StablePool) Withdraw(tokens token.Token) error {
	if !sp.initialised {
		return fmt.Errorf("%w: %s reserve", ErrNotInitialized, sp.Denom())
	}
	return sp.Pool.Withdraw(tokens)
}

// RedeemTo redeems to a recipient and lowers principal by the redeemed
// amount. Once merged into the balance, protocol-injected and provider funds
// are not tracked per unit, so every redemption reduces principal.
func (sp *StablePool) RedeemTo(recipient Recipient, tokens token.Token) error {
	if !sp.initialised {
		return fmt.Errorf("%w: %s reserve", ErrNotInitialized, sp.Denom())
	}
	if err := sp.Pool.RedeemTo(recipient, tokens); err != nil {
		return err
	}
	sp.principal.Sub(sp.principal, tokens.Amount())
	return nil
}

// LPTokenAmount converts a deposit into LP shares pro rata against the
// bootstrap liquidity. The unit-share path is only reachable for the deposit
// that sets the initial liquidity itself.
func (sp *StablePool) LPTokenAmount(tokens token.Token) *big.Rat {
	if sp.initialLiquidity.Sign() == 0 {
		return common.One()
	}
	return new(big.Rat).Quo(tokens.Amount(), sp.initialLiquidity)
}

// VolatilePool is the volatile reserve. Withdrawals fail fast: the volatile
// reserve is never expected to be short, so a shortfall indicates a deeper
// invariant violation.
type VolatilePool struct {
	Pool
}

// NewVolatilePool constructs an empty volatile reserve.
func NewVolatilePool(denom string) *VolatilePool {
	return &VolatilePool{Pool: newPool("volatile", denom, true)}
}

// Liquidate debits the reserve on the solvency danger paths. It requires the
// full amount to be available and fails with ErrCannotLiquidateEnough
// otherwise.
func (vp *VolatilePool) Liquidate(tokens token.Token) error {
	if err := vp.enforceDenom(tokens.Denom()); err != nil {
		return err
	}
	amount := tokens.Amount()
	if common.Lt(vp.balance, amount) {
		return fmt.Errorf("%w: need %s %s, have %s %s", ErrCannotLiquidateEnough,
			common.FormatRat(amount), vp.Denom(), common.FormatRat(vp.balance), vp.Denom())
	}
	if err := vp.Withdraw(tokens); err != nil {
		return err
	}
	vp.emitter.Emit(events.PoolLiquidated{Pool: vp.Kind(), Denom: vp.Denom(), Amount: amount})
	return nil
}

// FeePool is the fee reserve. Like the volatile reserve it fails fast on
// shortfall.
type FeePool struct {
	Pool
}

// NewFeePool constructs an empty fee reserve.
func NewFeePool(denom string) *FeePool {
	return &FeePool{Pool: newPool("fee", denom, true)}
}
