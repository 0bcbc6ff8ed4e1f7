package solvency

import (
	"errors"
	"fmt"
	"math/big"

	"stratapool/core/events"
	"stratapool/native/common"
	"stratapool/native/oracle"
	"stratapool/native/pool"
	"stratapool/native/token"
)

// ErrPlanMismatch indicates the tiered withdrawal plan failed its completeness
// post-condition. Reaching it at runtime indicates a bug.
var ErrPlanMismatch = errors.New("solvency: withdrawal plan does not sum to request")

// TrackerConfig carries the solvency knobs consumed by the balance tracker.
type TrackerConfig struct {
	// Tolerance scales principal into the refill trigger level.
	Tolerance *big.Rat
	// Content scales principal into the refill target level.
	Content *big.Rat
	// LiquidationSpread is the discount applied when liquidating the
	// volatile reserve; it also derives the emergency threshold
	// 1/(1-spread), the exact multiplier at which a discounted liquidation
	// still restores full target value.
	LiquidationSpread *big.Rat
	// Floors partitions [0, principal] into equal withdrawal bands. The
	// lowest band is the danger band and is never drained directly.
	Floors int
	// Cooldown is the number of rebalance calls the warning state persists
	// after a trigger before sustained recovery may clear it.
	Cooldown int
}

// BalanceTracker is the stateful solvency controller. It owns no balances
// itself; it reads the three reserves and the oracle, and mutates only its
// own warning state inside Rebalance.
type BalanceTracker struct {
	vaPool  *pool.VolatilePool
	saPool  *pool.StablePool
	feePool *pool.FeePool
	source  oracle.Source
	cfg     TrackerConfig

	warning   bool
	countdown int

	triggeredCount  uint64
	rebalancedCount uint64

	emitter events.Emitter
}

// NewBalanceTracker constructs a tracker over the three reserves.
func NewBalanceTracker(va *pool.VolatilePool, sa *pool.StablePool, fee *pool.FeePool, source oracle.Source, cfg TrackerConfig) *BalanceTracker {
	return &BalanceTracker{
		vaPool:  va,
		saPool:  sa,
		feePool: fee,
		source:  source,
		cfg:     cfg,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter wires a telemetry subscriber. A nil emitter is ignored.
func (bt *BalanceTracker) SetEmitter(emitter events.Emitter) {
	if bt == nil || emitter == nil {
		return
	}
	bt.emitter = emitter
}

// Warning reports whether the protocol is in the cooldown-gated warning
// state. While warning, stable reserve withdrawals for buys are suspended.
func (bt *BalanceTracker) Warning() bool { return bt.warning }

// TriggeredCount returns how many times the emergency protocol has fired.
func (bt *BalanceTracker) TriggeredCount() uint64 { return bt.triggeredCount }

// RebalancedCount returns how many proactive refills have run.
func (bt *BalanceTracker) RebalancedCount() uint64 { return bt.rebalancedCount }

// VAPoolValueUSD returns the USD value of the volatile reserve at the current
// oracle price.
func (bt *BalanceTracker) VAPoolValueUSD() (*big.Rat, error) {
	price, err := bt.source.Price(bt.vaPool.Denom())
	if err != nil {
		return nil, err
	}
	return new(big.Rat).Mul(bt.vaPool.Balance(), price), nil
}

// TargetVAPoolValueUSD returns the minimum USD value the volatile reserve
// must hold for the protocol's total assets to cover principal.
func (bt *BalanceTracker) TargetVAPoolValueUSD() *big.Rat {
	required := bt.saPool.Principal()
	required.Sub(required, bt.saPool.Balance())
	required.Sub(required, bt.feePool.Balance())
	return common.ClampNonNegative(required)
}

// WithdrawalPlan partitions a requested stable withdrawal across the
// reserve's depletion bands, highest band first. The plan always contains one
// step per band (zero steps included) so that downstream voucher premium
// pairing stays aligned. The returned remainder is the amount that must be
// serviced by liquidating the volatile reserve; the danger band below
// principal/floors is never drained directly.
func (bt *BalanceTracker) WithdrawalPlan(requested token.Token) ([]token.Token, token.Token, error) {
	denom := bt.saPool.Denom()
	principal := bt.saPool.Principal()
	balance := bt.saPool.Balance()

	remaining := requested.Amount()
	ceiling := common.Rat(balance)
	steps := make([]token.Token, 0, bt.cfg.Floors)

	for i := bt.cfg.Floors - 1; i >= 1; i-- {
		if common.Leq(remaining, common.Zero()) {
			steps = append(steps, token.Zero(denom))
			continue
		}
		floor := new(big.Rat).Mul(principal, big.NewRat(int64(i), int64(bt.cfg.Floors)))
		if common.Leq(balance, floor) {
			steps = append(steps, token.Zero(denom))
			continue
		}
		ceiling = common.Min(ceiling, balance)

		band := new(big.Rat).Sub(ceiling, floor)
		take := common.Min(band, remaining)
		steps = append(steps, token.New(take, denom))

		remaining.Sub(remaining, take)
		ceiling = floor
	}

	total := new(big.Rat).Set(remaining)
	for _, step := range steps {
		total.Add(total, step.Amount())
	}
	if !common.IsClose(total, requested.Amount()) {
		return nil, token.Token{}, fmt.Errorf("%w: planned %s, requested %s",
			ErrPlanMismatch, common.FormatRat(total), common.FormatRat(requested.Amount()))
	}
	return steps, token.New(remaining, denom), nil
}

// Rebalance runs the solvency state machine. It is invoked once at the end of
// every router transaction.
//
// Case 1 liquidates the entire volatile reserve when the oracle price falls
// to the emergency threshold (full failover). Case 2 proactively tops the
// stable reserve back up to the content level when it runs dry. Case 3 clears
// the warning state only after the cooldown has elapsed with the recovery
// condition holding.
func (bt *BalanceTracker) Rebalance() error {
	actualPrice, err := bt.source.Price(bt.vaPool.Denom())
	if err != nil {
		return err
	}

	vaBalance := bt.vaPool.Balance()
	targetPrice := new(big.Rat)
	if vaBalance.Sign() != 0 {
		targetPrice.Quo(bt.TargetVAPoolValueUSD(), vaBalance)
	}

	principal := bt.saPool.Principal()
	tolerantLevel := new(big.Rat).Mul(principal, bt.cfg.Tolerance)
	contentLevel := new(big.Rat).Mul(principal, bt.cfg.Content)
	triggerLevel := new(big.Rat).Mul(targetPrice, bt.threshold())

	switch {
	case !bt.warning && common.Leq(actualPrice, triggerLevel):
		bt.warning = true
		bt.countdown = bt.cfg.Cooldown
		bt.triggeredCount++
		vaValue, err := bt.VAPoolValueUSD()
		if err != nil {
			return err
		}
		bt.emitter.Emit(events.EmergencyTriggered{
			TargetPrice:    targetPrice,
			ActualPrice:    actualPrice,
			Principal:      principal,
			VAValueUSD:     vaValue,
			StableBalance:  bt.saPool.Balance(),
			FeeBalance:     bt.feePool.Balance(),
			TriggeredCount: bt.triggeredCount,
		})
		return bt.triggerEmergency()

	case common.Leq(bt.saPool.Balance(), tolerantLevel):
		bt.rebalancedCount++
		return bt.refill(tolerantLevel, contentLevel)

	case bt.warning && common.Gt(actualPrice, triggerLevel):
		bt.warning = bt.countdown > 0
		if !bt.warning {
			bt.emitter.Emit(events.WarningCleared{ActualPrice: actualPrice, TargetPrice: targetPrice})
		}
	}

	if bt.countdown > 0 {
		bt.countdown--
	}
	return nil
}

// threshold derives the emergency multiplier 1/(1-liquidationSpread).
func (bt *BalanceTracker) threshold() *big.Rat {
	denominator := new(big.Rat).Sub(common.One(), bt.cfg.LiquidationSpread)
	return new(big.Rat).Quo(common.One(), denominator)
}

// triggerEmergency liquidates the entire volatile reserve and deposits the
// discounted proceeds into the stable reserve as injected liquidity.
func (bt *BalanceTracker) triggerEmergency() error {
	liquidated := token.New(bt.vaPool.Balance(), bt.vaPool.Denom())
	if err := bt.vaPool.Liquidate(liquidated); err != nil {
		return err
	}
	// Assets are sold at a spread discount as the liquidation incentive.
	retained := liquidated.Scale(new(big.Rat).Sub(common.One(), bt.cfg.LiquidationSpread))
	deposit, err := bt.source.Exchange(retained, bt.saPool.Denom())
	if err != nil {
		return err
	}
	return bt.saPool.Deposit(deposit, true)
}

// refill tops the stable reserve up toward the content level, liquidating
// only the volatile amount needed to produce the refill.
func (bt *BalanceTracker) refill(tolerantLevel, contentLevel *big.Rat) error {
	balance := bt.saPool.Balance()
	available, err := bt.source.Exchange(token.New(bt.vaPool.Balance(), bt.vaPool.Denom()), bt.saPool.Denom())
	if err != nil {
		return err
	}
	missing := new(big.Rat).Sub(contentLevel, balance)
	refill := common.ClampNonNegative(common.Min(available.Amount(), missing))
	bt.emitter.Emit(events.ReserveRefilled{
		StableBalance:   balance,
		TolerantLevel:   tolerantLevel,
		ContentLevel:    contentLevel,
		Refill:          refill,
		RebalancedCount: bt.rebalancedCount,
	})
	if refill.Sign() <= 0 {
		return nil
	}
	refillTokens := token.New(refill, bt.saPool.Denom())
	liquidate, err := bt.source.Exchange(refillTokens, bt.vaPool.Denom())
	if err != nil {
		return err
	}
	if err := bt.vaPool.Liquidate(liquidate); err != nil {
		return err
	}
	return bt.saPool.Deposit(refillTokens, true)
}
