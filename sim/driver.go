package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"

	"stratapool/native/oracle"
	"stratapool/native/router"
	"stratapool/native/token"
)

// RoundStats is one row of the per-round data collection.
type RoundStats struct {
	Round         int
	StableBalance *big.Rat
	VAValueUSD    *big.Rat
	FeeBalance    *big.Rat
	TotalUSD      *big.Rat
	Triggered     uint64
	Rebalanced    uint64
	Failures      int
}

// Driver owns one engine instance and steps a population of agents through a
// scenario, collecting balance statistics each round. Failed agent
// transactions are recorded, not fatal.
type Driver struct {
	engine    *router.Router
	source    *oracle.Manual
	scenario  Scenario
	rng       *rand.Rand
	buyers    []*Buyer
	providers []*Provider
	agents    []Agent
	logger    *slog.Logger
	stats     []RoundStats
}

// NewDriver wires a scenario to an engine. Each agent draws from its own
// seeded random stream so runs reproduce exactly.
func NewDriver(engine *router.Router, source *oracle.Manual, scenario Scenario, logger *slog.Logger) (*Driver, error) {
	if engine == nil || source == nil {
		return nil, fmt.Errorf("sim: engine and price source are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		engine:   engine,
		source:   source,
		scenario: scenario,
		rng:      rand.New(rand.NewSource(scenario.Seed)),
		logger:   logger,
	}
	seed := scenario.Seed
	for i := 0; i < scenario.Buyers; i++ {
		seed++
		buyer := NewBuyer(fmt.Sprintf("buyer-%d", i), engine, source, seed)
		d.buyers = append(d.buyers, buyer)
		d.agents = append(d.agents, buyer)
	}
	for i := 0; i < scenario.Providers; i++ {
		seed++
		provider := NewProvider(fmt.Sprintf("provider-%d", i), engine, scenario.StakeBoundAmount(), seed)
		d.providers = append(d.providers, provider)
		d.agents = append(d.agents, provider)
	}
	return d, nil
}

// Buyers returns the simulated buyers for reporting.
func (d *Driver) Buyers() []*Buyer { return d.buyers }

// Providers returns the simulated providers for reporting.
func (d *Driver) Providers() []*Provider { return d.providers }

// Stats returns the collected per-round rows.
func (d *Driver) Stats() []RoundStats { return d.stats }

// Run executes the scenario: bootstrap deposit, then one activation round
// per scheduled step with agents visited in random order.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.source.SetPrice(d.engine.VADenom(), d.scenario.InitialPriceAmount()); err != nil {
		return err
	}
	bootstrap := token.New(d.scenario.BootstrapAmount(), d.engine.SADenom())
	if err := d.engine.Provide(ctx, Protocol{}, bootstrap); err != nil {
		return fmt.Errorf("sim: bootstrap deposit: %w", err)
	}

	for round := 1; round <= d.scenario.Rounds; round++ {
		if price, ok := d.scenario.PriceAt(round); ok {
			if err := d.source.SetPrice(d.engine.VADenom(), price); err != nil {
				return err
			}
		}

		failures := 0
		for _, idx := range d.rng.Perm(len(d.agents)) {
			agent := d.agents[idx]
			if err := agent.Step(ctx); err != nil {
				failures++
				d.logger.Warn("agent step failed",
					"round", round,
					"agent", agent.Name(),
					"error", err,
				)
			}
		}
		if err := d.collect(round, failures); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) collect(round, failures int) error {
	price, err := d.source.Price(d.engine.VADenom())
	if err != nil {
		return err
	}
	stable := d.engine.StablePool().Balance()
	fee := d.engine.FeePool().Balance()
	vaValue := new(big.Rat).Mul(d.engine.VolatilePool().Balance(), price)
	total := new(big.Rat).Add(stable, fee)
	total.Add(total, vaValue)

	d.stats = append(d.stats, RoundStats{
		Round:         round,
		StableBalance: stable,
		VAValueUSD:    vaValue,
		FeeBalance:    fee,
		TotalUSD:      total,
		Triggered:     d.engine.TriggeredCount(),
		Rebalanced:    d.engine.RebalancedCount(),
		Failures:      failures,
	})
	return nil
}
