package router

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"stratapool/core/events"
	"stratapool/native/common"
	"stratapool/native/oracle"
	"stratapool/native/pool"
	"stratapool/native/solvency"
	"stratapool/native/supply"
	"stratapool/native/token"
	"stratapool/observability"
)

// KindProtocol tags the protocol's own treasury participant. Deposits made by
// it seed initial liquidity instead of raising the owed principal.
const KindProtocol = "protocol"

// Participant is an external agent taking part in router transactions. The
// router credits tokens through Receives and never calls into agent decision
// logic.
type Participant interface {
	Receives(tokens token.Token)
	Kind() string
}

// Config carries the protocol parameters consumed by the router and its
// trackers. Values are read at call time; the router never mutates them.
type Config struct {
	VADenom string
	SADenom string

	FeeRate           *big.Rat
	OpPremium         *big.Rat
	SafetyPremium     *big.Rat
	RedeemCap         *big.Rat
	LiquidationSpread *big.Rat
	Tolerance         *big.Rat
	Content           *big.Rat
	BuyCap            *big.Rat
	StakeCap          *big.Rat

	Floors   int
	Cooldown int
}

// Router sequences the four user-facing transactions over one set of
// reserves, token ledgers and trackers. One router instance must not be
// driven concurrently by more than one caller; the mutex wraps each
// transaction as a unit so the accounting invariants hold even if callers
// get this wrong.
type Router struct {
	mu  sync.Mutex
	cfg Config

	source oracle.Source

	va  *pool.VolatilePool
	sa  *pool.StablePool
	fee *pool.FeePool

	shares   *supply.ShareContract
	vouchers *supply.VoucherContract

	balance   *solvency.BalanceTracker
	inflation *solvency.InflationTracker

	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.EngineMetrics
	tracer  trace.Tracer
	clock   func() time.Time

	seenTriggered  uint64
	seenRebalanced uint64
}

// New constructs a router together with its pools, ledgers and trackers.
// These share the router's lifetime and are never shared across instances.
func New(cfg Config, source oracle.Source) (*Router, error) {
	if strings.TrimSpace(cfg.VADenom) == "" || strings.TrimSpace(cfg.SADenom) == "" {
		return nil, fmt.Errorf("router: both reserve denominations must be configured")
	}
	if cfg.VADenom == cfg.SADenom {
		return nil, fmt.Errorf("router: reserve denominations must differ")
	}
	if cfg.Floors <= 0 {
		return nil, fmt.Errorf("router: floors must be positive")
	}
	if source == nil {
		return nil, fmt.Errorf("router: price source is required")
	}

	va := pool.NewVolatilePool(cfg.VADenom)
	sa := pool.NewStablePool(cfg.SADenom)
	fee := pool.NewFeePool(cfg.SADenom)

	balance := solvency.NewBalanceTracker(va, sa, fee, source, solvency.TrackerConfig{
		Tolerance:         cfg.Tolerance,
		Content:           cfg.Content,
		LiquidationSpread: cfg.LiquidationSpread,
		Floors:            cfg.Floors,
		Cooldown:          cfg.Cooldown,
	})
	vouchers := supply.NewVoucherContract()
	inflation := solvency.NewInflationTracker(vouchers, balance, source, cfg.VADenom, solvency.InflationConfig{
		RedeemCap: cfg.RedeemCap,
	})

	r := &Router{
		cfg:       cfg,
		source:    source,
		va:        va,
		sa:        sa,
		fee:       fee,
		shares:    supply.NewShareContract(),
		vouchers:  vouchers,
		balance:   balance,
		inflation: inflation,
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		metrics:   observability.Metrics(),
		tracer:    otel.Tracer("stratapool/router"),
		clock:     time.Now,
	}
	return r, nil
}

// SetEmitter wires a structured event observer through the router and every
// component it owns. Pass nil to silence events.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitter = emitter
	r.va.SetEmitter(emitter)
	r.sa.SetEmitter(emitter)
	r.fee.SetEmitter(emitter)
	r.shares.SetEmitter(emitter)
	r.vouchers.SetEmitter(emitter)
	r.balance.SetEmitter(emitter)
}

// SetLogger replaces the router's structured logger.
func (r *Router) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// VADenom returns the volatile reserve denomination.
func (r *Router) VADenom() string { return r.cfg.VADenom }

// SADenom returns the stable reserve denomination.
func (r *Router) SADenom() string { return r.cfg.SADenom }

// VolatilePool exposes the volatile reserve ledger.
func (r *Router) VolatilePool() *pool.VolatilePool { return r.va }

// StablePool exposes the stable reserve ledger.
func (r *Router) StablePool() *pool.StablePool { return r.sa }

// FeePool exposes the fee reserve ledger.
func (r *Router) FeePool() *pool.FeePool { return r.fee }

// Shares exposes the LP share ledger.
func (r *Router) Shares() *supply.ShareContract { return r.shares }

// Vouchers exposes the voucher ledger.
func (r *Router) Vouchers() *supply.VoucherContract { return r.vouchers }

// Warning reports whether the solvency warning state is active.
func (r *Router) Warning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance.Warning()
}

// TriggeredCount reports how many times the emergency protocol has fired.
func (r *Router) TriggeredCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance.TriggeredCount()
}

// RebalancedCount reports how many proactive refills have run.
func (r *Router) RebalancedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance.RebalancedCount()
}

// AcceptingLiquidity reports whether new stakes are admitted. Staking is
// capped at twice the configured stake cap of owed principal.
func (r *Router) AcceptingLiquidity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit := new(big.Rat).Mul(common.Rat(r.cfg.StakeCap), big.NewRat(2, 1))
	return common.Leq(r.sa.Principal(), limit)
}

// BuyCap returns the per-transaction purchase ceiling in volatile units.
func (r *Router) BuyCap() *big.Rat { return common.Rat(r.cfg.BuyCap) }

func (r *Router) finish(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ObserveOperation(operation, outcome, r.clock().Sub(started))
}

// publishState refreshes the balance and warning gauges after a transaction.
func (r *Router) publishState() {
	sa, _ := r.sa.Balance().Float64()
	va, _ := r.va.Balance().Float64()
	fee, _ := r.fee.Balance().Float64()
	r.metrics.SetPoolBalance("stable", sa)
	r.metrics.SetPoolBalance("volatile", va)
	r.metrics.SetPoolBalance("fee", fee)
	r.metrics.SetWarning(r.balance.Warning())

	for triggered := r.balance.TriggeredCount(); r.seenTriggered < triggered; r.seenTriggered++ {
		r.metrics.RecordEmergencyTrigger()
	}
	for rebalanced := r.balance.RebalancedCount(); r.seenRebalanced < rebalanced; r.seenRebalanced++ {
		r.metrics.RecordRefill()
	}
}
