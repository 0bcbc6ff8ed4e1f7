package events

import "math/big"

const (
	// TypePoolDeposited is emitted on every successful reserve deposit.
	TypePoolDeposited = "pool.deposited"
	// TypePoolWithdrawn is emitted on every successful reserve withdrawal.
	TypePoolWithdrawn = "pool.withdrawn"
	// TypePoolRedeemed is emitted when a withdrawal is credited to a recipient.
	TypePoolRedeemed = "pool.redeemed"
	// TypePoolInitialized is emitted when the stable reserve receives its
	// protocol-injected bootstrap liquidity.
	TypePoolInitialized = "pool.initialized"
	// TypePoolLiquidated is emitted after a successful volatile reserve
	// liquidation.
	TypePoolLiquidated = "pool.liquidated"
)

// PoolDeposited records a deposit into a reserve ledger.
type PoolDeposited struct {
	Pool             string
	Denom            string
	Amount           *big.Rat
	ProtocolInjected bool
}

func (PoolDeposited) EventType() string { return TypePoolDeposited }

// PoolWithdrawn records a withdrawal from a reserve ledger.
type PoolWithdrawn struct {
	Pool   string
	Denom  string
	Amount *big.Rat
}

func (PoolWithdrawn) EventType() string { return TypePoolWithdrawn }

// PoolRedeemed records a withdrawal credited directly to a participant.
type PoolRedeemed struct {
	Pool   string
	Denom  string
	Amount *big.Rat
}

func (PoolRedeemed) EventType() string { return TypePoolRedeemed }

// PoolInitialized records the one-time stable reserve bootstrap.
type PoolInitialized struct {
	Pool             string
	Denom            string
	InitialLiquidity *big.Rat
}

func (PoolInitialized) EventType() string { return TypePoolInitialized }

// PoolLiquidated records a volatile reserve liquidation.
type PoolLiquidated struct {
	Pool   string
	Denom  string
	Amount *big.Rat
}

func (PoolLiquidated) EventType() string { return TypePoolLiquidated }
