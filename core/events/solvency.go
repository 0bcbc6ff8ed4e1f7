package events

import "math/big"

const (
	// TypeEmergencyTriggered is emitted when the solvency controller enters
	// the warning state and fails over the volatile reserve.
	TypeEmergencyTriggered = "solvency.emergency_triggered"
	// TypeReserveRefilled is emitted when the stable reserve is proactively
	// topped up from the volatile reserve.
	TypeReserveRefilled = "solvency.reserve_refilled"
	// TypeWarningCleared is emitted when the warning state clears after the
	// cooldown elapses under sustained recovery.
	TypeWarningCleared = "solvency.warning_cleared"
)

// EmergencyTriggered records a full volatile reserve failover.
type EmergencyTriggered struct {
	TargetPrice    *big.Rat
	ActualPrice    *big.Rat
	Principal      *big.Rat
	VAValueUSD     *big.Rat
	StableBalance  *big.Rat
	FeeBalance     *big.Rat
	TriggeredCount uint64
}

func (EmergencyTriggered) EventType() string { return TypeEmergencyTriggered }

// ReserveRefilled records a proactive stable reserve top-up.
type ReserveRefilled struct {
	StableBalance   *big.Rat
	TolerantLevel   *big.Rat
	ContentLevel    *big.Rat
	Refill          *big.Rat
	RebalancedCount uint64
}

func (ReserveRefilled) EventType() string { return TypeReserveRefilled }

// WarningCleared records the end of a warning episode.
type WarningCleared struct {
	ActualPrice *big.Rat
	TargetPrice *big.Rat
}

func (WarningCleared) EventType() string { return TypeWarningCleared }
