package pool

import (
	"errors"
	"fmt"
	"math/big"

	"stratapool/native/common"
)

var (
	// ErrDenomMismatch is returned when a pool receives tokens of a foreign
	// denomination.
	ErrDenomMismatch = errors.New("pool: denomination mismatch")
	// ErrNotInitialized gates every stable pool operation until the protocol
	// performs the first injected deposit.
	ErrNotInitialized = errors.New("pool: stable pool not initialised")
	// ErrInsufficientBalance marks a withdrawal shortfall. On the volatile and
	// fee pools it is fatal; on the stable pool it surfaces as a *DeficitError
	// carrying the recoverable deficit.
	ErrInsufficientBalance = errors.New("pool: insufficient balance")
	// ErrCannotLiquidateEnough signals protocol insolvency: the volatile
	// reserve cannot cover a required liquidation. Never retried.
	ErrCannotLiquidateEnough = errors.New("pool: cannot liquidate enough")
)

// DeficitError is the recoverable shortfall signal produced by the stable
// pool. It carries the exact deficit so the router can liquidate the volatile
// reserve, refill, and retry.
type DeficitError struct {
	Denom     string
	Balance   *big.Rat
	Requested *big.Rat
	Deficit   *big.Rat
}

func (e *DeficitError) Error() string {
	return fmt.Sprintf("pool: insufficient balance: have %s %s, need %s %s",
		common.FormatRat(e.Balance), e.Denom, common.FormatRat(e.Requested), e.Denom)
}

// Unwrap lets callers match the shortfall class with errors.Is.
func (e *DeficitError) Unwrap() error { return ErrInsufficientBalance }
