package events

import "math/big"

const (
	// TypeTokensMinted is emitted when a fungible-supply ledger mints tokens.
	TypeTokensMinted = "supply.minted"
	// TypeTokensBurned is emitted when a fungible-supply ledger burns tokens.
	TypeTokensBurned = "supply.burned"
)

// TokensMinted records an increase in circulating supply.
type TokensMinted struct {
	Denom  string
	Amount *big.Rat
}

func (TokensMinted) EventType() string { return TypeTokensMinted }

// TokensBurned records a decrease in circulating supply.
type TokensBurned struct {
	Denom  string
	Amount *big.Rat
}

func (TokensBurned) EventType() string { return TypeTokensBurned }
