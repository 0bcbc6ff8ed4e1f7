package supply

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"stratapool/core/events"
	"stratapool/native/common"
	"stratapool/native/token"
)

var (
	// ErrUnknownDenom is returned when burning a denomination that was never
	// minted. Reaching it at runtime indicates a bug upstream.
	ErrUnknownDenom = errors.New("supply: unknown denomination")
	// ErrNegativeSupply is returned when a burn would drive circulating
	// supply below zero. The supply is left unchanged.
	ErrNegativeSupply = errors.New("supply: negative circulating supply")
	// ErrNoCirculatingShares is returned when a pro-rata portion is requested
	// before any shares exist.
	ErrNoCirculatingShares = errors.New("supply: no circulating shares")
)

// Recipient is the capability a contract needs to credit minted tokens.
type Recipient interface {
	Receives(token.Token)
}

// Contract tracks circulating supply per denomination for a family of
// fungible tokens. Supply never goes negative.
type Contract struct {
	issued  map[string]*big.Rat
	denoms  map[string]struct{}
	emitter events.Emitter
}

// NewContract constructs an empty fungible-supply ledger.
func NewContract() *Contract {
	return &Contract{
		issued:  make(map[string]*big.Rat),
		denoms:  make(map[string]struct{}),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter wires a telemetry subscriber. A nil emitter is ignored.
func (c *Contract) SetEmitter(emitter events.Emitter) {
	if c == nil || emitter == nil {
		return
	}
	c.emitter = emitter
}

// Issued returns the circulating supply for a denomination, zero when the
// denomination has never been minted.
func (c *Contract) Issued(denom string) *big.Rat {
	return common.Rat(c.issued[denom])
}

// Denoms returns every denomination ever minted, sorted for determinism.
func (c *Contract) Denoms() []string {
	out := make([]string, 0, len(c.denoms))
	for denom := range c.denoms {
		out = append(out, denom)
	}
	sort.Strings(out)
	return out
}

// MintTo increases circulating supply, registers the denomination and credits
// the recipient. Minting is always permitted.
func (c *Contract) MintTo(recipient Recipient, tokens token.Token) {
	denom := tokens.Denom()
	cur, ok := c.issued[denom]
	if !ok {
		cur = new(big.Rat)
		c.issued[denom] = cur
	}
	cur.Add(cur, tokens.Amount())
	c.denoms[denom] = struct{}{}
	recipient.Receives(tokens)
	c.emitter.Emit(events.TokensMinted{Denom: denom, Amount: tokens.Amount()})
}

// Burn decreases circulating supply. The denomination must be known and the
// resulting supply must remain non-negative; otherwise supply is unchanged.
func (c *Contract) Burn(tokens token.Token) error {
	denom := tokens.Denom()
	if _, ok := c.denoms[denom]; !ok {
		return fmt.Errorf("%w: %s was never issued", ErrUnknownDenom, denom)
	}
	issued := c.Issued(denom)
	remaining := new(big.Rat).Sub(issued, tokens.Amount())
	if remaining.Sign() < 0 {
		return fmt.Errorf("%w: burn %s %s, issued %s %s", ErrNegativeSupply,
			common.FormatRat(tokens.Amount()), denom, common.FormatRat(issued), denom)
	}
	c.issued[denom] = remaining
	c.emitter.Emit(events.TokensBurned{Denom: denom, Amount: tokens.Amount()})
	return nil
}

// ShareDenom is the single denomination issued by the share contract.
const ShareDenom = "LP"

// ShareContract is the pro-rata LP share ledger.
type ShareContract struct {
	Contract
}

// NewShareContract constructs a share ledger with the LP denomination
// pre-registered.
func NewShareContract() *ShareContract {
	sc := &ShareContract{Contract: *NewContract()}
	sc.denoms[ShareDenom] = struct{}{}
	return sc
}

// Portion returns the fraction of total circulating shares the supplied
// tokens represent. Shares can only be redeemed once minted, so a zero supply
// is a precondition violation.
func (sc *ShareContract) Portion(tokens token.Token) (*big.Rat, error) {
	total := sc.Issued(ShareDenom)
	if total.Sign() == 0 {
		return nil, ErrNoCirculatingShares
	}
	return new(big.Rat).Quo(tokens.Amount(), total), nil
}
