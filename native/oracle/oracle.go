package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"stratapool/native/token"
)

// ErrNoPrice is returned when no quote exists for the requested denomination.
var ErrNoPrice = errors.New("oracle: no price for denomination")

// Source is the read-only price dependency consumed by the engine. The engine
// never mutates oracle state; price evolution is an external concern.
type Source interface {
	// Price returns the USD price of one unit of the denomination.
	Price(denom string) (*big.Rat, error)
	// Exchange converts tokens into the target denomination at current
	// prices. Pure conversion, no side effects.
	Exchange(tokens token.Token, targetDenom string) (token.Token, error)
}

// Manual is an in-memory price table with operator-settable quotes, used by
// the simulation driver and tests.
type Manual struct {
	mu     sync.RWMutex
	prices map[string]*big.Rat
}

// NewManual constructs a manual source seeded with the supplied prices.
func NewManual(prices map[string]*big.Rat) *Manual {
	m := &Manual{prices: make(map[string]*big.Rat, len(prices))}
	for denom, price := range prices {
		if price == nil {
			continue
		}
		m.prices[denom] = new(big.Rat).Set(price)
	}
	return m
}

// SetPrice stores the supplied quote, replacing any previous one.
func (m *Manual) SetPrice(denom string, price *big.Rat) error {
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("oracle: price for %s must be positive", denom)
	}
	trimmed := strings.TrimSpace(denom)
	if trimmed == "" {
		return fmt.Errorf("oracle: denomination required")
	}
	m.mu.Lock()
	m.prices[trimmed] = new(big.Rat).Set(price)
	m.mu.Unlock()
	return nil
}

// SetPriceDecimal parses and stores a decimal quote string.
func (m *Manual) SetPriceDecimal(denom, price string) error {
	rat, ok := new(big.Rat).SetString(strings.TrimSpace(price))
	if !ok {
		return fmt.Errorf("oracle: invalid price %q for %s", price, denom)
	}
	return m.SetPrice(denom, rat)
}

// Price implements Source.
func (m *Manual) Price(denom string) (*big.Rat, error) {
	m.mu.RLock()
	price, ok := m.prices[denom]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, denom)
	}
	return new(big.Rat).Set(price), nil
}

// Exchange implements Source. The conversion uses the ratio of the two USD
// prices: amount * price(src) / price(target).
func (m *Manual) Exchange(tokens token.Token, targetDenom string) (token.Token, error) {
	if tokens.Denom() == targetDenom {
		return tokens, nil
	}
	srcPrice, err := m.Price(tokens.Denom())
	if err != nil {
		return token.Token{}, err
	}
	dstPrice, err := m.Price(targetDenom)
	if err != nil {
		return token.Token{}, err
	}
	if dstPrice.Sign() == 0 {
		return token.Token{}, fmt.Errorf("oracle: zero price for %s", targetDenom)
	}
	rate := new(big.Rat).Quo(srcPrice, dstPrice)
	return token.New(new(big.Rat).Mul(tokens.Amount(), rate), targetDenom), nil
}
