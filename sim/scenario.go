package sim

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"stratapool/native/common"
)

// PricePoint pins the volatile asset's price from a given round onward.
type PricePoint struct {
	Round int    `yaml:"round"`
	Price string `yaml:"price"`
}

// Scenario describes one simulation run: population sizes, the bootstrap
// deposit and a deterministic price path.
type Scenario struct {
	Seed         int64        `yaml:"seed"`
	Rounds       int          `yaml:"rounds"`
	Buyers       int          `yaml:"buyers"`
	Providers    int          `yaml:"providers"`
	Bootstrap    string       `yaml:"bootstrap"`
	StakeBound   string       `yaml:"stake_bound"`
	InitialPrice string       `yaml:"initial_price"`
	Prices       []PricePoint `yaml:"prices"`

	bootstrap    *big.Rat
	stakeBound   *big.Rat
	initialPrice *big.Rat
	schedule     map[int]*big.Rat
}

// DefaultScenario mirrors the historical batch run: 300 rounds, fifty buyers
// and fifty providers around a one million bootstrap at a flat 1337 price.
func DefaultScenario() Scenario {
	s := Scenario{
		Seed:         1,
		Rounds:       300,
		Buyers:       50,
		Providers:    50,
		Bootstrap:    "1000000",
		StakeBound:   "10000",
		InitialPrice: "1337",
	}
	if err := s.finalise(); err != nil {
		panic(err)
	}
	return s
}

// LoadScenario reads a scenario from a YAML file, filling omitted fields
// with the defaults.
func LoadScenario(path string) (Scenario, error) {
	s := DefaultScenario()
	file, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("sim: open scenario: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("sim: decode scenario: %w", err)
	}
	if err := s.finalise(); err != nil {
		return s, err
	}
	return s, nil
}

// finalise parses the textual amounts and builds the price schedule.
func (s *Scenario) finalise() error {
	if s.Rounds <= 0 {
		return fmt.Errorf("sim: scenario rounds must be positive")
	}
	if s.Buyers < 0 || s.Providers < 0 {
		return fmt.Errorf("sim: scenario population must not be negative")
	}
	var err error
	if s.bootstrap, err = common.ParseRat(s.Bootstrap); err != nil {
		return fmt.Errorf("sim: scenario bootstrap: %w", err)
	}
	if s.stakeBound, err = common.ParseRat(s.StakeBound); err != nil {
		return fmt.Errorf("sim: scenario stake bound: %w", err)
	}
	if s.initialPrice, err = common.ParseRat(s.InitialPrice); err != nil {
		return fmt.Errorf("sim: scenario initial price: %w", err)
	}
	if s.initialPrice.Sign() <= 0 {
		return fmt.Errorf("sim: scenario initial price must be positive")
	}
	s.schedule = make(map[int]*big.Rat, len(s.Prices))
	for _, point := range s.Prices {
		if point.Round < 1 || point.Round > s.Rounds {
			return fmt.Errorf("sim: price point round %d outside 1..%d", point.Round, s.Rounds)
		}
		price, err := common.ParseRat(point.Price)
		if err != nil {
			return fmt.Errorf("sim: price point round %d: %w", point.Round, err)
		}
		if price.Sign() <= 0 {
			return fmt.Errorf("sim: price point round %d must be positive", point.Round)
		}
		s.schedule[point.Round] = price
	}
	return nil
}

// PriceAt returns the scheduled price change for a round, if any.
func (s Scenario) PriceAt(round int) (*big.Rat, bool) {
	price, ok := s.schedule[round]
	if !ok {
		return nil, false
	}
	return common.Rat(price), true
}

// BootstrapAmount returns the protocol's initial stable deposit.
func (s Scenario) BootstrapAmount() *big.Rat { return common.Rat(s.bootstrap) }

// StakeBoundAmount returns the single-stake ceiling for providers.
func (s Scenario) StakeBoundAmount() *big.Rat { return common.Rat(s.stakeBound) }

// InitialPriceAmount returns the volatile asset's starting price.
func (s Scenario) InitialPriceAmount() *big.Rat { return common.Rat(s.initialPrice) }
