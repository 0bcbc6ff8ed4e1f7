package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"stratapool/native/common"
	"stratapool/native/router"
)

// Rat wraps big.Rat so parameter values decode from decimal or rational TOML
// strings ("0.2", "3/2").
type Rat struct {
	*big.Rat
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (r *Rat) UnmarshalText(text []byte) error {
	parsed, err := common.ParseRat(string(text))
	if err != nil {
		return err
	}
	r.Rat = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rat) MarshalText() ([]byte, error) {
	if r.Rat == nil {
		return []byte("0"), nil
	}
	return []byte(r.Rat.RatString()), nil
}

// Params holds the protocol knobs consumed by the router and its trackers.
type Params struct {
	ToleranceRate     Rat `toml:"ToleranceRate"`
	ContentRate       Rat `toml:"ContentRate"`
	TxFeeRate         Rat `toml:"TxFeeRate"`
	OpPremium         Rat `toml:"OpPremium"`
	SafetyPremium     Rat `toml:"SafetyPremium"`
	RedeemCap         Rat `toml:"RedeemCap"`
	LiquidationSpread Rat `toml:"LiquidationSpread"`
	BuyCap            Rat `toml:"BuyCap"`
	StakeCap          Rat `toml:"StakeCap"`
	NFloors           int `toml:"NFloors"`
	Cooldown          int `toml:"Cooldown"`
}

// Config captures runtime configuration for the protocol engine and the
// simulation service around it.
type Config struct {
	Service       string `toml:"Service"`
	Environment   string `toml:"Environment"`
	ListenAddress string `toml:"ListenAddress"`
	LogFile       string `toml:"LogFile"`

	VADenom string `toml:"VADenom"`
	SADenom string `toml:"SADenom"`

	Params Params `toml:"Params"`
}

// Default returns the canonical parameter set.
func Default() Config {
	return Config{
		Service:       "stratapool",
		Environment:   "local",
		ListenAddress: ":9464",
		VADenom:       "ETH",
		SADenom:       "USDC",
		Params: Params{
			ToleranceRate:     Rat{common.MustRat("0.2")},
			ContentRate:       Rat{common.MustRat("0.5")},
			TxFeeRate:         Rat{common.MustRat("0.2")},
			OpPremium:         Rat{common.MustRat("0.1")},
			SafetyPremium:     Rat{common.MustRat("1")},
			RedeemCap:         Rat{common.MustRat("1")},
			LiquidationSpread: Rat{common.MustRat("0.2")},
			BuyCap:            Rat{common.MustRat("100")},
			StakeCap:          Rat{common.MustRat("1000000")},
			NFloors:           4,
			Cooldown:          200,
		},
	}
}

// Load reads configuration from the supplied path, filling omitted fields
// with the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Normalise trims string fields and backfills zero-valued parameters with
// their defaults.
func (c *Config) Normalise() {
	defaults := Default()
	c.Service = strings.TrimSpace(c.Service)
	if c.Service == "" {
		c.Service = defaults.Service
	}
	c.Environment = strings.TrimSpace(c.Environment)
	if c.Environment == "" {
		c.Environment = defaults.Environment
	}
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	if c.ListenAddress == "" {
		c.ListenAddress = defaults.ListenAddress
	}
	c.VADenom = strings.TrimSpace(c.VADenom)
	if c.VADenom == "" {
		c.VADenom = defaults.VADenom
	}
	c.SADenom = strings.TrimSpace(c.SADenom)
	if c.SADenom == "" {
		c.SADenom = defaults.SADenom
	}
	if c.Params.NFloors == 0 {
		c.Params.NFloors = defaults.Params.NFloors
	}
	if c.Params.Cooldown == 0 {
		c.Params.Cooldown = defaults.Params.Cooldown
	}
	params := []struct {
		field *Rat
		def   Rat
	}{
		{&c.Params.ToleranceRate, defaults.Params.ToleranceRate},
		{&c.Params.ContentRate, defaults.Params.ContentRate},
		{&c.Params.TxFeeRate, defaults.Params.TxFeeRate},
		{&c.Params.OpPremium, defaults.Params.OpPremium},
		{&c.Params.SafetyPremium, defaults.Params.SafetyPremium},
		{&c.Params.RedeemCap, defaults.Params.RedeemCap},
		{&c.Params.LiquidationSpread, defaults.Params.LiquidationSpread},
		{&c.Params.BuyCap, defaults.Params.BuyCap},
		{&c.Params.StakeCap, defaults.Params.StakeCap},
	}
	for _, p := range params {
		if p.field.Rat == nil {
			p.field.Rat = new(big.Rat).Set(p.def.Rat)
		}
	}
}

// Validate rejects parameter combinations the engine cannot run with.
func (c Config) Validate() error {
	if c.VADenom == c.SADenom {
		return fmt.Errorf("config: reserve denominations must differ")
	}
	if c.Params.NFloors <= 0 {
		return fmt.Errorf("config: NFloors must be positive")
	}
	if c.Params.Cooldown < 0 {
		return fmt.Errorf("config: Cooldown must not be negative")
	}
	one := common.One()
	zero := common.Zero()
	unit := []struct {
		name  string
		value Rat
	}{
		{"ToleranceRate", c.Params.ToleranceRate},
		{"ContentRate", c.Params.ContentRate},
		{"TxFeeRate", c.Params.TxFeeRate},
		{"OpPremium", c.Params.OpPremium},
		{"LiquidationSpread", c.Params.LiquidationSpread},
	}
	for _, p := range unit {
		if p.value.Rat.Sign() < 0 || p.value.Rat.Cmp(one) >= 0 {
			return fmt.Errorf("config: %s must be in [0, 1)", p.name)
		}
	}
	positive := []struct {
		name  string
		value Rat
	}{
		{"SafetyPremium", c.Params.SafetyPremium},
		{"RedeemCap", c.Params.RedeemCap},
		{"BuyCap", c.Params.BuyCap},
		{"StakeCap", c.Params.StakeCap},
	}
	for _, p := range positive {
		if p.value.Rat.Cmp(zero) <= 0 {
			return fmt.Errorf("config: %s must be positive", p.name)
		}
	}
	return nil
}

// EngineConfig converts the loaded parameters into the router's config.
func (c Config) EngineConfig() router.Config {
	return router.Config{
		VADenom:           c.VADenom,
		SADenom:           c.SADenom,
		FeeRate:           common.Rat(c.Params.TxFeeRate.Rat),
		OpPremium:         common.Rat(c.Params.OpPremium.Rat),
		SafetyPremium:     common.Rat(c.Params.SafetyPremium.Rat),
		RedeemCap:         common.Rat(c.Params.RedeemCap.Rat),
		LiquidationSpread: common.Rat(c.Params.LiquidationSpread.Rat),
		Tolerance:         common.Rat(c.Params.ToleranceRate.Rat),
		Content:           common.Rat(c.Params.ContentRate.Rat),
		BuyCap:            common.Rat(c.Params.BuyCap.Rat),
		StakeCap:          common.Rat(c.Params.StakeCap.Rat),
		Floors:            c.Params.NFloors,
		Cooldown:          c.Params.Cooldown,
	}
}
