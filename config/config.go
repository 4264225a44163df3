package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"poolchain/native/governance"
	"poolchain/native/pool"
)

// Config is the top-level TOML configuration for the ledger service.
type Config struct {
	DataDir     string       `toml:"DataDir"`
	Environment string       `toml:"Environment"`
	MetricsAddr string       `toml:"MetricsAddr"`
	Governance  Governance   `toml:"Governance"`
	Rewards     Rewards      `toml:"Rewards"`
	Pools       []PoolConfig `toml:"Pools"`
}

// Governance configures the vote-token ledger and proposal thresholds.
type Governance struct {
	VoteToken               string `toml:"VoteToken"`
	LockSeconds             uint64 `toml:"LockSeconds"`
	SnapshotIntervalSeconds uint64 `toml:"SnapshotIntervalSeconds"`
	PauseThresholdBps       uint64 `toml:"PauseThresholdBps"`
	UnpauseThresholdBps     uint64 `toml:"UnpauseThresholdBps"`
	WhitelistThresholdBps   uint64 `toml:"WhitelistThresholdBps"`
	DewhitelistThresholdBps uint64 `toml:"DewhitelistThresholdBps"`
	VetoHolder              string `toml:"VetoHolder"`
}

// Rewards configures the shared reward supply.
type Rewards struct {
	RewardToken string `toml:"RewardToken"`
}

// PoolConfig declares one pool. Fixed-point values (rates, fee, coefficient)
// are decimal strings scaled by 1e18.
type PoolConfig struct {
	PoolID            string `toml:"PoolID"`
	LoanToken         string `toml:"LoanToken"`
	CollToken         string `toml:"CollToken"`
	Decimals          uint8  `toml:"Decimals"`
	LoanTenorSeconds  uint64 `toml:"LoanTenorSeconds"`
	MaxLoanPerColl    string `toml:"MaxLoanPerColl"`
	R1                string `toml:"R1"`
	R2                string `toml:"R2"`
	LiquidityBnd1     string `toml:"LiquidityBnd1"`
	LiquidityBnd2     string `toml:"LiquidityBnd2"`
	MinLoan           string `toml:"MinLoan"`
	CreatorFeeRate    string `toml:"CreatorFeeRate"`
	MinLiquidity      string `toml:"MinLiquidity"`
	RewardCoefficient string `toml:"RewardCoefficient"`
	LpLockSeconds     uint64 `toml:"LpLockSeconds"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
}

// Validate checks structural consistency before any engine is constructed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Governance.VoteToken) == "" {
		return fmt.Errorf("config: Governance.VoteToken is required")
	}
	seen := make(map[string]struct{}, len(c.Pools))
	for i := range c.Pools {
		p := &c.Pools[i]
		if strings.TrimSpace(p.PoolID) == "" {
			return fmt.Errorf("config: Pools[%d].PoolID is required", i)
		}
		if _, dup := seen[p.PoolID]; dup {
			return fmt.Errorf("config: duplicate pool id %q", p.PoolID)
		}
		seen[p.PoolID] = struct{}{}
		if _, err := p.Params(); err != nil {
			return err
		}
	}
	return nil
}

func parseBig(field, value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must be a non-negative decimal integer, got %q", field, value)
	}
	return v, nil
}

// Params converts the declaration into engine parameters.
func (p *PoolConfig) Params() (*pool.Params, error) {
	maxLoanPerColl, err := parseBig(p.PoolID+".MaxLoanPerColl", p.MaxLoanPerColl)
	if err != nil {
		return nil, err
	}
	r1, err := parseBig(p.PoolID+".R1", p.R1)
	if err != nil {
		return nil, err
	}
	r2, err := parseBig(p.PoolID+".R2", p.R2)
	if err != nil {
		return nil, err
	}
	bnd1, err := parseBig(p.PoolID+".LiquidityBnd1", p.LiquidityBnd1)
	if err != nil {
		return nil, err
	}
	bnd2, err := parseBig(p.PoolID+".LiquidityBnd2", p.LiquidityBnd2)
	if err != nil {
		return nil, err
	}
	minLoan, err := parseBig(p.PoolID+".MinLoan", p.MinLoan)
	if err != nil {
		return nil, err
	}
	feeRate, err := parseBig(p.PoolID+".CreatorFeeRate", p.CreatorFeeRate)
	if err != nil {
		return nil, err
	}
	minLiquidity, err := parseBig(p.PoolID+".MinLiquidity", p.MinLiquidity)
	if err != nil {
		return nil, err
	}
	coeff, err := parseBig(p.PoolID+".RewardCoefficient", p.RewardCoefficient)
	if err != nil {
		return nil, err
	}
	if bnd1.Sign() == 0 || bnd1.Cmp(bnd2) >= 0 {
		return nil, fmt.Errorf("config: %s liquidity bounds must satisfy 0 < bnd1 < bnd2", p.PoolID)
	}
	if minLiquidity.Sign() == 0 {
		return nil, fmt.Errorf("config: %s.MinLiquidity must be positive", p.PoolID)
	}
	return &pool.Params{
		PoolID:         p.PoolID,
		LoanToken:      p.LoanToken,
		CollToken:      p.CollToken,
		Decimals:       p.Decimals,
		LoanTenor:      p.LoanTenorSeconds,
		MaxLoanPerColl: maxLoanPerColl,
		R1:             r1,
		R2:             r2,
		LiquidityBnd1:  bnd1,
		LiquidityBnd2:  bnd2,
		MinLoan:        minLoan,
		CreatorFeeRate: feeRate,
		MinLiquidity:   minLiquidity,
		RewardCoeff:    coeff,
		LpLockSeconds:  p.LpLockSeconds,
	}, nil
}

// Policy converts the governance section into the engine policy.
func (g Governance) Policy() governance.Policy {
	return governance.Policy{
		VoteToken:   g.VoteToken,
		LockSeconds: g.LockSeconds,
		Thresholds: governance.Thresholds{
			PauseBps:       g.PauseThresholdBps,
			UnpauseBps:     g.UnpauseThresholdBps,
			WhitelistBps:   g.WhitelistThresholdBps,
			DewhitelistBps: g.DewhitelistThresholdBps,
		},
	}
}
