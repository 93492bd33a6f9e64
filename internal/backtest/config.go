package backtest

import (
	"fmt"
)

// Config holds the bankroll simulation settings
type Config struct {
	InitialBankroll      float64
	StopLossConsecutive  int
	MonteCarloIterations int
	MonteCarloSeed       int64
	RuinFraction         float64
	RiskFreeRate         float64
}

// DefaultConfig returns a 1000 unit bankroll halted after 5 straight losses
func DefaultConfig() Config {
	return Config{
		InitialBankroll:      1000,
		StopLossConsecutive:  5,
		MonteCarloIterations: 1000,
		MonteCarloSeed:       42,
		RuinFraction:         0.5,
	}
}

// Validate validates simulation parameters
func (c Config) Validate() error {
	if c.InitialBankroll <= 0 {
		return fmt.Errorf("initial bankroll must be positive")
	}
	if c.StopLossConsecutive <= 0 {
		return fmt.Errorf("stop-loss consecutive count must be positive")
	}
	if c.MonteCarloIterations < 0 {
		return fmt.Errorf("monte carlo iterations cannot be negative")
	}
	if c.RuinFraction < 0 || c.RuinFraction >= 1 {
		return fmt.Errorf("ruin fraction must be in [0, 1)")
	}
	return nil
}
