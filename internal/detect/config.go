package detect

import (
	"errors"
	"fmt"
	"time"
)

// Config is the canonical threshold set shared by all detectors.
type Config struct {
	// Cycle detection.
	MinRingSize           int           `mapstructure:"min_ring_size"`
	MaxRingSize           int           `mapstructure:"max_ring_size"`
	CycleWindow           time.Duration `mapstructure:"cycle_window"`
	MinRelativeAmount     float64       `mapstructure:"min_relative_amount"`
	AmountPreservationTol float64       `mapstructure:"amount_preservation"`
	MaxDFSExpansions      int           `mapstructure:"max_dfs_expansions"`

	// Fan-in / fan-out detection.
	FanWindow         time.Duration `mapstructure:"fan_window"`
	FanOutLag         time.Duration `mapstructure:"fan_out_lag"`
	MinTxPerHub       int           `mapstructure:"min_tx_per_hub"`
	MinUniqueFan      int           `mapstructure:"min_unique_fan"`
	HighVolumeDegree  int           `mapstructure:"high_volume_degree"`
	HubLifespan       time.Duration `mapstructure:"hub_lifespan"`
	BatchMinOutgoing  int           `mapstructure:"batch_min_outgoing"`
	BatchMaxSpan      time.Duration `mapstructure:"batch_max_span"`
	BatchAmountSpread float64       `mapstructure:"batch_amount_spread"`

	// Shell-chain detection.
	ShellMaxTransactions int     `mapstructure:"shell_max_tx"`
	ShellMinChainLength  int     `mapstructure:"shell_min_chain"`
	ShellMinAmountRatio  float64 `mapstructure:"shell_min_ratio"`
	ShellRiskScore       float64 `mapstructure:"shell_risk"`
}

const day = 24 * time.Hour

// DefaultConfig returns the tuned production thresholds.
func DefaultConfig() Config {
	return Config{
		MinRingSize:           3,
		MaxRingSize:           5,
		CycleWindow:           72 * time.Hour,
		MinRelativeAmount:     1.8,
		AmountPreservationTol: 0.92,
		MaxDFSExpansions:      200_000,

		FanWindow:         72 * time.Hour,
		FanOutLag:         6 * time.Hour,
		MinTxPerHub:       12,
		MinUniqueFan:      8,
		HighVolumeDegree:  150,
		HubLifespan:       45 * day * 3 / 2,
		BatchMinOutgoing:  50,
		BatchMaxSpan:      5 * time.Hour,
		BatchAmountSpread: 20_000,

		ShellMaxTransactions: 4,
		ShellMinChainLength:  4,
		ShellMinAmountRatio:  0.75,
		ShellRiskScore:       78,
	}
}

// Validate reports the first threshold that cannot produce meaningful results.
func (c Config) Validate() error {
	var errs []error
	if c.MinRingSize < 2 {
		errs = append(errs, fmt.Errorf("min_ring_size must be at least 2, got %d", c.MinRingSize))
	}
	if c.MaxRingSize < c.MinRingSize {
		errs = append(errs, fmt.Errorf("max_ring_size %d is below min_ring_size %d", c.MaxRingSize, c.MinRingSize))
	}
	if c.CycleWindow <= 0 || c.FanWindow <= 0 {
		errs = append(errs, errors.New("cycle_window and fan_window must be positive"))
	}
	if c.FanOutLag < 0 {
		errs = append(errs, errors.New("fan_out_lag must not be negative"))
	}
	if c.MaxDFSExpansions <= 0 {
		errs = append(errs, errors.New("max_dfs_expansions must be positive"))
	}
	if c.MinUniqueFan <= 0 || c.MinTxPerHub <= 0 {
		errs = append(errs, errors.New("min_unique_fan and min_tx_per_hub must be positive"))
	}
	if c.ShellMinChainLength < 2 || c.ShellMaxTransactions <= 0 {
		errs = append(errs, errors.New("shell_min_chain must be at least 2 and shell_max_tx positive"))
	}
	for name, ratio := range map[string]float64{
		"amount_preservation": c.AmountPreservationTol,
		"shell_min_ratio":     c.ShellMinAmountRatio,
	} {
		if ratio <= 0 || ratio > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", name, ratio))
		}
	}
	return errors.Join(errs...)
}
