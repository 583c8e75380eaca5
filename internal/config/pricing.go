// Package config loads and merges the pricing core's configuration:
// named presets (launch, growth, scale), YAML overrides, and the
// environment inputs (database URL, pub/sub URL, active phase) the
// process needs at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// PricingConfig is the single source of truth for every tunable the
// pricing engine, demand tracker, and price updater read. It is
// copy-on-update: callers hold a value, never a pointer into a shared
// struct, so replacing it is just swapping which value is atomically
// published (see engine.Engine.UpdateConfig).
type PricingConfig struct {
	UpdateIntervalMs      int64   `yaml:"update_interval_ms"`
	DemandWindowMs        int64   `yaml:"demand_window_ms"`
	MaxDemandMultiplier   float64 `yaml:"max_demand_multiplier"`
	MaxScarcityMultiplier float64 `yaml:"max_scarcity_multiplier"`
	MaxQualityMultiplier  float64 `yaml:"max_quality_multiplier"`
	MaxMomentumMultiplier float64 `yaml:"max_momentum_multiplier"`
	SmoothingFactor       float64 `yaml:"smoothing_factor"`
	MaxPriceChangePercent float64 `yaml:"max_price_change_percent"`
	PlatformFeeRate       float64 `yaml:"platform_fee_rate"`

	// MaxConcurrentFetches bounds the Price Updater's per-cycle fan-out.
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches"`
	// CycleTimeoutSlackMs is subtracted from UpdateIntervalMs when
	// deriving the per-cycle deadline, leaving headroom to finish
	// writes before the next tick could fire.
	CycleTimeoutSlackMs int64 `yaml:"cycle_timeout_slack_ms"`

	KindWeightOverrides map[types.SignalKind]float64 `yaml:"kind_weight_overrides"`
}

// presets holds the three named profiles. growth is the default.
var presets = map[string]PricingConfig{
	"launch": {
		UpdateIntervalMs:      30000,
		DemandWindowMs:        600000,
		MaxDemandMultiplier:   2.5,
		MaxScarcityMultiplier: 1.5,
		MaxQualityMultiplier:  1.3,
		MaxMomentumMultiplier: 1.2,
		SmoothingFactor:       0.2,
		MaxPriceChangePercent: 10,
		PlatformFeeRate:       0.10,
		MaxConcurrentFetches:  8,
		CycleTimeoutSlackMs:   2000,
	},
	"growth": {
		UpdateIntervalMs:      10000,
		DemandWindowMs:        300000,
		MaxDemandMultiplier:   3.5,
		MaxScarcityMultiplier: 2.0,
		MaxQualityMultiplier:  1.5,
		MaxMomentumMultiplier: 1.3,
		SmoothingFactor:       0.3,
		MaxPriceChangePercent: 15,
		PlatformFeeRate:       0.12,
		MaxConcurrentFetches:  16,
		CycleTimeoutSlackMs:   1000,
	},
	"scale": {
		UpdateIntervalMs:      5000,
		DemandWindowMs:        180000,
		MaxDemandMultiplier:   4.5,
		MaxScarcityMultiplier: 2.5,
		MaxQualityMultiplier:  1.7,
		MaxMomentumMultiplier: 1.5,
		SmoothingFactor:       0.4,
		MaxPriceChangePercent: 20,
		PlatformFeeRate:       0.15,
		MaxConcurrentFetches:  32,
		CycleTimeoutSlackMs:   500,
	},
}

const DefaultPreset = "growth"

// ErrUnknownPreset is returned when an unrecognized phase name is
// requested; per spec.md section 7 this is a startup-time configuration
// error and the process should refuse to start rather than fall back
// silently.
var ErrUnknownPreset = fmt.Errorf("unknown pricing preset")

// Preset returns a copy of the named preset's configuration.
func Preset(name string) (PricingConfig, error) {
	cfg, ok := presets[name]
	if !ok {
		return PricingConfig{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return cfg, nil
}

// Merge overlays non-zero fields from overrides onto base, returning a
// new config. Zero-valued numeric fields in overrides are treated as
// "not set" and keep base's value; this matches YAML overrides that
// specify only a handful of fields.
func Merge(base, overrides PricingConfig) PricingConfig {
	out := base
	if overrides.UpdateIntervalMs != 0 {
		out.UpdateIntervalMs = overrides.UpdateIntervalMs
	}
	if overrides.DemandWindowMs != 0 {
		out.DemandWindowMs = overrides.DemandWindowMs
	}
	if overrides.MaxDemandMultiplier != 0 {
		out.MaxDemandMultiplier = overrides.MaxDemandMultiplier
	}
	if overrides.MaxScarcityMultiplier != 0 {
		out.MaxScarcityMultiplier = overrides.MaxScarcityMultiplier
	}
	if overrides.MaxQualityMultiplier != 0 {
		out.MaxQualityMultiplier = overrides.MaxQualityMultiplier
	}
	if overrides.MaxMomentumMultiplier != 0 {
		out.MaxMomentumMultiplier = overrides.MaxMomentumMultiplier
	}
	if overrides.SmoothingFactor != 0 {
		out.SmoothingFactor = overrides.SmoothingFactor
	}
	if overrides.MaxPriceChangePercent != 0 {
		out.MaxPriceChangePercent = overrides.MaxPriceChangePercent
	}
	if overrides.PlatformFeeRate != 0 {
		out.PlatformFeeRate = overrides.PlatformFeeRate
	}
	if overrides.MaxConcurrentFetches != 0 {
		out.MaxConcurrentFetches = overrides.MaxConcurrentFetches
	}
	if overrides.CycleTimeoutSlackMs != 0 {
		out.CycleTimeoutSlackMs = overrides.CycleTimeoutSlackMs
	}
	if len(overrides.KindWeightOverrides) > 0 {
		merged := make(map[types.SignalKind]float64, len(out.KindWeightOverrides)+len(overrides.KindWeightOverrides))
		for k, v := range out.KindWeightOverrides {
			merged[k] = v
		}
		for k, v := range overrides.KindWeightOverrides {
			merged[k] = v
		}
		out.KindWeightOverrides = merged
	}
	return out
}

// LoadFromFile reads a YAML overrides file and merges it onto the named
// preset. An empty path returns the preset unmodified.
func LoadFromFile(presetName, path string) (PricingConfig, error) {
	base, err := Preset(presetName)
	if err != nil {
		return PricingConfig{}, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return PricingConfig{}, fmt.Errorf("failed to read pricing config: %w", err)
	}
	var overrides PricingConfig
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return PricingConfig{}, fmt.Errorf("failed to parse pricing config: %w", err)
	}
	return Merge(base, overrides), nil
}

// UpdateInterval and DemandWindow return the config's millisecond fields
// as time.Duration for convenience at call sites.
func (c PricingConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMs) * time.Millisecond
}
func (c PricingConfig) DemandWindow() time.Duration {
	return time.Duration(c.DemandWindowMs) * time.Millisecond
}

// CycleDeadline returns the duration a single Price Updater cycle is
// allowed to run before it is considered an overrun.
func (c PricingConfig) CycleDeadline() time.Duration {
	slack := time.Duration(c.CycleTimeoutSlackMs) * time.Millisecond
	d := c.UpdateInterval() - slack
	if d <= 0 {
		return c.UpdateInterval()
	}
	return d
}

// Validate surfaces configuration errors that should stop the process
// from starting, per spec.md section 7's "Configuration" error class.
func (c PricingConfig) Validate() error {
	if c.UpdateIntervalMs <= 0 {
		return fmt.Errorf("update_interval_ms must be positive, got %d", c.UpdateIntervalMs)
	}
	if c.DemandWindowMs <= 0 {
		return fmt.Errorf("demand_window_ms must be positive, got %d", c.DemandWindowMs)
	}
	if c.SmoothingFactor < 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("smoothing_factor must be in [0,1], got %f", c.SmoothingFactor)
	}
	if c.MaxMomentumMultiplier <= 1 {
		return fmt.Errorf("max_momentum_multiplier must be > 1, got %f", c.MaxMomentumMultiplier)
	}
	if c.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("max_concurrent_fetches must be positive, got %d", c.MaxConcurrentFetches)
	}
	return nil
}

// EnvInputs are the environment-provided settings the core contract
// depends on: no CLI flags are part of the core contract per spec.md
// section 6.
type EnvInputs struct {
	DatabaseURL string
	PubSubURL   string
	Phase       string
}

// LoadEnvInputs reads the three environment inputs, defaulting Phase to
// DefaultPreset when unset.
func LoadEnvInputs() EnvInputs {
	phase := os.Getenv("NEXUSX_PRICING_PHASE")
	if phase == "" {
		phase = DefaultPreset
	}
	return EnvInputs{
		DatabaseURL: os.Getenv("NEXUSX_DATABASE_URL"),
		PubSubURL:   os.Getenv("NEXUSX_PUBSUB_URL"),
		Phase:       phase,
	}
}
