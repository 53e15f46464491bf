package config

import (
	"sync/atomic"

	"insureguard/risk-api/internal/intel"
	"insureguard/risk-api/internal/scoring"
)

// Runtime holds the settings that may be changed while the service runs.
// Readers always see a complete, validated value.
type Runtime struct {
	thresholds atomic.Pointer[scoring.Thresholds]
	intel      atomic.Pointer[intel.Settings]
}

// NewRuntime seeds the runtime settings from a loaded configuration.
func NewRuntime(cfg *Config) *Runtime {
	r := &Runtime{}
	th := cfg.Thresholds
	in := cfg.Intel
	r.thresholds.Store(&th)
	r.intel.Store(&in)
	return r
}

// Thresholds returns the risk thresholds currently in force.
func (r *Runtime) Thresholds() scoring.Thresholds { return *r.thresholds.Load() }

// SetThresholds validates and installs new risk thresholds. Invalid values
// are rejected and the previous thresholds stay in force.
func (r *Runtime) SetThresholds(t scoring.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.thresholds.Store(&t)
	return nil
}

// Intel returns the fraud intelligence settings currently in force.
func (r *Runtime) Intel() intel.Settings { return *r.intel.Load() }

// SetIntel validates and installs new fraud intelligence settings.
func (r *Runtime) SetIntel(s intel.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.intel.Store(&s)
	return nil
}
