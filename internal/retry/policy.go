// Package retry provides backoff policies for restart attempts.
package retry

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/keyfleet/internal/config"
)

// Policy encapsulates retry/backoff settings for restart attempts.
// It is immutable after construction.
type Policy struct {
	Mode    config.BackoffMode // fixed|linear|exponential
	Initial time.Duration      // base delay
	Max     time.Duration      // cap for growth
}

// DefaultPolicy returns a sensible default policy (linear, 1m initial, 10m cap).
func DefaultPolicy() Policy {
	return Policy{Mode: config.BackoffLinear, Initial: time.Minute, Max: 10 * time.Minute}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.BackoffMode, initial, maxDuration time.Duration) Policy {
	p := DefaultPolicy()
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.BackoffFixed, config.BackoffLinear, config.BackoffExponential:
		p.Mode = mode
	default:
		// unknown -> keep default
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay after the given number of consecutive
// failures (1-based: first failure => 1). Zero failures means no delay.
func (p Policy) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	switch p.Mode {
	case config.BackoffFixed:
		return p.Initial
	case config.BackoffExponential:
		if failures > 30 {
			return p.Max
		}
		d := p.Initial * (1 << (failures - 1))
		if d > p.Max || d < 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(failures) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	return nil
}
