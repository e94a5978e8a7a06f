package config

import (
	"fmt"

	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
)

// Validate checks the configuration for internal consistency. Defaults are
// assumed to have been applied already.
func (c *Config) Validate() error {
	if _, err := keyspace.ParseInterval(c.Keyspace.Start, c.Keyspace.End); err != nil {
		return fmt.Errorf("keyspace: %w", err)
	}

	if c.Solver.BinaryName == "" {
		return fmt.Errorf("solver.binary_name is required")
	}
	if c.Fleet.MaxWorkers < 1 {
		return fmt.Errorf("fleet.max_workers must be >= 1, got %d", c.Fleet.MaxWorkers)
	}

	if c.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}
	if c.Health.CheckTimeout <= 0 {
		return fmt.Errorf("health.check_timeout must be positive")
	}
	if c.Health.CheckTimeout >= c.Health.Interval {
		return fmt.Errorf("health.check_timeout (%s) must be shorter than health.interval (%s)",
			c.Health.CheckTimeout.Std(), c.Health.Interval.Std())
	}
	if c.Health.MaxConcurrentChecks < 1 {
		return fmt.Errorf("health.max_concurrent_checks must be >= 1")
	}

	if c.Restart.Interval <= 0 {
		return fmt.Errorf("restart.interval must be positive")
	}
	switch c.Restart.Backoff {
	case BackoffFixed, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("restart.backoff must be fixed, linear, or exponential, got %q", c.Restart.Backoff)
	}

	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be positive")
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when events are enabled")
	}
	return nil
}

// TotalInterval parses the configured keyspace bounds.
func (c *Config) TotalInterval() (keyspace.Interval, error) {
	return keyspace.ParseInterval(c.Keyspace.Start, c.Keyspace.End)
}
