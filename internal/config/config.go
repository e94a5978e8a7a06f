// Package config loads and validates the coordinator configuration and the
// fleet membership file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the coordinator configuration
type Config struct {
	Keyspace KeyspaceConfig    `yaml:"keyspace"`
	Solver   SolverConfig      `yaml:"solver"`
	Fleet    FleetConfig       `yaml:"fleet"`
	Health   HealthConfig      `yaml:"health"`
	Restart  RestartConfig     `yaml:"restart"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	Timeouts TimeoutsConfig    `yaml:"timeouts"`
	Server   ServerConfig      `yaml:"server"`
	Events   EventsConfig      `yaml:"events"`
	Notify   map[string]string `yaml:"notify,omitempty"` // opaque passthrough for the remote solver
}

// KeyspaceConfig holds the total search interval as hex bounds.
type KeyspaceConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// SolverConfig describes the remote solver binary and its tuning knobs.
type SolverConfig struct {
	BinaryName         string  `yaml:"binary_name"`
	PuzzleFile         string  `yaml:"puzzle_file"`
	LogFile            string  `yaml:"log_file"`
	PidFile            string  `yaml:"pid_file"`
	ConfigFile         string  `yaml:"config_file"`
	Mode               string  `yaml:"mode"`
	SwitchInterval     int     `yaml:"switch_interval"`
	SubintervalRatio   float64 `yaml:"subinterval_ratio"`
	BatchSize          int     `yaml:"batch_size"`
	CheckpointInterval int     `yaml:"checkpoint_interval"`
	StopOnFind         bool    `yaml:"stop_on_find"`
}

// FleetConfig describes fleet membership loading and limits.
type FleetConfig struct {
	InstancesFile string `yaml:"instances_file"`
	MaxWorkers    int    `yaml:"max_workers"`
	WatchMembers  bool   `yaml:"watch_members"`
}

// HealthConfig tunes the liveness sweep.
type HealthConfig struct {
	Interval            Duration `yaml:"interval"`
	CheckTimeout        Duration `yaml:"check_timeout"`
	MaxConcurrentChecks int      `yaml:"max_concurrent_checks"`
	LogTailLines        int      `yaml:"log_tail_lines"`
}

// RestartConfig tunes the periodic restart sweep for stopped/failed workers.
type RestartConfig struct {
	Interval       Duration    `yaml:"interval"`
	Backoff        BackoffMode `yaml:"backoff"`
	BackoffInitial Duration    `yaml:"backoff_initial"`
	BackoffMax     Duration    `yaml:"backoff_max"`
}

// BackoffMode selects the restart backoff curve.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// SnapshotConfig tunes periodic snapshot publication.
type SnapshotConfig struct {
	Interval Duration `yaml:"interval"`
}

// TimeoutsConfig bounds each remote operation independently.
type TimeoutsConfig struct {
	Connect Duration `yaml:"connect"`
	Upload  Duration `yaml:"upload"`
	Exec    Duration `yaml:"exec"`
	Stop    Duration `yaml:"stop"`
}

// ServerConfig configures the admin HTTP server (status, health, metrics).
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// EventsConfig configures the optional NATS snapshot/event publisher.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load loads configuration from the specified file. A .env file, if
// present, is loaded first (without overriding the process environment),
// and environment variables are expanded inside the YAML content so
// credentials can stay out of the config file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
