package config

import "time"

// Defaults matching the production puzzle-search deployment.
const (
	DefaultKeyspaceStart = "0x20000000000000000"
	DefaultKeyspaceEnd   = "0x3ffffffffffffffff"

	DefaultBinaryName         = "bitcoin_puzzle_solver"
	DefaultPuzzleFile         = "puzzle.txt"
	DefaultLogFile            = "~/solver.log"
	DefaultPidFile            = "~/solver.pid"
	DefaultConfigFile         = "~/config.txt"
	DefaultMode               = "smart"
	DefaultSwitchInterval     = 1000000
	DefaultSubintervalRatio   = 0.001
	DefaultBatchSize          = 10000
	DefaultCheckpointInterval = 10000000

	DefaultInstancesFile = "instances.yaml"
	DefaultMaxWorkers    = 50

	DefaultMaxConcurrentChecks = 20
	DefaultLogTailLines        = 5

	DefaultServerAddr    = ":8410"
	DefaultSubjectPrefix = "keyfleet"
)

func (c *Config) applyDefaults() {
	if c.Keyspace.Start == "" {
		c.Keyspace.Start = DefaultKeyspaceStart
	}
	if c.Keyspace.End == "" {
		c.Keyspace.End = DefaultKeyspaceEnd
	}

	if c.Solver.BinaryName == "" {
		c.Solver.BinaryName = DefaultBinaryName
	}
	if c.Solver.PuzzleFile == "" {
		c.Solver.PuzzleFile = DefaultPuzzleFile
	}
	if c.Solver.LogFile == "" {
		c.Solver.LogFile = DefaultLogFile
	}
	if c.Solver.PidFile == "" {
		c.Solver.PidFile = DefaultPidFile
	}
	if c.Solver.ConfigFile == "" {
		c.Solver.ConfigFile = DefaultConfigFile
	}
	if c.Solver.Mode == "" {
		c.Solver.Mode = DefaultMode
	}
	if c.Solver.SwitchInterval == 0 {
		c.Solver.SwitchInterval = DefaultSwitchInterval
	}
	if c.Solver.SubintervalRatio == 0 {
		c.Solver.SubintervalRatio = DefaultSubintervalRatio
	}
	if c.Solver.BatchSize == 0 {
		c.Solver.BatchSize = DefaultBatchSize
	}
	if c.Solver.CheckpointInterval == 0 {
		c.Solver.CheckpointInterval = DefaultCheckpointInterval
	}

	if c.Fleet.InstancesFile == "" {
		c.Fleet.InstancesFile = DefaultInstancesFile
	}
	if c.Fleet.MaxWorkers == 0 {
		c.Fleet.MaxWorkers = DefaultMaxWorkers
	}

	if c.Health.Interval == 0 {
		c.Health.Interval = Duration(30 * time.Second)
	}
	if c.Health.CheckTimeout == 0 {
		c.Health.CheckTimeout = Duration(15 * time.Second)
	}
	if c.Health.MaxConcurrentChecks == 0 {
		c.Health.MaxConcurrentChecks = DefaultMaxConcurrentChecks
	}
	if c.Health.LogTailLines == 0 {
		c.Health.LogTailLines = DefaultLogTailLines
	}

	if c.Restart.Interval == 0 {
		c.Restart.Interval = Duration(60 * time.Second)
	}
	if c.Restart.Backoff == "" {
		c.Restart.Backoff = BackoffLinear
	}
	if c.Restart.BackoffInitial == 0 {
		c.Restart.BackoffInitial = Duration(time.Minute)
	}
	if c.Restart.BackoffMax == 0 {
		c.Restart.BackoffMax = Duration(10 * time.Minute)
	}

	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = Duration(5 * time.Second)
	}

	if c.Timeouts.Connect == 0 {
		c.Timeouts.Connect = Duration(30 * time.Second)
	}
	if c.Timeouts.Upload == 0 {
		c.Timeouts.Upload = Duration(2 * time.Minute)
	}
	if c.Timeouts.Exec == 0 {
		c.Timeouts.Exec = Duration(30 * time.Second)
	}
	if c.Timeouts.Stop == 0 {
		c.Timeouts.Stop = Duration(10 * time.Second)
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = DefaultSubjectPrefix
	}
}
