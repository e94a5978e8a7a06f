// Package metrics defines observability hooks for the coordinator and
// health monitor.
package metrics

import "time"

// CheckResult enumerates health-check outcome categories for counters.
type CheckResult string

const (
	CheckAlive   CheckResult = "alive"
	CheckStopped CheckResult = "stopped"
	CheckFailed  CheckResult = "failed"
)

// Recorder defines observability hooks for sweeps, checks, and fleet-wide
// gauges. Implementations may forward to Prometheus; all methods must be
// safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveSweepDuration(d time.Duration)
	ObserveCheckDuration(worker string, d time.Duration)
	IncCheckResult(result CheckResult)
	IncTransition(to string)
	IncRestartAttempt(success bool)
	SetActiveWorkers(n int)
	SetFleetKeysPerSec(v float64)
	SetFleetKeysChecked(v float64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSweepDuration(time.Duration)         {}
func (NoopRecorder) ObserveCheckDuration(string, time.Duration) {}
func (NoopRecorder) IncCheckResult(CheckResult)                 {}
func (NoopRecorder) IncTransition(string)                       {}
func (NoopRecorder) IncRestartAttempt(bool)                     {}
func (NoopRecorder) SetActiveWorkers(int)                       {}
func (NoopRecorder) SetFleetKeysPerSec(float64)                 {}
func (NoopRecorder) SetFleetKeysChecked(float64)                {}
