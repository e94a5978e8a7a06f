// Package fleet holds the worker map, per-worker runtime state, and the
// fleet-wide lock serializing lifecycle transitions and metric updates.
package fleet

import (
	"time"

	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
)

// Status represents the lifecycle state of one remote worker
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusDeploying  Status = "deploying"
	StatusRunning    Status = "running"
	StatusStopped    Status = "stopped"
	StatusFailed     Status = "failed"
)

// legalTransitions enumerates the lifecycle edges. A worker that was never
// observed running cannot reach stopped; restart re-enters at connecting.
var legalTransitions = map[Status][]Status{
	StatusIdle:       {StatusConnecting},
	StatusConnecting: {StatusDeploying, StatusFailed, StatusIdle},
	StatusDeploying:  {StatusRunning, StatusFailed},
	StatusRunning:    {StatusStopped, StatusFailed},
	StatusStopped:    {StatusConnecting},
	StatusFailed:     {StatusConnecting},
}

func (s Status) canTransitionTo(to Status) bool {
	for _, next := range legalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Descriptor identifies a remote worker: name, target location, and the
// principal used to reach it. Loaded once from the membership file.
type Descriptor struct {
	Name    string `yaml:"name" json:"name"`
	Project string `yaml:"project" json:"project"`
	Zone    string `yaml:"zone" json:"zone"`
	User    string `yaml:"user" json:"user"`
}

// ErrorRecord is one entry in a worker's bounded error log.
type ErrorRecord struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Worker is the identity plus mutable runtime state of one remote worker.
// All fields are mutated only through Fleet methods under the fleet lock;
// external readers get copies via View.
type Worker struct {
	desc         Descriptor
	status       Status
	assigned     keyspace.Interval
	keysChecked  uint64
	keysPerSec   float64
	errLog       []ErrorRecord
	lastObserved time.Time
}

// View is a read-only copy of a worker's state for display and reporting.
type View struct {
	Descriptor   Descriptor    `json:"descriptor"`
	Status       Status        `json:"status"`
	Range        string        `json:"range"`
	KeysChecked  uint64        `json:"keys_checked"`
	KeysPerSec   float64       `json:"keys_per_sec"`
	LastObserved time.Time     `json:"last_observed"`
	RecentErrors []ErrorRecord `json:"recent_errors,omitempty"`
}

// view snapshots the worker under the fleet lock. recentErrors bounds how
// many trailing error records are surfaced; the full log stays internal.
func (w *Worker) view(recentErrors int) View {
	v := View{
		Descriptor:   w.desc,
		Status:       w.status,
		Range:        w.assigned.String(),
		KeysChecked:  w.keysChecked,
		KeysPerSec:   w.keysPerSec,
		LastObserved: w.lastObserved,
	}
	if n := len(w.errLog); n > 0 && recentErrors > 0 {
		start := n - recentErrors
		if start < 0 {
			start = 0
		}
		v.RecentErrors = append(v.RecentErrors, w.errLog[start:]...)
	}
	return v
}
