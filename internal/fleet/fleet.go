package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
)

const (
	// DefaultErrorLogCap bounds each worker's error log.
	DefaultErrorLogCap = 20
	// perWorkerErrorWindow is how many trailing errors a snapshot surfaces
	// per worker.
	perWorkerErrorWindow = 2
	// fleetErrorWindow is how many errors a snapshot surfaces fleet-wide.
	fleetErrorWindow = 5
)

// Fleet owns the ordered worker map. One exclusive lock serializes all
// state transitions and metric writes between the coordinator thread and
// the health monitor's check tasks; readers get decoupled copies.
type Fleet struct {
	mu          sync.RWMutex
	order       []string
	workers     map[string]*Worker
	maxWorkers  int
	errorLogCap int
}

// New creates an empty fleet. maxWorkers <= 0 means unlimited.
func New(maxWorkers int) *Fleet {
	return &Fleet{
		workers:     make(map[string]*Worker),
		maxWorkers:  maxWorkers,
		errorLogCap: DefaultErrorLogCap,
	}
}

// Add registers a worker descriptor. Workers start idle with no assignment.
func (f *Fleet) Add(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("worker name is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.workers[desc.Name]; exists {
		return fmt.Errorf("worker %q already registered", desc.Name)
	}
	if f.maxWorkers > 0 && len(f.order) >= f.maxWorkers {
		return fmt.Errorf("fleet is at capacity (%d workers)", f.maxWorkers)
	}

	f.workers[desc.Name] = &Worker{desc: desc, status: StatusIdle}
	f.order = append(f.order, desc.Name)
	return nil
}

// Names returns worker names in registration order.
func (f *Fleet) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Size returns the number of registered workers.
func (f *Fleet) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// Get returns a read-only copy of the named worker's state.
func (f *Fleet) Get(name string) (View, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.workers[name]
	if !ok {
		return View{}, false
	}
	return w.view(perWorkerErrorWindow), true
}

// Descriptor returns the immutable identity of the named worker.
func (f *Fleet) Descriptor(name string) (Descriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.workers[name]
	if !ok {
		return Descriptor{}, false
	}
	return w.desc, true
}

// Status returns the current lifecycle status of the named worker.
func (f *Fleet) Status(name string) (Status, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.workers[name]
	if !ok {
		return "", false
	}
	return w.status, true
}

// Transition moves the named worker along a legal lifecycle edge.
// Transitioning to the current status is a no-op.
func (f *Fleet) Transition(name string, to Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[name]
	if !ok {
		return fmt.Errorf("unknown worker %q", name)
	}
	if w.status == to {
		return nil
	}
	if !w.status.canTransitionTo(to) {
		return fmt.Errorf("illegal transition %s -> %s for worker %q", w.status, to, name)
	}
	w.status = to
	return nil
}

// RecordError appends to the worker's bounded error log (most-recent-last).
// The oldest entries are dropped once the cap is reached; entries are never
// cleared on recovery.
func (f *Fleet) RecordError(name string, err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[name]
	if !ok {
		return
	}
	w.errLog = append(w.errLog, ErrorRecord{Time: time.Now(), Message: err.Error()})
	if len(w.errLog) > f.errorLogCap {
		w.errLog = w.errLog[len(w.errLog)-f.errorLogCap:]
	}
}

// Errors returns a copy of the worker's full error log.
func (f *Fleet) Errors(name string) []ErrorRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.workers[name]
	if !ok {
		return nil
	}
	out := make([]ErrorRecord, len(w.errLog))
	copy(out, w.errLog)
	return out
}

// SetAssignment stores the worker's assigned interval.
func (f *Fleet) SetAssignment(name string, iv keyspace.Interval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[name]
	if !ok {
		return fmt.Errorf("unknown worker %q", name)
	}
	w.assigned = iv
	return nil
}

// Assignment returns the worker's assigned interval, if one is set.
func (f *Fleet) Assignment(name string) (keyspace.Interval, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.workers[name]
	if !ok || w.assigned.IsZero() {
		return keyspace.Interval{}, false
	}
	return w.assigned, true
}

// UpdateMetrics records an observed metrics sample. The cumulative counter
// is monotone while running: a lower reading (e.g. a restarted solver) is
// kept only for throughput, not as a regression of keys checked.
func (f *Fleet) UpdateMetrics(name string, keysChecked uint64, keysPerSec float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[name]
	if !ok {
		return
	}
	if keysChecked > w.keysChecked {
		w.keysChecked = keysChecked
	}
	w.keysPerSec = keysPerSec
	w.lastObserved = time.Now()
}

// Touch records a successful observation without metric changes.
func (f *Fleet) Touch(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.workers[name]; ok {
		w.lastObserved = time.Now()
	}
}

// WithStatus returns names of workers currently in any of the given
// statuses, in registration order.
func (f *Fleet) WithStatus(statuses ...Status) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for _, name := range f.order {
		w := f.workers[name]
		for _, s := range statuses {
			if w.status == s {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// NonIdle returns names of all workers the health monitor should poll.
func (f *Fleet) NonIdle() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for _, name := range f.order {
		if f.workers[name].status != StatusIdle {
			out = append(out, name)
		}
	}
	return out
}

// Snapshot produces the derived fleet-wide aggregate: active-worker count,
// summed throughput and keys checked, per-worker views with their trailing
// error window, and the most recent errors across the fleet.
func (f *Fleet) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := Snapshot{
		Timestamp:    time.Now(),
		TotalWorkers: len(f.order),
	}

	var recent []ErrorRecord
	for _, name := range f.order {
		w := f.workers[name]
		v := w.view(perWorkerErrorWindow)
		snap.Workers = append(snap.Workers, v)
		recent = append(recent, v.RecentErrors...)

		if w.status == StatusRunning {
			snap.ActiveWorkers++
			snap.TotalKeysChecked += w.keysChecked
			snap.TotalKeysPerSec += w.keysPerSec
		}
	}

	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Time.Before(recent[j].Time) })
	if len(recent) > fleetErrorWindow {
		recent = recent[len(recent)-fleetErrorWindow:]
	}
	snap.RecentErrors = recent
	return snap
}
