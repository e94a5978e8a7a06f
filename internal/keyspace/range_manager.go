package keyspace

import (
	"fmt"
	"math/big"
	"sync"
)

// RangeManager deterministically partitions the total interval into N
// disjoint sub-intervals that cover it exactly. Ordinals come from worker
// registration order (stable and order-preserving); a hash of the identity
// is never used because it does not guarantee a bijection onto [0, N).
//
// All mutation is guarded by the manager's own mutex, independent of the
// fleet lock: assignment only happens at start or rebalance, and completion
// marking is append-only.
type RangeManager struct {
	mu        sync.Mutex
	total     Interval
	order     []string
	ordinals  map[string]int
	assigned  map[string]Interval
	completed []Interval
	doneBy    map[string]bool
}

// NewRangeManager creates a manager over the given total interval.
func NewRangeManager(total Interval) (*RangeManager, error) {
	if total.IsZero() {
		return nil, fmt.Errorf("total interval is required")
	}
	return &RangeManager{
		total:    total,
		ordinals: make(map[string]int),
		assigned: make(map[string]Interval),
		doneBy:   make(map[string]bool),
	}, nil
}

// Register records a worker identity in registration order. Registering the
// same identity twice keeps its original ordinal.
func (m *RangeManager) Register(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ordinals[workerID]; ok {
		return
	}
	m.ordinals[workerID] = len(m.order)
	m.order = append(m.order, workerID)
}

// Assign computes the sub-interval for workerID among workerCount workers:
//
//	size = (end - start + 1) / workerCount
//	lo   = start + ordinal*size
//	hi   = lo + size - 1, except the last ordinal which gets hi = end
//
// Integer division leaves a remainder of at most workerCount-1 keys, which
// the last ordinal absorbs. Calling Assign again with a different
// workerCount recomputes the assignment from scratch.
func (m *RangeManager) Assign(workerID string, workerCount int) (Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignLocked(workerID, workerCount)
}

func (m *RangeManager) assignLocked(workerID string, workerCount int) (Interval, error) {
	if workerCount < 1 {
		return Interval{}, fmt.Errorf("worker count must be >= 1, got %d", workerCount)
	}
	ordinal, ok := m.ordinals[workerID]
	if !ok {
		return Interval{}, fmt.Errorf("worker %q is not registered", workerID)
	}
	if ordinal >= workerCount {
		return Interval{}, fmt.Errorf("worker %q ordinal %d out of range for %d workers", workerID, ordinal, workerCount)
	}

	size := new(big.Int).Div(m.total.Size(), big.NewInt(int64(workerCount)))
	if size.Sign() == 0 {
		return Interval{}, fmt.Errorf("worker count %d exceeds keyspace size %s", workerCount, m.total.Size())
	}

	lo := new(big.Int).Mul(size, big.NewInt(int64(ordinal)))
	lo.Add(lo, m.total.Start())

	var hi *big.Int
	if ordinal == workerCount-1 {
		hi = m.total.End()
	} else {
		hi = new(big.Int).Add(lo, size)
		hi.Sub(hi, big.NewInt(1))
	}

	iv, err := NewInterval(lo, hi)
	if err != nil {
		return Interval{}, err
	}
	m.assigned[workerID] = iv
	return iv, nil
}

// AssignAll recomputes assignments for every registered worker using the
// current registration count. Used at fleet start and on rebalance; no
// stale ranges are carried over.
func (m *RangeManager) AssignAll() (map[string]Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.order)
	out := make(map[string]Interval, n)
	for _, id := range m.order {
		iv, err := m.assignLocked(id, n)
		if err != nil {
			return nil, err
		}
		out[id] = iv
	}
	return out, nil
}

// Assignment returns the worker's current assignment, if any.
func (m *RangeManager) Assignment(workerID string) (Interval, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.assigned[workerID]
	return iv, ok
}

// MarkCompleted appends the worker's currently assigned interval to the
// completion set. Idempotent per worker; reports whether anything was added.
func (m *RangeManager) MarkCompleted(workerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	iv, ok := m.assigned[workerID]
	if !ok || m.doneBy[workerID] {
		return false
	}
	m.doneBy[workerID] = true
	m.completed = append(m.completed, iv)
	return true
}

// Completed returns a copy of the completion set, in completion order.
func (m *RangeManager) Completed() []Interval {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Interval, len(m.completed))
	copy(out, m.completed)
	return out
}

// Total returns the full interval under management.
func (m *RangeManager) Total() Interval { return m.total }

// WorkerCount returns the number of registered workers.
func (m *RangeManager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
