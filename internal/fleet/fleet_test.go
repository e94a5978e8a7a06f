package fleet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
)

func testFleet(t *testing.T, names ...string) *Fleet {
	t.Helper()
	f := New(0)
	for _, n := range names {
		require.NoError(t, f.Add(Descriptor{Name: n, Project: "proj-" + n, User: "solver"}))
	}
	return f
}

func TestAdd(t *testing.T) {
	t.Run("registers in order", func(t *testing.T) {
		f := testFleet(t, "b", "a", "c")
		assert.Equal(t, []string{"b", "a", "c"}, f.Names())
	})

	t.Run("rejects duplicate", func(t *testing.T) {
		f := testFleet(t, "a")
		require.Error(t, f.Add(Descriptor{Name: "a"}))
	})

	t.Run("rejects empty name", func(t *testing.T) {
		f := New(0)
		require.Error(t, f.Add(Descriptor{}))
	})

	t.Run("enforces capacity", func(t *testing.T) {
		f := New(2)
		require.NoError(t, f.Add(Descriptor{Name: "a"}))
		require.NoError(t, f.Add(Descriptor{Name: "b"}))
		require.Error(t, f.Add(Descriptor{Name: "c"}))
	})
}

func TestTransition(t *testing.T) {
	t.Run("full lifecycle", func(t *testing.T) {
		f := testFleet(t, "a")
		for _, to := range []Status{StatusConnecting, StatusDeploying, StatusRunning, StatusStopped, StatusConnecting, StatusDeploying, StatusRunning, StatusFailed, StatusConnecting} {
			require.NoError(t, f.Transition("a", to))
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		f := testFleet(t, "a")
		require.NoError(t, f.Transition("a", StatusIdle))
	})

	t.Run("worker never running cannot stop", func(t *testing.T) {
		f := testFleet(t, "a")
		require.Error(t, f.Transition("a", StatusStopped))

		require.NoError(t, f.Transition("a", StatusConnecting))
		require.Error(t, f.Transition("a", StatusStopped))

		require.NoError(t, f.Transition("a", StatusDeploying))
		require.Error(t, f.Transition("a", StatusStopped))
	})

	t.Run("connect failure during initial start returns to idle", func(t *testing.T) {
		f := testFleet(t, "a")
		require.NoError(t, f.Transition("a", StatusConnecting))
		require.NoError(t, f.Transition("a", StatusIdle))
	})

	t.Run("unknown worker", func(t *testing.T) {
		f := testFleet(t, "a")
		require.Error(t, f.Transition("nope", StatusConnecting))
	})
}

func TestRecordError(t *testing.T) {
	t.Run("bounded most-recent-last", func(t *testing.T) {
		f := testFleet(t, "a")
		for i := 0; i < DefaultErrorLogCap+5; i++ {
			f.RecordError("a", fmt.Errorf("err-%d", i))
		}
		log := f.Errors("a")
		require.Len(t, log, DefaultErrorLogCap)
		assert.Equal(t, fmt.Sprintf("err-%d", DefaultErrorLogCap+4), log[len(log)-1].Message)
		assert.Equal(t, "err-5", log[0].Message)
	})

	t.Run("nil error ignored", func(t *testing.T) {
		f := testFleet(t, "a")
		f.RecordError("a", nil)
		assert.Empty(t, f.Errors("a"))
	})
}

func TestAssignment(t *testing.T) {
	f := testFleet(t, "a")

	_, ok := f.Assignment("a")
	assert.False(t, ok, "no assignment until one is set")

	iv, err := keyspace.ParseInterval("0x10", "0x1f")
	require.NoError(t, err)
	require.NoError(t, f.SetAssignment("a", iv))

	got, ok := f.Assignment("a")
	require.True(t, ok)
	assert.True(t, got.Equal(iv))
}

func TestUpdateMetrics(t *testing.T) {
	f := testFleet(t, "a")

	f.UpdateMetrics("a", 100, 5.0)
	v, ok := f.Get("a")
	require.True(t, ok)
	assert.Equal(t, uint64(100), v.KeysChecked)
	assert.Equal(t, 5.0, v.KeysPerSec)
	assert.False(t, v.LastObserved.IsZero())

	// A lower cumulative reading never regresses the counter.
	f.UpdateMetrics("a", 50, 2.0)
	v, _ = f.Get("a")
	assert.Equal(t, uint64(100), v.KeysChecked)
	assert.Equal(t, 2.0, v.KeysPerSec)
}

func TestWithStatusAndNonIdle(t *testing.T) {
	f := testFleet(t, "a", "b", "c")
	require.NoError(t, f.Transition("b", StatusConnecting))
	require.NoError(t, f.Transition("c", StatusConnecting))
	require.NoError(t, f.Transition("c", StatusDeploying))
	require.NoError(t, f.Transition("c", StatusRunning))

	assert.Equal(t, []string{"a"}, f.WithStatus(StatusIdle))
	assert.Equal(t, []string{"c"}, f.WithStatus(StatusRunning))
	assert.Equal(t, []string{"b", "c"}, f.NonIdle())
}

func TestSnapshot(t *testing.T) {
	f := testFleet(t, "a", "b", "c")

	toRunning := func(name string) {
		require.NoError(t, f.Transition(name, StatusConnecting))
		require.NoError(t, f.Transition(name, StatusDeploying))
		require.NoError(t, f.Transition(name, StatusRunning))
	}
	toRunning("a")
	toRunning("b")

	f.UpdateMetrics("a", 100, 10)
	f.UpdateMetrics("b", 200, 20)
	f.UpdateMetrics("c", 999, 99) // idle worker does not count toward totals

	snap := f.Snapshot()
	assert.Equal(t, 3, snap.TotalWorkers)
	assert.Equal(t, 2, snap.ActiveWorkers)
	assert.Equal(t, uint64(300), snap.TotalKeysChecked)
	assert.Equal(t, 30.0, snap.TotalKeysPerSec)
	require.Len(t, snap.Workers, 3)
}

func TestSnapshotErrorWindows(t *testing.T) {
	f := testFleet(t, "a", "b", "c")

	// Each worker accumulates more errors than the per-worker window.
	for i := 0; i < 4; i++ {
		f.RecordError("a", fmt.Errorf("a-%d", i))
	}
	for i := 0; i < 3; i++ {
		f.RecordError("b", fmt.Errorf("b-%d", i))
	}
	f.RecordError("c", fmt.Errorf("c-0"))

	snap := f.Snapshot()

	// Per worker: only the last 2 surface.
	require.Len(t, snap.Workers[0].RecentErrors, 2)
	assert.Equal(t, "a-2", snap.Workers[0].RecentErrors[0].Message)
	assert.Equal(t, "a-3", snap.Workers[0].RecentErrors[1].Message)

	// Fleet-wide: at most 5, most recent overall; older ones stay in the
	// per-worker logs.
	require.Len(t, snap.RecentErrors, 5)
	assert.Len(t, f.Errors("a"), 4)
}
