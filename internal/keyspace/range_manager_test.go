package keyspace

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, start, end string, workers ...string) *RangeManager {
	t.Helper()
	total, err := ParseInterval(start, end)
	require.NoError(t, err)
	m, err := NewRangeManager(total)
	require.NoError(t, err)
	for _, w := range workers {
		m.Register(w)
	}
	return m
}

func TestAssign_PuzzleRangeFourWorkers(t *testing.T) {
	m := newManager(t, "0x20000000000000000", "0x3ffffffffffffffff", "w0", "w1", "w2", "w3")

	// Total size is 2^65, evenly divisible by 4: each worker gets 2^63 keys.
	first, err := m.Assign("w0", 4)
	require.NoError(t, err)
	assert.Equal(t, "0x20000000000000000", first.HexStart())
	assert.Equal(t, "0x27fffffffffffffff", first.HexEnd())

	last, err := m.Assign("w3", 4)
	require.NoError(t, err)
	assert.Equal(t, "0x38000000000000000", last.HexStart())
	assert.Equal(t, "0x3ffffffffffffffff", last.HexEnd())
}

func TestAssign_CoverageAndDisjointness(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7, 16} {
		t.Run(fmt.Sprintf("%d workers", n), func(t *testing.T) {
			total, err := ParseInterval("0x100", "0x2ff")
			require.NoError(t, err)
			m, err := NewRangeManager(total)
			require.NoError(t, err)

			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("worker-%d", i)
				m.Register(ids[i])
			}

			prev := new(big.Int).Sub(total.Start(), big.NewInt(1))
			for i, id := range ids {
				iv, err := m.Assign(id, n)
				require.NoError(t, err)

				// Each sub-interval starts exactly one past the previous end:
				// no gaps, no overlap.
				wantLo := new(big.Int).Add(prev, big.NewInt(1))
				assert.Equal(t, 0, iv.Start().Cmp(wantLo), "ordinal %d start", i)
				prev = iv.End()
			}
			assert.Equal(t, 0, prev.Cmp(total.End()), "union must reach the total end")
		})
	}
}

func TestAssign_Deterministic(t *testing.T) {
	m := newManager(t, "0x0", "0xfff", "a", "b", "c")

	first, err := m.Assign("b", 3)
	require.NoError(t, err)
	second, err := m.Assign("b", 3)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestAssign_RemainderAbsorbedByLastOrdinal(t *testing.T) {
	// 103 keys across 4 workers: size 25 each, last takes 28.
	m := newManager(t, "0", "102", "a", "b", "c", "d")

	sizes := make([]*big.Int, 0, 4)
	for _, id := range []string{"a", "b", "c", "d"} {
		iv, err := m.Assign(id, 4)
		require.NoError(t, err)
		sizes = append(sizes, iv.Size())
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, "25", sizes[i].String(), "ordinal %d", i)
	}
	assert.Equal(t, "28", sizes[3].String())
}

func TestAssign_RecomputeOnDifferentCount(t *testing.T) {
	m := newManager(t, "0", "99", "a", "b", "c", "d")

	before, err := m.Assign("a", 4)
	require.NoError(t, err)
	after, err := m.Assign("a", 2)
	require.NoError(t, err)

	assert.Equal(t, "25", before.Size().String())
	assert.Equal(t, "50", after.Size().String())

	got, ok := m.Assignment("a")
	require.True(t, ok)
	assert.True(t, got.Equal(after), "no partial carry-over of stale ranges")
}

func TestAssign_Errors(t *testing.T) {
	m := newManager(t, "0", "9", "a", "b")

	_, err := m.Assign("unknown", 2)
	require.Error(t, err)

	_, err = m.Assign("a", 0)
	require.Error(t, err)

	// Ordinal 1 does not fit into a single-worker partition.
	_, err = m.Assign("b", 1)
	require.Error(t, err)

	// More workers than keys leaves some workers with nothing to search.
	_, err = m.Assign("a", 20)
	require.Error(t, err)
}

func TestAssignAll_Rebalance(t *testing.T) {
	m := newManager(t, "0", "99", "a", "b")

	got, err := m.AssignAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "50", got["a"].Size().String())

	// Membership change: a third worker joins and everything is recomputed.
	m.Register("c")
	got, err = m.AssignAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "33", got["a"].Size().String())
	assert.Equal(t, "99", got["c"].End().String())
}

func TestRegister_Idempotent(t *testing.T) {
	m := newManager(t, "0", "99", "a")
	m.Register("a")
	m.Register("a")
	assert.Equal(t, 1, m.WorkerCount())
}

func TestMarkCompleted(t *testing.T) {
	m := newManager(t, "0", "99", "a", "b")
	_, err := m.AssignAll()
	require.NoError(t, err)

	assert.False(t, m.MarkCompleted("unknown"), "unassigned worker adds nothing")
	assert.True(t, m.MarkCompleted("a"))
	assert.False(t, m.MarkCompleted("a"), "idempotent")
	require.Len(t, m.Completed(), 1)

	assert.True(t, m.MarkCompleted("b"))
	assert.Len(t, m.Completed(), 2)
}
