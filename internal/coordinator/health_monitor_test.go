package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/keyfleet/internal/fleet"
	"git.home.luguber.info/inful/keyfleet/internal/metrics"
	"git.home.luguber.info/inful/keyfleet/internal/transport"
)

const aliveLine = "user 1234 0.5 bitcoin_puzzle_solver"

// runningFleet builds a fleet with every worker walked to running.
func runningFleet(t *testing.T, names ...string) *fleet.Fleet {
	t.Helper()
	fl := fleet.New(0)
	for _, n := range names {
		require.NoError(t, fl.Add(fleet.Descriptor{Name: n, Project: "p"}))
		for _, s := range []fleet.Status{fleet.StatusConnecting, fleet.StatusDeploying, fleet.StatusRunning} {
			require.NoError(t, fl.Transition(n, s))
		}
	}
	return fl
}

func newTestMonitor(fl *fleet.Fleet, mock *mockTransport, maxChecks int) *HealthMonitor {
	return NewHealthMonitor(fl, mock, metrics.NoopRecorder{},
		"bitcoin_puzzle_solver", "~/solver.log", 5,
		time.Hour, time.Second, maxChecks)
}

func TestSweep_MarksStoppedOnMarker(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = transport.NotRunningMarker

	var observed []string
	m := newTestMonitor(fl, mock, 4)
	m.notify = func(worker string, from, to fleet.Status, cause error) {
		observed = append(observed, worker+":"+string(from)+">"+string(to))
	}

	m.Sweep(context.Background())

	status, _ := fl.Status("alpha")
	assert.Equal(t, fleet.StatusStopped, status)
	assert.Equal(t, []string{"alpha:running>stopped"}, observed)
}

func TestSweep_PollErrorMarksFailed(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.execErr[transport.OpPoll] = errors.New("ssh broke")

	m := newTestMonitor(fl, mock, 4)
	m.Sweep(context.Background())

	status, _ := fl.Status("alpha")
	assert.Equal(t, fleet.StatusFailed, status)
	assert.NotEmpty(t, fl.Errors("alpha"))
}

func TestSweep_CheckTimeoutMarksFailed(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = aliveLine
	mock.execDelay = 200 * time.Millisecond

	m := NewHealthMonitor(fl, mock, metrics.NoopRecorder{},
		"bitcoin_puzzle_solver", "~/solver.log", 5,
		time.Hour, 20*time.Millisecond, 4)
	m.Sweep(context.Background())

	status, _ := fl.Status("alpha")
	assert.Equal(t, fleet.StatusFailed, status)

	errs := fl.Errors("alpha")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1].Message, "command_timeout")
}

func TestSweep_ShutdownCancellationDoesNotDemote(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = aliveLine
	mock.execDelay = 200 * time.Millisecond

	m := newTestMonitor(fl, mock, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Sweep(ctx)
		close(done)
	}()

	// Cancel while the check is in flight, as a shutdown signal would.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not drain")
	}

	// The worker was alive; an aborted check must not reclassify it or
	// pollute its error log.
	status, _ := fl.Status("alpha")
	assert.Equal(t, fleet.StatusRunning, status)
	assert.Empty(t, fl.Errors("alpha"))
}

func TestSweep_PollErrorOnStoppedWorker_NoTransition(t *testing.T) {
	fl := runningFleet(t, "alpha")
	require.NoError(t, fl.Transition("alpha", fleet.StatusStopped))

	mock := newMockTransport()
	mock.execErr[transport.OpPoll] = errors.New("ssh broke")

	m := newTestMonitor(fl, mock, 4)
	m.Sweep(context.Background())

	// The error is recorded but a stopped worker stays stopped; only the
	// restart sweep moves it forward.
	status, _ := fl.Status("alpha")
	assert.Equal(t, fleet.StatusStopped, status)
	assert.NotEmpty(t, fl.Errors("alpha"))
}

func TestSweep_AliveUpdatesMetrics(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = aliveLine
	mock.execOut[transport.OpLogTail] = "Stats | Total: 123456789 | Vitesse: 4521.5 k/s"

	m := newTestMonitor(fl, mock, 4)
	m.Sweep(context.Background())

	v, ok := fl.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, fleet.StatusRunning, v.Status)
	assert.Equal(t, uint64(123456789), v.KeysChecked)
	assert.InDelta(t, 4521.5, v.KeysPerSec, 0.001)
	assert.False(t, v.LastObserved.IsZero())
}

func TestSweep_TailFailureKeepsRunning(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = aliveLine
	mock.execErr[transport.OpLogTail] = errors.New("no such file")

	m := newTestMonitor(fl, mock, 4)
	m.Sweep(context.Background())

	status, _ := fl.Status("alpha")
	assert.Equal(t, fleet.StatusRunning, status)
}

func TestSweep_GarbledTailIsNonFatal(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = aliveLine
	mock.execOut[transport.OpLogTail] = "checkpoint written\nnothing to report"

	m := newTestMonitor(fl, mock, 4)
	m.Sweep(context.Background())

	v, _ := fl.Get("alpha")
	assert.Equal(t, fleet.StatusRunning, v.Status)
	assert.Zero(t, v.KeysChecked)
}

func TestSweep_SkipsIdleWorkers(t *testing.T) {
	fl := fleet.New(0)
	require.NoError(t, fl.Add(fleet.Descriptor{Name: "alpha", Project: "p"}))

	mock := newMockTransport()
	m := newTestMonitor(fl, mock, 4)
	m.Sweep(context.Background())

	assert.Empty(t, mock.callLog())
}

func TestSweep_BoundedConcurrency(t *testing.T) {
	names := []string{"w1", "w2", "w3", "w4", "w5", "w6"}
	fl := runningFleet(t, names...)

	mock := newMockTransport()
	mock.execDelay = 30 * time.Millisecond
	for _, n := range names {
		mock.pollOut[n] = aliveLine
	}

	m := newTestMonitor(fl, mock, 2)
	m.Sweep(context.Background())

	mock.mu.Lock()
	maxInFlight := mock.maxInFlight
	mock.mu.Unlock()
	assert.LessOrEqual(t, maxInFlight, 2)
	assert.Greater(t, maxInFlight, 0)
}

func TestRun_StopsOnSignal(t *testing.T) {
	fl := runningFleet(t, "alpha")
	mock := newMockTransport()
	mock.pollOut["alpha"] = aliveLine

	m := newTestMonitor(fl, mock, 4)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), stop)
		close(done)
	}()

	// The first sweep fires immediately.
	require.Eventually(t, func() bool {
		return len(mock.callLog()) > 0
	}, time.Second, 5*time.Millisecond)

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
