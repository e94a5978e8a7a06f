package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerGroup_GoAndWait(t *testing.T) {
	var g WorkerGroup
	done := make(chan struct{})

	started := g.Go(func() { close(done) })
	require.True(t, started)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
	require.NoError(t, g.StopAndWait(context.Background()))
}

func TestWorkerGroup_RejectsAfterStop(t *testing.T) {
	var g WorkerGroup
	require.NoError(t, g.StopAndWait(context.Background()))
	assert.False(t, g.Go(func() {}))
	assert.False(t, g.Go(nil))
}

func TestWorkerGroup_WaitTimesOut(t *testing.T) {
	var g WorkerGroup
	release := make(chan struct{})
	g.Go(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := g.StopAndWait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
