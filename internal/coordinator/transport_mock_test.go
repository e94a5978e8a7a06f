package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"git.home.luguber.info/inful/keyfleet/internal/transport"
)

// mockTransport records calls and returns scripted results per worker and
// operation. Safe for concurrent use.
type mockTransport struct {
	mu    sync.Mutex
	calls []string

	connectErr map[string]error
	uploadErr  map[string]error
	startErr   map[string]error
	stopErr    map[string]error
	execErr    map[transport.Op]error
	execOut    map[transport.Op]string
	pollOut    map[string]string // per-worker poll stdout, overrides execOut

	execDelay   time.Duration
	inFlight    int
	maxInFlight int
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		connectErr: make(map[string]error),
		uploadErr:  make(map[string]error),
		startErr:   make(map[string]error),
		stopErr:    make(map[string]error),
		execErr:    make(map[transport.Op]error),
		execOut:    make(map[transport.Op]string),
		pollOut:    make(map[string]string),
	}
}

func (m *mockTransport) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockTransport) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockTransport) callsFor(worker string) []string {
	var out []string
	for _, c := range m.callLog() {
		if len(c) > len(worker) && c[len(c)-len(worker):] == worker {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockTransport) Connect(ctx context.Context, t transport.Target) error {
	m.record("connect:" + t.Name)
	return m.connectErr[t.Name]
}

func (m *mockTransport) UploadArtifacts(ctx context.Context, t transport.Target, files []string) error {
	m.record("upload:" + t.Name)
	return m.uploadErr[t.Name]
}

func (m *mockTransport) StartProcess(ctx context.Context, t transport.Target, cmd transport.Command) error {
	m.record("start:" + t.Name)
	return m.startErr[t.Name]
}

func (m *mockTransport) StopProcess(ctx context.Context, t transport.Target, process string) error {
	m.record("stop:" + t.Name)
	return m.stopErr[t.Name]
}

func (m *mockTransport) ExecCommand(ctx context.Context, t transport.Target, cmd transport.Command) (transport.ExecResult, error) {
	m.record(fmt.Sprintf("%s:%s", cmd.Op, t.Name))

	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.execDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
			return transport.ExecResult{}, ctx.Err()
		}
	}

	m.mu.Lock()
	m.inFlight--
	err := m.execErr[cmd.Op]
	out := m.execOut[cmd.Op]
	if cmd.Op == transport.OpPoll {
		if po, ok := m.pollOut[t.Name]; ok {
			out = po
		}
	}
	m.mu.Unlock()

	if err != nil {
		return transport.ExecResult{}, err
	}
	return transport.ExecResult{Stdout: out}, nil
}

var _ transport.Transport = (*mockTransport)(nil)
