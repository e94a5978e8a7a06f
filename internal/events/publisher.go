// Package events publishes fleet snapshots and worker lifecycle events for
// external display/export collaborators. The core never depends on how a
// consumer renders them.
package events

import (
	"time"

	"git.home.luguber.info/inful/keyfleet/internal/fleet"
)

// WorkerEvent describes one lifecycle transition observed by the coordinator.
type WorkerEvent struct {
	RunID     string    `json:"run_id"`
	Worker    string    `json:"worker"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the outbound event boundary. Publishing is best-effort:
// callers log failures and continue.
type Publisher interface {
	PublishSnapshot(snap fleet.Snapshot) error
	PublishWorkerEvent(ev WorkerEvent) error
	Close() error
}

// NoopPublisher is a Publisher that drops everything (default when events
// are not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishSnapshot(fleet.Snapshot) error { return nil }
func (NoopPublisher) PublishWorkerEvent(WorkerEvent) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
