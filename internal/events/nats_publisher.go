package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/keyfleet/internal/fleet"
)

// NATSPublisher publishes snapshots and worker events to NATS subjects
// under a configurable prefix (<prefix>.snapshot, <prefix>.worker).
type NATSPublisher struct {
	conn         *nats.Conn
	snapshotSubj string
	workerSubj   string
}

// NewNATSPublisher connects to the NATS server and prepares the subjects.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS publisher initialized",
		slog.String("url", url),
		slog.String("subject_prefix", subjectPrefix))

	return &NATSPublisher{
		conn:         conn,
		snapshotSubj: subjectPrefix + ".snapshot",
		workerSubj:   subjectPrefix + ".worker",
	}, nil
}

// PublishSnapshot publishes a fleet snapshot as JSON.
func (p *NATSPublisher) PublishSnapshot(snap fleet.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := p.conn.Publish(p.snapshotSubj, data); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// PublishWorkerEvent publishes a lifecycle transition as JSON.
func (p *NATSPublisher) PublishWorkerEvent(ev WorkerEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal worker event: %w", err)
	}
	if err := p.conn.Publish(p.workerSubj, data); err != nil {
		return fmt.Errorf("failed to publish worker event: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
