package fleet

import "time"

// Snapshot is a point-in-time, read-only aggregate of the whole fleet.
// It is recomputed on demand and never persisted; rendering is left to
// display/export collaborators.
type Snapshot struct {
	Timestamp        time.Time     `json:"timestamp"`
	TotalWorkers     int           `json:"total_workers"`
	ActiveWorkers    int           `json:"active_workers"`
	TotalKeysChecked uint64        `json:"total_keys_checked"`
	TotalKeysPerSec  float64       `json:"total_keys_per_sec"`
	Workers          []View        `json:"workers"`
	RecentErrors     []ErrorRecord `json:"recent_errors,omitempty"`
}
