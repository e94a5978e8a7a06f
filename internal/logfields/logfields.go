package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyWorker     = "worker"
	KeyStatus     = "worker_status"
	KeyRange      = "range"
	KeySweepID    = "sweep_id"
	KeyRunID      = "run_id"
	KeyOp         = "op"
	KeyDurationMS = "duration_ms"
	KeyWorkers    = "workers"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Worker(name string) slog.Attr    { return slog.String(KeyWorker, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Range(r string) slog.Attr        { return slog.String(KeyRange, r) }
func SweepID(id string) slog.Attr     { return slog.String(KeySweepID, id) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func WorkerCount(n int) slog.Attr     { return slog.Int(KeyWorkers, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
