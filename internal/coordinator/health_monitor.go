package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kferrors "git.home.luguber.info/inful/keyfleet/internal/errors"
	"git.home.luguber.info/inful/keyfleet/internal/fleet"
	"git.home.luguber.info/inful/keyfleet/internal/logfields"
	"git.home.luguber.info/inful/keyfleet/internal/metrics"
	"git.home.luguber.info/inful/keyfleet/internal/stats"
	"git.home.luguber.info/inful/keyfleet/internal/transport"
)

// HealthMonitor polls every non-idle worker at a fixed interval. Checks
// within a sweep run concurrently under a bounded semaphore, each with its
// own timeout shorter than the sweep interval, and the sweep waits for all
// of them before the next tick.
type HealthMonitor struct {
	fleet     *fleet.Fleet
	transport transport.Transport
	rec       metrics.Recorder

	binary    string
	logFile   string
	tailLines int

	interval     time.Duration
	checkTimeout time.Duration
	maxChecks    int

	// notify is invoked after every status change the monitor performs,
	// outside the fleet lock. Set by the coordinator.
	notify func(worker string, from, to fleet.Status, cause error)
}

// NewHealthMonitor wires a monitor over the fleet and transport.
func NewHealthMonitor(fl *fleet.Fleet, tr transport.Transport, rec metrics.Recorder,
	binary, logFile string, tailLines int,
	interval, checkTimeout time.Duration, maxChecks int) *HealthMonitor {
	if maxChecks <= 0 {
		maxChecks = 1
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &HealthMonitor{
		fleet:        fl,
		transport:    tr,
		rec:          rec,
		binary:       binary,
		logFile:      logFile,
		tailLines:    tailLines,
		interval:     interval,
		checkTimeout: checkTimeout,
		maxChecks:    maxChecks,
	}
}

// Run sweeps immediately and then on every tick until stop closes or ctx
// is cancelled. Sweeps never overlap: the next tick is consumed only after
// the previous sweep has fully drained.
func (h *HealthMonitor) Run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		h.Sweep(ctx)
		select {
		case <-ticker.C:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep checks all non-idle workers concurrently and waits for completion.
func (h *HealthMonitor) Sweep(ctx context.Context) {
	names := h.fleet.NonIdle()
	if len(names) == 0 {
		return
	}

	sweepID := uuid.NewString()[:8]
	start := time.Now()
	slog.Debug("Health sweep starting",
		logfields.SweepID(sweepID),
		logfields.WorkerCount(len(names)))

	sem := make(chan struct{}, h.maxChecks)
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			h.checkWorker(ctx, name, sweepID)
		}(name)
	}
	wg.Wait()

	h.rec.ObserveSweepDuration(time.Since(start))
	slog.Debug("Health sweep finished",
		logfields.SweepID(sweepID),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}

func (h *HealthMonitor) checkWorker(ctx context.Context, name, sweepID string) {
	desc, ok := h.fleet.Descriptor(name)
	if !ok {
		return
	}
	target := toTarget(desc)

	start := time.Now()
	defer func() { h.rec.ObserveCheckDuration(name, time.Since(start)) }()

	pollCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	res, err := h.transport.ExecCommand(pollCtx, target, transport.PollProcess(h.binary))
	cancel()

	statusBefore, _ := h.fleet.Status(name)

	if err != nil {
		// A cancelled parent context means the coordinator is shutting
		// down, not that the worker is unhealthy. Leave the worker as it
		// was so the stop pass still sees it running.
		if ctx.Err() != nil {
			return
		}
		var ferr error
		if pollCtx.Err() == context.DeadlineExceeded {
			ferr = kferrors.CommandTimeoutError(err, name)
		} else {
			ferr = kferrors.ConnectError(err, name)
		}
		h.fleet.RecordError(name, ferr)
		h.rec.IncCheckResult(metrics.CheckFailed)
		slog.Warn("Health check failed",
			logfields.SweepID(sweepID),
			logfields.Worker(name),
			logfields.Error(ferr))
		if statusBefore == fleet.StatusRunning {
			h.transition(name, statusBefore, fleet.StatusFailed, ferr)
		}
		return
	}

	if strings.Contains(res.Stdout, transport.NotRunningMarker) {
		h.rec.IncCheckResult(metrics.CheckStopped)
		if statusBefore == fleet.StatusRunning {
			slog.Info("Solver process gone",
				logfields.SweepID(sweepID),
				logfields.Worker(name))
			h.transition(name, statusBefore, fleet.StatusStopped, nil)
		}
		return
	}

	// Process is alive. Metrics are best effort: a missing or garbled log
	// line must not fail the check.
	h.fleet.Touch(name)
	h.rec.IncCheckResult(metrics.CheckAlive)
	h.collectStats(ctx, name, target, sweepID)
}

func (h *HealthMonitor) collectStats(ctx context.Context, name string, target transport.Target, sweepID string) {
	tailCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	res, err := h.transport.ExecCommand(tailCtx, target, transport.TailLog(h.logFile, h.tailLines))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ferr := kferrors.StatusParseError(err, name)
		h.fleet.RecordError(name, ferr)
		slog.Debug("Log tail failed",
			logfields.SweepID(sweepID),
			logfields.Worker(name),
			logfields.Error(err))
		return
	}

	sample, err := stats.Parse(res.Stdout)
	if err != nil {
		slog.Debug("No stats in log tail",
			logfields.SweepID(sweepID),
			logfields.Worker(name),
			logfields.Error(err))
		return
	}
	h.fleet.UpdateMetrics(name, sample.KeysChecked, sample.KeysPerSec)
}

func (h *HealthMonitor) transition(name string, from, to fleet.Status, cause error) {
	if err := h.fleet.Transition(name, to); err != nil {
		slog.Warn("Health transition rejected",
			logfields.Worker(name),
			logfields.Error(err))
		return
	}
	h.rec.IncTransition(string(to))
	if h.notify != nil {
		h.notify(name, from, to, cause)
	}
}

func toTarget(desc fleet.Descriptor) transport.Target {
	return transport.Target{
		Name:    desc.Name,
		Project: desc.Project,
		Zone:    desc.Zone,
		User:    desc.User,
	}
}
