// Package coordinator drives the fleet: it partitions the keyspace,
// walks each worker through connect/deploy/start, runs the health
// monitor, and periodically restarts stopped or failed workers.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/keyfleet/internal/config"
	kferrors "git.home.luguber.info/inful/keyfleet/internal/errors"
	"git.home.luguber.info/inful/keyfleet/internal/events"
	"git.home.luguber.info/inful/keyfleet/internal/fleet"
	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
	"git.home.luguber.info/inful/keyfleet/internal/logfields"
	"git.home.luguber.info/inful/keyfleet/internal/metrics"
	"git.home.luguber.info/inful/keyfleet/internal/retry"
	"git.home.luguber.info/inful/keyfleet/internal/transport"
)

// Options carries the coordinator's injected collaborators. Transport is
// required; Publisher and Metrics default to no-ops.
type Options struct {
	Transport transport.Transport
	Publisher events.Publisher
	Metrics   metrics.Recorder
}

// Coordinator owns the fleet lifecycle. All start sequences run on the
// coordinator's own goroutine (initial pass and restart sweeps are
// serialized by lifecycleMu), while the health monitor observes and
// demotes concurrently through the fleet's lock.
type Coordinator struct {
	cfg       *config.Config
	fleet     *fleet.Fleet
	ranges    *keyspace.RangeManager
	transport transport.Transport
	publisher events.Publisher
	rec       metrics.Recorder

	health    *HealthMonitor
	scheduler *Scheduler
	watcher   *MembershipWatcher
	group     WorkerGroup

	policy  retry.Policy
	running atomic.Bool
	runID   string
	stop    chan struct{}

	// lifecycleMu serializes whole start passes so a restart sweep never
	// interleaves with the initial rollout or a concurrent sweep.
	lifecycleMu sync.Mutex

	restartMu   sync.Mutex
	failures    map[string]int
	lastAttempt map[string]time.Time
}

// New builds a coordinator over the given membership. Ranges are not
// assigned until Start.
func New(cfg *config.Config, descriptors []fleet.Descriptor, opts Options) (*Coordinator, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("at least one worker is required")
	}

	total, err := cfg.TotalInterval()
	if err != nil {
		return nil, err
	}
	ranges, err := keyspace.NewRangeManager(total)
	if err != nil {
		return nil, err
	}

	fl := fleet.New(cfg.Fleet.MaxWorkers)
	for _, desc := range descriptors {
		if err := fl.Add(desc); err != nil {
			return nil, fmt.Errorf("failed to register worker: %w", err)
		}
		ranges.Register(desc.Name)
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	scheduler, err := NewScheduler()
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:         cfg,
		fleet:       fl,
		ranges:      ranges,
		transport:   opts.Transport,
		publisher:   publisher,
		rec:         rec,
		scheduler:   scheduler,
		policy:      retry.NewPolicy(cfg.Restart.Backoff, cfg.Restart.BackoffInitial.Std(), cfg.Restart.BackoffMax.Std()),
		stop:        make(chan struct{}),
		failures:    make(map[string]int),
		lastAttempt: make(map[string]time.Time),
	}

	c.health = NewHealthMonitor(fl, opts.Transport, rec,
		cfg.Solver.BinaryName, cfg.Solver.LogFile, cfg.Health.LogTailLines,
		cfg.Health.Interval.Std(), cfg.Health.CheckTimeout.Std(), cfg.Health.MaxConcurrentChecks)
	c.health.notify = c.publishTransition

	if cfg.Fleet.WatchMembers {
		c.watcher = NewMembershipWatcher(cfg.Fleet.InstancesFile, c)
	}

	return c, nil
}

// Fleet exposes the fleet for read-only consumers (status server).
func (c *Coordinator) Fleet() *fleet.Fleet { return c.fleet }

// Start assigns ranges, launches the health monitor and periodic jobs,
// then rolls out every idle worker sequentially. It blocks until Stop is
// called or ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("coordinator already running")
	}
	c.runID = uuid.NewString()

	slog.Info("Coordinator starting",
		logfields.RunID(c.runID),
		logfields.WorkerCount(c.fleet.Size()),
		logfields.Range(c.ranges.Total().String()))

	if err := c.assignAll(); err != nil {
		c.running.Store(false)
		return err
	}

	c.group.Go(func() { c.health.Run(ctx, c.stop) })

	if _, err := c.scheduler.ScheduleEvery("restart-sweep", c.cfg.Restart.Interval.Std(), func() {
		c.RestartSweep(ctx)
	}); err != nil {
		c.running.Store(false)
		return err
	}
	if _, err := c.scheduler.ScheduleEvery("snapshot-publish", c.cfg.Snapshot.Interval.Std(), c.publishSnapshot); err != nil {
		c.running.Store(false)
		return err
	}
	c.scheduler.Start()

	if c.watcher != nil {
		if err := c.watcher.Start(&c.group); err != nil {
			slog.Warn("Membership watcher unavailable", logfields.Error(err))
		}
	}

	c.initialRollout(ctx)

	select {
	case <-c.stop:
	case <-ctx.Done():
	}
	return nil
}

// initialRollout starts every idle worker in registration order, one at a
// time. A failure moves on to the next worker; the restart sweep retries
// later.
func (c *Coordinator) initialRollout(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	for _, name := range c.fleet.Names() {
		if !c.running.Load() || ctx.Err() != nil {
			return
		}
		status, _ := c.fleet.Status(name)
		if status != fleet.StatusIdle {
			continue
		}
		if err := c.startWorker(ctx, name, true); err != nil {
			slog.Warn("Worker rollout failed",
				logfields.Worker(name),
				logfields.Error(err))
		}
	}
}

// startWorker walks one worker through connect, deploy, and start. On an
// initial connect failure the worker returns to idle; on a restart it is
// marked failed so the next sweep backs off.
func (c *Coordinator) startWorker(ctx context.Context, name string, initial bool) error {
	desc, ok := c.fleet.Descriptor(name)
	if !ok {
		return fmt.Errorf("unknown worker %q", name)
	}
	target := toTarget(desc)

	iv, ok := c.fleet.Assignment(name)
	if !ok {
		return kferrors.New(kferrors.CategoryInternal, kferrors.SeverityError,
			fmt.Sprintf("worker %q has no assigned range", name))
	}

	from, _ := c.fleet.Status(name)
	if err := c.transitionTo(name, from, fleet.StatusConnecting, nil); err != nil {
		return err
	}

	slog.Info("Connecting to worker",
		logfields.Worker(name),
		logfields.Op("connect"))
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Connect.Std())
	err := c.transport.Connect(connectCtx, target)
	cancel()
	if err != nil {
		ferr := kferrors.ConnectError(err, name)
		c.fleet.RecordError(name, ferr)
		if initial {
			c.transitionTo(name, fleet.StatusConnecting, fleet.StatusIdle, ferr)
		} else {
			c.transitionTo(name, fleet.StatusConnecting, fleet.StatusFailed, ferr)
		}
		return ferr
	}

	if err := c.transitionTo(name, fleet.StatusConnecting, fleet.StatusDeploying, nil); err != nil {
		return err
	}

	slog.Info("Deploying artifacts",
		logfields.Worker(name),
		logfields.Op("deploy"),
		logfields.Range(iv.String()))
	uploadCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Upload.Std())
	err = c.transport.UploadArtifacts(uploadCtx, target,
		[]string{c.cfg.Solver.BinaryName, c.cfg.Solver.PuzzleFile})
	cancel()
	if err != nil {
		ferr := kferrors.UploadError(err, name)
		c.fleet.RecordError(name, ferr)
		c.transitionTo(name, fleet.StatusDeploying, fleet.StatusFailed, ferr)
		return ferr
	}

	payload := BuildPayload(c.cfg, name, iv)
	execCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Exec.Std())
	_, err = c.transport.ExecCommand(execCtx, target,
		transport.WriteRemoteFile(c.cfg.Solver.ConfigFile, payload))
	cancel()
	if err != nil {
		ferr := kferrors.UploadError(err, name)
		c.fleet.RecordError(name, ferr)
		c.transitionTo(name, fleet.StatusDeploying, fleet.StatusFailed, ferr)
		return ferr
	}

	startCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Exec.Std())
	err = c.transport.StartProcess(startCtx, target,
		transport.StartSolver(c.cfg.Solver.BinaryName, c.cfg.Solver.LogFile, c.cfg.Solver.PidFile))
	cancel()
	if err != nil {
		ferr := kferrors.ProcessStartError(err, name)
		c.fleet.RecordError(name, ferr)
		c.transitionTo(name, fleet.StatusDeploying, fleet.StatusFailed, ferr)
		return ferr
	}

	if err := c.transitionTo(name, fleet.StatusDeploying, fleet.StatusRunning, nil); err != nil {
		return err
	}
	slog.Info("Worker running",
		logfields.Worker(name),
		logfields.Range(iv.String()))
	return nil
}

// RestartSweep re-attempts every stopped, failed, or still-idle worker,
// honoring per-worker backoff. Assignments are reused as-is: a restarted
// worker continues on the range it already owns.
func (c *Coordinator) RestartSweep(ctx context.Context) {
	if !c.running.Load() {
		return
	}
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	candidates := c.fleet.WithStatus(fleet.StatusIdle, fleet.StatusStopped, fleet.StatusFailed)
	if len(candidates) == 0 {
		return
	}
	slog.Info("Restart sweep",
		logfields.RunID(c.runID),
		logfields.WorkerCount(len(candidates)))

	for _, name := range candidates {
		if !c.running.Load() || ctx.Err() != nil {
			return
		}
		if !c.dueForRestart(name) {
			continue
		}

		status, _ := c.fleet.Status(name)
		initial := status == fleet.StatusIdle

		err := c.startWorker(ctx, name, initial)
		c.recordAttempt(name, err == nil)
		c.rec.IncRestartAttempt(err == nil)
		if err != nil {
			slog.Warn("Restart attempt failed",
				logfields.Worker(name),
				logfields.Error(err))
		}
	}
}

func (c *Coordinator) dueForRestart(name string) bool {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()
	fails := c.failures[name]
	if fails == 0 {
		return true
	}
	return time.Since(c.lastAttempt[name]) >= c.policy.Delay(fails)
}

func (c *Coordinator) recordAttempt(name string, success bool) {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()
	c.lastAttempt[name] = time.Now()
	if success {
		delete(c.failures, name)
	} else {
		c.failures[name]++
	}
}

// Rebalance recomputes every worker's range for the current membership.
// Running workers keep solving their old range until their next restart.
func (c *Coordinator) Rebalance() error {
	assignments, err := c.ranges.AssignAll()
	if err != nil {
		return err
	}
	for name, iv := range assignments {
		if err := c.fleet.SetAssignment(name, iv); err != nil {
			return err
		}
	}
	slog.Info("Ranges rebalanced", logfields.WorkerCount(len(assignments)))
	return nil
}

// AddWorker registers a new member at runtime and rebalances. Called by
// the membership watcher.
func (c *Coordinator) AddWorker(desc fleet.Descriptor) error {
	if err := c.fleet.Add(desc); err != nil {
		return err
	}
	c.ranges.Register(desc.Name)
	if err := c.Rebalance(); err != nil {
		return err
	}
	slog.Info("Worker joined", logfields.Worker(desc.Name))
	return nil
}

// Stop halts periodic work, stops running solvers best effort, and waits
// for in-flight health checks bounded by ctx.
func (c *Coordinator) Stop(ctx context.Context) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	slog.Info("Coordinator stopping", logfields.RunID(c.runID))
	close(c.stop)

	if c.watcher != nil {
		c.watcher.Stop()
	}
	if err := c.scheduler.Stop(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}

	for _, name := range c.fleet.WithStatus(fleet.StatusRunning) {
		desc, ok := c.fleet.Descriptor(name)
		if !ok {
			continue
		}
		stopCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Stop.Std())
		err := c.transport.StopProcess(stopCtx, toTarget(desc), c.cfg.Solver.BinaryName)
		cancel()
		if err != nil {
			ferr := kferrors.ShutdownError(err, name)
			c.fleet.RecordError(name, ferr)
			slog.Warn("Failed to stop solver",
				logfields.Worker(name),
				logfields.Error(err))
			continue
		}
		c.transitionTo(name, fleet.StatusRunning, fleet.StatusStopped, nil)
	}

	if err := c.group.StopAndWait(ctx); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	if err := c.publisher.Close(); err != nil {
		slog.Warn("Event publisher close failed", logfields.Error(err))
	}
	slog.Info("Coordinator stopped", logfields.RunID(c.runID))
	return nil
}

func (c *Coordinator) assignAll() error {
	assignments, err := c.ranges.AssignAll()
	if err != nil {
		return fmt.Errorf("range assignment failed: %w", err)
	}
	for name, iv := range assignments {
		if err := c.fleet.SetAssignment(name, iv); err != nil {
			return err
		}
		slog.Info("Range assigned",
			logfields.Worker(name),
			logfields.Range(iv.String()))
	}
	return nil
}

// transitionTo applies a lifecycle edge and fans out to metrics and the
// event publisher.
func (c *Coordinator) transitionTo(name string, from, to fleet.Status, cause error) error {
	if err := c.fleet.Transition(name, to); err != nil {
		return err
	}
	c.rec.IncTransition(string(to))
	c.publishTransition(name, from, to, cause)
	return nil
}

func (c *Coordinator) publishTransition(name string, from, to fleet.Status, cause error) {
	ev := events.WorkerEvent{
		RunID:     c.runID,
		Worker:    name,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := c.publisher.PublishWorkerEvent(ev); err != nil {
		slog.Debug("Worker event publish failed",
			logfields.Worker(name),
			logfields.Error(err))
	}
}

func (c *Coordinator) publishSnapshot() {
	snap := c.fleet.Snapshot()
	c.rec.SetActiveWorkers(snap.ActiveWorkers)
	c.rec.SetFleetKeysPerSec(snap.TotalKeysPerSec)
	c.rec.SetFleetKeysChecked(float64(snap.TotalKeysChecked))
	if err := c.publisher.PublishSnapshot(snap); err != nil {
		slog.Debug("Snapshot publish failed", logfields.Error(err))
	}
}
