package coordinator

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/keyfleet/internal/config"
	"git.home.luguber.info/inful/keyfleet/internal/logfields"
)

// membershipDebounce coalesces rapid editor write bursts into one reload.
const membershipDebounce = 2 * time.Second

// MembershipWatcher reloads the instances file on change and feeds new
// workers to the coordinator. Removals are ignored: workers leave the
// fleet only at teardown.
type MembershipWatcher struct {
	path        string
	coordinator *Coordinator
	watcher     *fsnotify.Watcher
	done        chan struct{}
}

// NewMembershipWatcher prepares a watcher for the given instances file.
func NewMembershipWatcher(path string, c *Coordinator) *MembershipWatcher {
	return &MembershipWatcher{
		path:        path,
		coordinator: c,
		done:        make(chan struct{}),
	}
}

// Start begins watching the instances file's directory. Watching the
// directory instead of the file survives the rename-replace dance most
// editors do on save.
func (w *MembershipWatcher) Start(group *WorkerGroup) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	slog.Info("Watching fleet membership", slog.String("file", w.path))
	group.Go(w.loop)
	return nil
}

// Stop halts the watcher.
func (w *MembershipWatcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *MembershipWatcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(membershipDebounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Membership watcher error", logfields.Error(err))
		}
	}
}

func (w *MembershipWatcher) reload() {
	descriptors, err := config.LoadInstances(w.path)
	if err != nil {
		slog.Warn("Membership reload failed",
			slog.String("file", w.path),
			logfields.Error(err))
		return
	}

	known := make(map[string]bool)
	for _, name := range w.coordinator.fleet.Names() {
		known[name] = true
	}

	added := 0
	for _, desc := range descriptors {
		if known[desc.Name] {
			continue
		}
		if err := w.coordinator.AddWorker(desc); err != nil {
			slog.Warn("Failed to add worker from membership file",
				logfields.Worker(desc.Name),
				logfields.Error(err))
			continue
		}
		added++
	}
	if added > 0 {
		slog.Info("Membership updated", logfields.WorkerCount(added))
	}
}
