// Package watch runs the save-directory watcher: filesystem events in,
// snapshots out. Events flow through a bounded intake queue into a
// single worker, which keeps snapshot writes for a profile strictly
// ordered without holding fsnotify's delivery goroutine hostage.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/savesentry/savesentry/internal/bus"
	"github.com/savesentry/savesentry/internal/capture"
	"github.com/savesentry/savesentry/internal/detect"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
)

const (
	defaultQueueSize    = 256
	defaultRearmDelay   = 2 * time.Second
	defaultPollInterval = time.Second
)

// qualifyingOps are the fsnotify operations that can change save file
// content. Chmod is deliberately absent.
const qualifyingOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename

// Watcher observes a save directory and maintains the snapshot store.
type Watcher struct {
	saveDir  string
	store    *store.Store
	detector *detect.Detector
	capturer capture.Capturer
	events   *bus.Bus
	logger   *slog.Logger

	queueSize    int
	rearmDelay   time.Duration
	pollInterval time.Duration

	enabled atomic.Bool
	queue   chan fsnotify.Event
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithCapture sets the screenshot capturer used for new snapshots.
func WithCapture(c capture.Capturer) Option {
	return func(w *Watcher) {
		w.capturer = c
	}
}

// WithBus publishes watcher notifications to b.
func WithBus(b *bus.Bus) Option {
	return func(w *Watcher) {
		w.events = b
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithQueueSize bounds the intake queue. When the queue is full the
// oldest pending event is dropped; the newest state of a save file is
// what matters, not the history of writes that led there.
func WithQueueSize(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// New creates a Watcher over saveDir. Snapshotting starts enabled.
func New(saveDir string, s *store.Store, d *detect.Detector, opts ...Option) *Watcher {
	w := &Watcher{
		saveDir:      saveDir,
		store:        s,
		detector:     d,
		capturer:     capture.Disabled{},
		logger:       slog.Default(),
		queueSize:    defaultQueueSize,
		rearmDelay:   defaultRearmDelay,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan fsnotify.Event, w.queueSize)
	w.enabled.Store(true)
	return w
}

// Enable resumes automatic snapshotting.
func (w *Watcher) Enable() {
	if !w.enabled.Swap(true) {
		w.logger.Info("snapshotting enabled")
	}
}

// Disable pauses automatic snapshotting. Events are still observed and
// debounced so that re-enabling does not misclassify the next save.
func (w *Watcher) Disable() {
	if w.enabled.Swap(false) {
		w.logger.Info("snapshotting disabled")
	}
}

// Enabled reports whether automatic snapshotting is active.
func (w *Watcher) Enabled() bool {
	return w.enabled.Load()
}

// Run watches the save directory until ctx is cancelled. A failing
// watch is re-armed: the broken fsnotify watcher is discarded, a
// WatchDegraded event is published, and a fresh watcher is created
// after a short delay. A save directory that is transiently absent,
// such as mid-replacement by a cloud sync, keeps the re-arm loop
// retrying rather than aborting. Run returns nil on cancellation and
// an error only when a watcher cannot be created at all.
func (w *Watcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()
	defer wg.Wait()

	for {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "creating watcher")
		}
		if err = fw.Add(w.saveDir); err != nil {
			err = errors.Wrapf(err, "watching %s", w.saveDir)
		} else {
			w.logger.Info("watching save directory", "dir", w.saveDir)
			err = w.pump(ctx, fw)
		}
		fw.Close()
		if ctx.Err() != nil {
			return nil
		}

		w.logger.Warn("watch degraded, re-arming", "error", err)
		if w.events != nil {
			w.events.Publish(bus.Event{Kind: bus.WatchDegraded, Err: err})
		}
		select {
		case <-time.After(w.rearmDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

// pump moves fsnotify events into the intake queue. It returns when the
// watcher breaks or ctx is cancelled. Losing the watch root is a break:
// fsnotify drops the watch without closing its channels when the
// watched directory is removed, so the root is also polled to catch a
// replacement that never produced an event.
func (w *Watcher) pump(ctx context.Context, fw *fsnotify.Watcher) error {
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			if ev.Name == w.saveDir && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return errors.Newf("watch root lost: %s", ev.Op)
			}
			if ev.Op&qualifyingOps == 0 {
				continue
			}
			w.enqueue(ev)
		case <-poll.C:
			if _, err := os.Stat(w.saveDir); err != nil {
				return errors.Wrap(err, "watch root unreachable")
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			return errors.Wrap(err, "watch error")
		}
	}
}

// enqueue adds an event to the intake queue, dropping the oldest
// pending event when full.
func (w *Watcher) enqueue(ev fsnotify.Event) {
	select {
	case w.queue <- ev:
		return
	default:
	}

	select {
	case old := <-w.queue:
		w.logger.Warn("intake queue full, dropping oldest event", "dropped", old.Name)
	default:
	}
	select {
	case w.queue <- ev:
	default:
	}
}

// worker is the single consumer of the intake queue.
func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.queue:
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	id, err := profile.Resolve(ev.Name)
	if err != nil {
		w.logger.Debug("ignoring non-save file", "path", ev.Name)
		return
	}
	log := w.logger.With("profile", int(id))

	// Decide even while disabled, so the debounce window tracks reality
	// and re-enabling does not turn a mid-burst write into a new
	// generation.
	action := w.detector.Decide(id)
	if !w.enabled.Load() {
		log.Debug("snapshotting disabled, skipping", "path", ev.Name)
		return
	}

	files, err := profile.FindSaveSet(w.saveDir, id)
	if err != nil {
		log.Warn("reading save set", "error", err)
		return
	}
	if len(files) == 0 {
		log.Debug("no save files present yet")
		return
	}

	if action == detect.Amend {
		w.amend(id, files, log)
		return
	}
	w.create(ctx, id, files, log)
}

func (w *Watcher) create(ctx context.Context, id profile.ID, files []string, log *slog.Logger) {
	snap, err := w.store.Create(id, files)
	if err != nil {
		log.Error("creating snapshot", "error", err)
		return
	}
	log.Info("snapshot created", "snapshot", snap.ID, "files", len(files))
	if w.events != nil {
		w.events.Publish(bus.Event{Kind: bus.SnapshotCreated, Profile: id, SnapshotID: snap.ID})
	}
	w.screenshot(ctx, id, snap, log)
}

func (w *Watcher) amend(id profile.ID, files []string, log *slog.Logger) {
	snaps, err := w.store.List(id)
	if err != nil || len(snaps) == 0 {
		// Nothing to amend, likely a store wiped mid-session. Fall back
		// to creating a generation so the save is not lost.
		snap, err := w.store.Create(id, files)
		if err != nil {
			log.Error("creating snapshot", "error", err)
			return
		}
		log.Info("snapshot created", "snapshot", snap.ID, "files", len(files))
		if w.events != nil {
			w.events.Publish(bus.Event{Kind: bus.SnapshotCreated, Profile: id, SnapshotID: snap.ID})
		}
		return
	}

	target := snaps[0]
	snap, err := w.store.Amend(id, target.ID, files)
	if err != nil {
		log.Error("amending snapshot", "snapshot", target.ID, "error", err)
		return
	}
	log.Info("snapshot amended", "snapshot", snap.ID)
	if w.events != nil {
		w.events.Publish(bus.Event{Kind: bus.SnapshotAmended, Profile: id, SnapshotID: snap.ID})
	}
}

// screenshot captures a screen image next to a new snapshot. Failure is
// never fatal; a snapshot without an image is still a snapshot.
func (w *Watcher) screenshot(ctx context.Context, id profile.ID, snap *store.Snapshot, log *slog.Logger) {
	dest := filepath.Join(snap.Path, store.ScreenshotName)
	if err := w.capturer.CaptureTo(ctx, dest); err != nil {
		if !errors.Is(err, capture.ErrDisabled) {
			log.Warn("screenshot capture failed", "snapshot", snap.ID, "error", err)
		}
		return
	}
	if err := w.store.AttachScreenshot(id, snap.ID, store.ScreenshotName); err != nil {
		log.Warn("attaching screenshot", "snapshot", snap.ID, "error", err)
	}
}
