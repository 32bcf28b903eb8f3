// Package restore orchestrates a safe restore of a snapshot over the
// live save files: pre-flight liveness check, backup-before-overwrite,
// atomic replacement, verification, and rollback on partial failure.
package restore

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/savesentry/savesentry/internal/bus"
	"github.com/savesentry/savesentry/internal/game"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

// Failure conditions reported by Restore.
var (
	// ErrGameRunning means preflight found the game process alive; no
	// live file was touched. The caller decides whether to prompt and
	// retry; the coordinator never waits internally.
	ErrGameRunning = errors.New("game is running")

	// ErrVerifyMismatch means a restored live file does not match the
	// snapshot's recorded metadata.
	ErrVerifyMismatch = errors.New("restored files do not match snapshot")

	// ErrCriticalInconsistency means a rollback failed after a partial
	// replace. The live directory may mix old and new files; the live
	// backup is preserved for manual recovery. Never silent.
	ErrCriticalInconsistency = errors.New("live save state inconsistent")
)

// Result describes the outcome of one restore attempt.
type Result struct {
	State      State
	Profile    profile.ID
	SnapshotID string
}

// Coordinator performs restores. Operations on the same profile are
// serialized through the store's per-profile lock, so a restore never
// interleaves with a snapshot write for that profile.
type Coordinator struct {
	store       *store.Store
	liveness    game.Liveness
	saveDir     string
	processName string
	events      *bus.Bus
	logger      *slog.Logger

	// copyFile is a seam for fault-injection tests.
	copyFile func(src, dst string) (string, int64, fs.FileMode, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBus publishes restore notifications to b.
func WithBus(b *bus.Bus) Option {
	return func(c *Coordinator) {
		c.events = b
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a Coordinator restoring into saveDir.
func New(s *store.Store, liveness game.Liveness, saveDir, processName string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       s,
		liveness:    liveness,
		saveDir:     saveDir,
		processName: processName,
		logger:      slog.Default(),
		copyFile:    fileutil.AtomicCopyFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore replaces the profile's live save files with the snapshot's.
// The returned Result always carries the terminal state; err is nil only
// for DONE. Cancellation via ctx is honored during preflight only; once
// backing up has begun the restore runs to a terminal state.
func (c *Coordinator) Restore(ctx context.Context, id profile.ID, snapshotID string) (*Result, error) {
	res := &Result{State: StateIdle, Profile: id, SnapshotID: snapshotID}
	log := c.logger.With("profile", int(id), "snapshot", snapshotID)

	// PREFLIGHT: one synchronous liveness query per attempt.
	res.State = StatePreflight
	running, err := c.liveness.IsRunning(ctx, c.processName)
	if err != nil {
		res.State = StateAborted
		return res, errors.Wrap(err, "preflight liveness check")
	}
	if running {
		res.State = StateAborted
		log.Warn("restore aborted in preflight", "process", c.processName)
		return res, errors.Wrapf(ErrGameRunning, "%s", c.processName)
	}
	if err := ctx.Err(); err != nil {
		res.State = StateAborted
		return res, errors.Wrap(err, "restore cancelled")
	}

	err = c.store.WithProfileLock(id, func() error {
		return c.run(res, log, id, snapshotID)
	})
	if err != nil {
		return res, err
	}

	log.Info("restore completed", "state", res.State.String())
	if c.events != nil {
		c.events.Publish(bus.Event{Kind: bus.RestoreCompleted, Profile: id, SnapshotID: snapshotID})
	}
	return res, nil
}

// run executes the locked portion of the state machine.
func (c *Coordinator) run(res *Result, log *slog.Logger, id profile.ID, snapshotID string) error {
	snap, err := c.store.Get(id, snapshotID)
	if err != nil {
		res.State = StateAborted
		return err
	}

	// BACKING_UP: single-slot copy of the live save set. A failure here
	// leaves the live files untouched; there is nothing to roll back.
	res.State = StateBackingUp
	backupDir, backedUp, err := c.backupLive(id)
	if err != nil {
		res.State = StateFailed
		return errors.Wrap(err, "backing up live save files")
	}
	log.Debug("live backup written", "dir", backupDir, "files", len(backedUp))

	// REPLACING: file-by-file atomic copy of the snapshot over the live set.
	res.State = StateReplacing
	for _, f := range snap.Files {
		src := filepath.Join(snap.Path, f.Name)
		dst := filepath.Join(c.saveDir, f.Name)
		if _, _, _, err := c.copyFile(src, dst); err != nil {
			return c.fail(res, log, id, backupDir, backedUp,
				errors.Wrapf(err, "replacing %s", f.Name))
		}
	}

	// VERIFYING: live files must match the snapshot's recorded metadata.
	res.State = StateVerifying
	for _, f := range snap.Files {
		if err := verifyFile(filepath.Join(c.saveDir, f.Name), f); err != nil {
			return c.fail(res, log, id, backupDir, backedUp, err)
		}
	}

	res.State = StateDone
	return nil
}

// fail handles a failure during REPLACING or VERIFYING: roll the live
// directory back to the pre-restore backup, or escalate to
// CriticalInconsistency when the rollback itself fails.
func (c *Coordinator) fail(res *Result, log *slog.Logger, id profile.ID, backupDir string, backedUp []string, cause error) error {
	stage := res.State
	res.State = StateFailed
	log.Error("restore failed, rolling back", "stage", stage.String(), "error", cause)

	if err := c.rollback(id, backupDir, backedUp); err != nil {
		res.State = StateInconsistent
		log.Error("rollback failed, live state may be inconsistent",
			"backup_dir", backupDir, "error", err)
		return errors.Mark(
			errors.Wrapf(err, "rollback failed after: %v (live backup preserved at %s)", cause, backupDir),
			ErrCriticalInconsistency)
	}

	res.State = StateRolledBack
	return errors.Wrap(cause, "restore rolled back")
}

// backupLive copies the profile's current live save set into its
// single-slot backup directory, staged and renamed so an interrupted
// backup never leaves a half-written slot. Returns the slot path and the
// names that were backed up.
func (c *Coordinator) backupLive(id profile.ID) (string, []string, error) {
	liveFiles, err := profile.FindSaveSet(c.saveDir, id)
	if err != nil {
		return "", nil, err
	}

	slot := store.LiveBackupDir(c.store.Root(), id)
	stage := slot + ".staging"
	os.RemoveAll(stage)
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", nil, errors.Wrap(err, "creating backup staging directory")
	}

	names := make([]string, 0, len(liveFiles))
	for _, src := range liveFiles {
		name := filepath.Base(src)
		if _, _, _, err := c.copyFile(src, filepath.Join(stage, name)); err != nil {
			os.RemoveAll(stage)
			return "", nil, errors.Wrapf(err, "backing up %s", name)
		}
		names = append(names, name)
	}

	// Supersede the previous slot.
	if err := os.RemoveAll(slot); err != nil {
		os.RemoveAll(stage)
		return "", nil, errors.Wrap(err, "clearing previous backup slot")
	}
	if err := os.Rename(stage, slot); err != nil {
		os.RemoveAll(stage)
		return "", nil, errors.Wrap(err, "publishing backup slot")
	}
	return slot, names, nil
}

// rollback returns the live directory to its pre-restore state: save
// files the restore introduced are removed, then every backed-up file is
// copied back.
func (c *Coordinator) rollback(id profile.ID, backupDir string, backedUp []string) error {
	inBackup := make(map[string]bool, len(backedUp))
	for _, name := range backedUp {
		inBackup[name] = true
	}

	liveFiles, err := profile.FindSaveSet(c.saveDir, id)
	if err != nil {
		return err
	}
	for _, f := range liveFiles {
		if !inBackup[filepath.Base(f)] {
			if err := os.Remove(f); err != nil {
				return errors.Wrapf(err, "removing %s", filepath.Base(f))
			}
		}
	}

	for _, name := range backedUp {
		src := filepath.Join(backupDir, name)
		dst := filepath.Join(c.saveDir, name)
		if _, _, _, err := c.copyFile(src, dst); err != nil {
			return errors.Wrapf(err, "restoring %s from backup", name)
		}
	}
	return nil
}

// verifyFile compares a live file's size and content hash against the
// snapshot's recorded metadata.
func verifyFile(path string, want store.SnapshotFile) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "verifying %s", want.Name), ErrVerifyMismatch)
	}
	if info.Size() != want.Size {
		return errors.Wrapf(ErrVerifyMismatch, "%s: size %d, want %d", want.Name, info.Size(), want.Size)
	}
	if want.SHA256Hash != "" {
		hash, err := fileutil.HashFile(path)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "hashing %s", want.Name), ErrVerifyMismatch)
		}
		if hash != want.SHA256Hash {
			return errors.Wrapf(ErrVerifyMismatch, "%s: content hash mismatch", want.Name)
		}
	}
	return nil
}
