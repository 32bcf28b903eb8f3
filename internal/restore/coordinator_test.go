package restore

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/savesentry/savesentry/internal/bus"
	"github.com/savesentry/savesentry/internal/game"
	"github.com/savesentry/savesentry/internal/logging"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

// fixture builds a store holding one snapshot of "old" content and a
// live save directory that has since moved on to "new" content.
type fixture struct {
	store   *store.Store
	saveDir string
	snap    *store.Snapshot
	coord   *Coordinator
}

func newFixture(t *testing.T, liveness game.Liveness) *fixture {
	t.Helper()

	saveDir := t.TempDir()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	writeLive(t, saveDir, "snapshotted")
	src, err := profile.FindSaveSet(saveDir, 1)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := s.Create(1, src)
	if err != nil {
		t.Fatal(err)
	}

	// Live state diverges after the snapshot.
	writeLive(t, saveDir, "current")

	c := New(s, liveness, saveDir, "Hades2", WithLogger(logging.ForTest(t)))
	return &fixture{store: s, saveDir: saveDir, snap: snap, coord: c}
}

func writeLive(t *testing.T, dir, content string) {
	t.Helper()
	for _, name := range []string{"Profile1.sav", "Profile1_Temp.sav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content+" "+name), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

// liveContents snapshots the save files present for profile 1.
func liveContents(t *testing.T, dir string) map[string]string {
	t.Helper()
	files, err := profile.FindSaveSet(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	m := make(map[string]string, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		m[filepath.Base(f)] = string(data)
	}
	return m
}

func sameContents(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestRestore_Success(t *testing.T) {
	f := newFixture(t, game.Static(false))
	before := liveContents(t, f.saveDir)

	res, err := f.coord.Restore(context.Background(), 1, f.snap.ID)
	if err != nil {
		t.Fatalf("Restore failed: %v (state %s)", err, res.State)
	}
	if res.State != StateDone {
		t.Errorf("State = %s, want DONE", res.State)
	}
	if !res.State.Terminal() {
		t.Errorf("%s should be terminal", res.State)
	}

	// Live files now carry the snapshot content
	after := liveContents(t, f.saveDir)
	for name, content := range after {
		if !strings.HasPrefix(content, "snapshotted") {
			t.Errorf("%s = %q, want snapshot content", name, content)
		}
	}

	// LiveBackup slot holds the pre-restore content, available for undo
	slot := store.LiveBackupDir(f.store.Root(), 1)
	for name, want := range before {
		data, err := os.ReadFile(filepath.Join(slot, name))
		if err != nil {
			t.Fatalf("backup missing %s: %v", name, err)
		}
		if string(data) != want {
			t.Errorf("backup %s = %q, want %q", name, data, want)
		}
	}
}

func TestRestore_GameRunning(t *testing.T) {
	f := newFixture(t, game.Static(true))
	before := liveContents(t, f.saveDir)

	res, err := f.coord.Restore(context.Background(), 1, f.snap.ID)
	if !errors.Is(err, ErrGameRunning) {
		t.Errorf("error = %v, want ErrGameRunning", err)
	}
	if res.State != StateAborted {
		t.Errorf("State = %s, want ABORTED", res.State)
	}
	if !sameContents(before, liveContents(t, f.saveDir)) {
		t.Error("live files changed during an aborted restore")
	}
	// No backup slot was created either
	if _, err := os.Stat(store.LiveBackupDir(f.store.Root(), 1)); !os.IsNotExist(err) {
		t.Error("backup slot written during aborted restore")
	}
}

func TestRestore_CancelledInPreflight(t *testing.T) {
	f := newFixture(t, game.Static(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.coord.Restore(ctx, 1, f.snap.ID)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if res.State != StateAborted {
		t.Errorf("State = %s, want ABORTED", res.State)
	}
}

func TestRestore_SnapshotMissing(t *testing.T) {
	f := newFixture(t, game.Static(false))

	res, err := f.coord.Restore(context.Background(), 1, "20000101T000000")
	if !errors.Is(err, store.ErrSnapshotNotFound) {
		t.Errorf("error = %v, want ErrSnapshotNotFound", err)
	}
	if res.State != StateAborted {
		t.Errorf("State = %s, want ABORTED", res.State)
	}
}

func TestRestore_BackupFailure_LeavesLiveUntouched(t *testing.T) {
	f := newFixture(t, game.Static(false))
	before := liveContents(t, f.saveDir)

	// Every copy into the backup staging area fails.
	f.coord.copyFile = func(src, dst string) (string, int64, fs.FileMode, error) {
		if strings.Contains(dst, store.LiveBackupDirName) {
			return "", 0, 0, errors.New("disk full")
		}
		return fileutil.AtomicCopyFile(src, dst)
	}

	res, err := f.coord.Restore(context.Background(), 1, f.snap.ID)
	if err == nil {
		t.Fatal("expected backup failure")
	}
	if res.State != StateFailed {
		t.Errorf("State = %s, want FAILED", res.State)
	}
	if !sameContents(before, liveContents(t, f.saveDir)) {
		t.Error("live files changed although the restore never started")
	}
}

func TestRestore_ReplaceFailure_RollsBack(t *testing.T) {
	f := newFixture(t, game.Static(false))
	before := liveContents(t, f.saveDir)

	// The second snapshot file fails to copy over the live directory.
	f.coord.copyFile = func(src, dst string) (string, int64, fs.FileMode, error) {
		if strings.HasPrefix(src, f.snap.Path) && strings.HasSuffix(src, "Profile1_Temp.sav") {
			return "", 0, 0, errors.New("injected copy failure")
		}
		return fileutil.AtomicCopyFile(src, dst)
	}

	res, err := f.coord.Restore(context.Background(), 1, f.snap.ID)
	if err == nil {
		t.Fatal("expected replace failure")
	}
	if res.State != StateRolledBack {
		t.Errorf("State = %s, want ROLLED_BACK", res.State)
	}
	if !sameContents(before, liveContents(t, f.saveDir)) {
		t.Errorf("live directory differs from pre-restore state after rollback:\nbefore: %v\nafter:  %v",
			before, liveContents(t, f.saveDir))
	}
}

func TestRestore_RollbackFailure_Inconsistent(t *testing.T) {
	f := newFixture(t, game.Static(false))

	f.coord.copyFile = func(src, dst string) (string, int64, fs.FileMode, error) {
		// Replace phase fails...
		if strings.HasPrefix(src, f.snap.Path) && strings.HasSuffix(src, "Profile1_Temp.sav") {
			return "", 0, 0, errors.New("injected copy failure")
		}
		// ...and so does copying the backup back.
		if strings.Contains(src, store.LiveBackupDirName) {
			return "", 0, 0, errors.New("injected rollback failure")
		}
		return fileutil.AtomicCopyFile(src, dst)
	}

	res, err := f.coord.Restore(context.Background(), 1, f.snap.ID)
	if !errors.Is(err, ErrCriticalInconsistency) {
		t.Errorf("error = %v, want ErrCriticalInconsistency", err)
	}
	if res.State != StateInconsistent {
		t.Errorf("State = %s, want CRITICAL_INCONSISTENCY", res.State)
	}

	// The backup slot must survive untouched for manual recovery.
	slot := store.LiveBackupDir(f.store.Root(), 1)
	for _, name := range []string{"Profile1.sav", "Profile1_Temp.sav"} {
		data, err := os.ReadFile(filepath.Join(slot, name))
		if err != nil {
			t.Fatalf("backup file %s lost: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "current") {
			t.Errorf("backup %s = %q, want pre-restore content", name, data)
		}
	}
}

func TestRestore_VerifyMismatch_RollsBack(t *testing.T) {
	f := newFixture(t, game.Static(false))
	before := liveContents(t, f.saveDir)

	// Corrupt the recorded hash so verification must fail.
	manifestPath := filepath.Join(f.snap.Path, store.ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	var m store.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	m.Files[0].SHA256Hash = strings.Repeat("0", 64)
	if err := fileutil.AtomicWriteJSON(manifestPath, &m); err != nil {
		t.Fatal(err)
	}

	res, err := f.coord.Restore(context.Background(), 1, f.snap.ID)
	if !errors.Is(err, ErrVerifyMismatch) {
		t.Errorf("error = %v, want ErrVerifyMismatch", err)
	}
	if res.State != StateRolledBack {
		t.Errorf("State = %s, want ROLLED_BACK", res.State)
	}
	if !sameContents(before, liveContents(t, f.saveDir)) {
		t.Error("live directory not rolled back after verify failure")
	}
}

func TestRestore_PublishesEvent(t *testing.T) {
	f := newFixture(t, game.Static(false))
	b := bus.New(logging.ForTest(t))
	ch, cancel := b.Subscribe()
	defer cancel()

	f.coord.events = b

	if _, err := f.coord.Restore(context.Background(), 1, f.snap.ID); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != bus.RestoreCompleted || ev.SnapshotID != f.snap.ID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no restore event published")
	}
}

func TestRestore_SupersedesBackupSlot(t *testing.T) {
	f := newFixture(t, game.Static(false))

	if _, err := f.coord.Restore(context.Background(), 1, f.snap.ID); err != nil {
		t.Fatal(err)
	}

	// Second restore: the slot must now hold the state before *this* one.
	writeLive(t, f.saveDir, "second-era")
	if _, err := f.coord.Restore(context.Background(), 1, f.snap.ID); err != nil {
		t.Fatal(err)
	}

	slot := store.LiveBackupDir(f.store.Root(), 1)
	data, err := os.ReadFile(filepath.Join(slot, "Profile1.sav"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "second-era") {
		t.Errorf("backup slot = %q, want second-era content", data)
	}
}
