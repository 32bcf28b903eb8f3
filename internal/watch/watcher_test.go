package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/savesentry/savesentry/internal/bus"
	"github.com/savesentry/savesentry/internal/detect"
	"github.com/savesentry/savesentry/internal/logging"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
)

func newTestWatcher(t *testing.T, threshold time.Duration, opts ...Option) (*Watcher, string, *store.Store) {
	t.Helper()
	saveDir := t.TempDir()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithLogger(logging.ForTest(t))}, opts...)
	w := New(saveDir, s, detect.New(threshold), opts...)
	return w, saveDir, s
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give fsnotify a moment to register the directory before tests
	// start writing into it.
	time.Sleep(100 * time.Millisecond)
}

// waitFor polls until cond returns true or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcher_CreatesSnapshotOnSave(t *testing.T) {
	w, saveDir, s := newTestWatcher(t, time.Hour)
	startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(saveDir, "Profile1.sav"), []byte("run 42"), 0600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "snapshot to appear", func() bool {
		snaps, err := s.List(1)
		return err == nil && len(snaps) == 1
	})

	snaps, _ := s.List(1)
	data, err := os.ReadFile(filepath.Join(snaps[0].Path, "Profile1.sav"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "run 42" {
		t.Errorf("snapshot content = %q, want %q", data, "run 42")
	}
}

func TestWatcher_AmendsWithinThreshold(t *testing.T) {
	w, saveDir, s := newTestWatcher(t, time.Hour)
	startWatcher(t, w)

	save := filepath.Join(saveDir, "Profile2.sav")
	if err := os.WriteFile(save, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first snapshot", func() bool {
		snaps, err := s.List(2)
		return err == nil && len(snaps) == 1
	})

	// A second write well inside the hour-long window amends in place.
	if err := os.WriteFile(save, []byte("v2"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "snapshot to carry the new content", func() bool {
		snaps, err := s.List(2)
		if err != nil || len(snaps) != 1 {
			return false
		}
		data, err := os.ReadFile(filepath.Join(snaps[0].Path, "Profile2.sav"))
		return err == nil && string(data) == "v2"
	})

	snaps, _ := s.List(2)
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if !snaps[0].LastAmendedAt.After(snaps[0].CreatedAt) {
		t.Error("LastAmendedAt not advanced by amend")
	}
}

func TestWatcher_IgnoresForeignFiles(t *testing.T) {
	w, saveDir, s := newTestWatcher(t, time.Hour)
	startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(saveDir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	for id := 1; id <= 4; id++ {
		snaps, err := s.List(profile.ID(id))
		if err != nil {
			t.Fatal(err)
		}
		if len(snaps) != 0 {
			t.Errorf("profile %d: %d snapshots from a non-save file", id, len(snaps))
		}
	}
}

func TestWatcher_DisableSuppressesSnapshots(t *testing.T) {
	w, saveDir, s := newTestWatcher(t, time.Hour)
	startWatcher(t, w)

	w.Disable()
	if w.Enabled() {
		t.Fatal("Enabled() = true after Disable")
	}

	save := filepath.Join(saveDir, "Profile3.sav")
	if err := os.WriteFile(save, []byte("ignored"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if snaps, _ := s.List(3); len(snaps) != 0 {
		t.Fatalf("got %d snapshots while disabled", len(snaps))
	}

	w.Enable()
	if err := os.WriteFile(save, []byte("counted"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "snapshot after re-enable", func() bool {
		snaps, err := s.List(3)
		return err == nil && len(snaps) >= 1
	})
}

func TestWatcher_PublishesEvents(t *testing.T) {
	b := bus.New(logging.NewDiscard())
	ch, cancel := b.Subscribe()
	defer cancel()

	w, saveDir, _ := newTestWatcher(t, time.Hour, WithBus(b))
	startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(saveDir, "Profile1.sav"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != bus.SnapshotCreated || ev.Profile != 1 {
			t.Errorf("event = %+v, want SnapshotCreated for profile 1", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event published")
	}
}

func TestWatcher_RearmsAfterDirReplacement(t *testing.T) {
	b := bus.New(logging.NewDiscard())
	ch, cancel := b.Subscribe()
	defer cancel()

	w, saveDir, s := newTestWatcher(t, time.Hour, WithBus(b))
	w.rearmDelay = 50 * time.Millisecond
	w.pollInterval = 25 * time.Millisecond
	startWatcher(t, w)

	// Replace the save directory wholesale, the way a reinstall or a
	// cloud sync client would.
	if err := os.RemoveAll(saveDir); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != bus.WatchDegraded {
			t.Fatalf("event = %+v, want WatchDegraded", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no WatchDegraded published after losing the watch root")
	}

	// While the directory is absent the re-arm loop keeps retrying; once
	// it is back a save must snapshot again. The write is repeated until
	// the fresh watch observes one.
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	save := filepath.Join(saveDir, "Profile1.sav")
	waitFor(t, "snapshot after re-arm", func() bool {
		if err := os.WriteFile(save, []byte("after replacement"), 0600); err != nil {
			t.Fatal(err)
		}
		snaps, err := s.List(1)
		return err == nil && len(snaps) >= 1
	})
}

func TestEnqueue_DropsOldestWhenFull(t *testing.T) {
	w, _, _ := newTestWatcher(t, time.Hour, WithQueueSize(2))

	for _, name := range []string{"a", "b", "c"} {
		w.enqueue(fsnotify.Event{Name: name, Op: fsnotify.Write})
	}

	if got := len(w.queue); got != 2 {
		t.Fatalf("queue length = %d, want 2", got)
	}
	first := <-w.queue
	second := <-w.queue
	if first.Name != "b" || second.Name != "c" {
		t.Errorf("queue = [%s %s], want [b c]", first.Name, second.Name)
	}
}

func TestWatcher_ChmodDoesNotSnapshot(t *testing.T) {
	w, saveDir, s := newTestWatcher(t, time.Hour)

	save := filepath.Join(saveDir, "Profile1.sav")
	if err := os.WriteFile(save, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	startWatcher(t, w)

	if err := os.Chmod(save, 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if snaps, _ := s.List(1); len(snaps) != 0 {
		t.Errorf("got %d snapshots from a chmod", len(snaps))
	}
}
