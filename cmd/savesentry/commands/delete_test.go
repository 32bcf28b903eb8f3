package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/savesentry/savesentry/internal/errors"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
)

func TestRunDelete(t *testing.T) {
	conf := setTestConfig(t)
	writeSave(t, conf.SaveDir, 1, "data")

	s, err := store.New(conf.SnapshotDir)
	if err != nil {
		t.Fatal(err)
	}
	files, _ := profile.FindSaveSet(conf.SaveDir, 1)
	snap, err := s.Create(1, files)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runDeleteWithWriter([]string{"1", snap.ID}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Deleted "+snap.ID) {
		t.Errorf("output = %q", out.String())
	}

	snaps, err := s.List(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 0 {
		t.Errorf("got %d snapshots after delete, want 0", len(snaps))
	}
}

func TestRunDelete_UnknownID(t *testing.T) {
	setTestConfig(t)

	var out bytes.Buffer
	err := runDeleteWithWriter([]string{"1", "20000101T000000"}, &out)
	if err == nil {
		t.Fatal("expected error for unknown snapshot")
	}
	if errors.ExitCode(err) != errors.ExitUser {
		t.Errorf("exit code = %d, want %d", errors.ExitCode(err), errors.ExitUser)
	}
}

func TestRunDelete_PartialFailure(t *testing.T) {
	conf := setTestConfig(t)
	writeSave(t, conf.SaveDir, 1, "data")

	s, err := store.New(conf.SnapshotDir)
	if err != nil {
		t.Fatal(err)
	}
	files, _ := profile.FindSaveSet(conf.SaveDir, 1)
	snap, err := s.Create(1, files)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err = runDeleteWithWriter([]string{"1", snap.ID, "20000101T000000"}, &out)
	if err == nil {
		t.Fatal("expected error when one deletion fails")
	}

	// The valid snapshot was still removed
	snaps, _ := s.List(1)
	if len(snaps) != 0 {
		t.Errorf("got %d snapshots, want 0 (best-effort deletion)", len(snaps))
	}
	if !strings.Contains(out.String(), "Deleted "+snap.ID) {
		t.Errorf("output missing successful deletion:\n%s", out.String())
	}
}
