// Package store owns the on-disk snapshot layout: creating, amending,
// listing, and deleting per-profile snapshots with an atomic staged-write
// discipline so a reader never observes a partially copied snapshot.
package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/savesentry/savesentry/internal/bus"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

// stagingPrefix marks in-progress snapshot directories. Listing skips
// them, so an interrupted create is never visible.
const stagingPrefix = ".staging-"

// trashPrefix marks the old generation during an amend swap.
const trashPrefix = ".trash-"

// Store manages the snapshot directory tree rooted at one path.
// All operations on the same profile are serialized; different profiles
// proceed independently.
type Store struct {
	root   string
	now    func() time.Time
	events *bus.Bus

	mu       sync.Mutex
	profiles map[profile.ID]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithBus publishes snapshot deletions to b.
func WithBus(b *bus.Bus) Option {
	return func(s *Store) {
		s.events = b
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		root:     dir,
		now:      time.Now,
		profiles: make(map[profile.ID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, classify(errors.Wrap(err, "creating snapshot root"))
	}
	s.recoverOrphans()
	return s, nil
}

// recoverOrphans sweeps leftovers of interrupted staged writes. A
// trash directory whose snapshot directory is gone is the previous
// generation of an amend that crashed between its two renames; it is
// moved back into place so the snapshot reappears instead of
// vanishing. Staging directories and superseded trash are removed.
func (s *Store) recoverOrphans() {
	for _, id := range profile.All() {
		dir := ProfileDir(s.root, id)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			switch {
			case strings.HasPrefix(name, trashPrefix):
				final := filepath.Join(dir, strings.TrimPrefix(name, trashPrefix))
				if _, err := os.Stat(final); os.IsNotExist(err) {
					os.Rename(filepath.Join(dir, name), final)
					continue
				}
				os.RemoveAll(filepath.Join(dir, name))
			case strings.HasPrefix(name, stagingPrefix):
				os.RemoveAll(filepath.Join(dir, name))
			}
		}
	}
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// profileLock returns the mutex serializing operations for one profile.
func (s *Store) profileLock(id profile.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.profiles[id]
	if !ok {
		mu = &sync.Mutex{}
		s.profiles[id] = mu
	}
	return mu
}

// WithProfileLock runs fn while holding the profile's lock. The restore
// coordinator uses this so a restore and a snapshot write for the same
// profile never interleave.
func (s *Store) WithProfileLock(id profile.ID, fn func() error) error {
	mu := s.profileLock(id)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// Create allocates a new snapshot id for the profile and copies the
// source files into a fresh snapshot directory. The copy is staged in a
// hidden directory and renamed into place, so a failed or interrupted
// create leaves no partial snapshot visible to List.
func (s *Store) Create(id profile.ID, srcFiles []string) (*Snapshot, error) {
	if !id.Valid() {
		return nil, errors.Newf("invalid profile %d", int(id))
	}
	if len(srcFiles) == 0 {
		return nil, ErrNoSaveFiles
	}

	mu := s.profileLock(id)
	mu.Lock()
	defer mu.Unlock()

	snapID := s.newID(id)
	now := s.now()

	manifest := Manifest{
		Version:       ManifestVersion,
		Profile:       id,
		CreatedAt:     now,
		LastAmendedAt: now,
	}

	final := SnapshotPath(s.root, id, snapID)
	stage, err := s.stageFiles(id, snapID, srcFiles, &manifest)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(stage, final); err != nil {
		os.RemoveAll(stage)
		return nil, classify(errors.Wrap(err, "publishing snapshot"))
	}

	return s.load(id, snapID)
}

// Amend re-copies the source files into an existing snapshot, preserving
// its id and CreatedAt and updating LastAmendedAt. The new generation is
// staged and swapped in, keeping the no-partial-write invariant even for
// amendment.
func (s *Store) Amend(id profile.ID, snapshotID string, srcFiles []string) (*Snapshot, error) {
	if len(srcFiles) == 0 {
		return nil, ErrNoSaveFiles
	}

	mu := s.profileLock(id)
	mu.Lock()
	defer mu.Unlock()

	prev, err := s.load(id, snapshotID)
	if err != nil {
		return nil, err
	}

	manifest := Manifest{
		Version:       ManifestVersion,
		Profile:       id,
		CreatedAt:     prev.CreatedAt,
		LastAmendedAt: s.now(),
		Screenshot:    prev.Screenshot,
		RoomLabel:     prev.RoomLabel,
	}

	stage, err := s.stageFiles(id, snapshotID, srcFiles, &manifest)
	if err != nil {
		return nil, err
	}

	// Carry the screenshot file over to the new generation.
	prevShot := filepath.Join(prev.Path, ScreenshotName)
	if _, statErr := os.Stat(prevShot); statErr == nil {
		if _, _, _, err := fileutil.AtomicCopyFile(prevShot, filepath.Join(stage, ScreenshotName)); err != nil {
			os.RemoveAll(stage)
			return nil, classify(errors.Wrap(err, "carrying screenshot"))
		}
	}

	final := SnapshotPath(s.root, id, snapshotID)
	trash := filepath.Join(ProfileDir(s.root, id), trashPrefix+snapshotID)

	if err := os.Rename(final, trash); err != nil {
		os.RemoveAll(stage)
		return nil, classify(errors.Wrap(err, "retiring old generation"))
	}
	if err := os.Rename(stage, final); err != nil {
		// Put the old generation back so the snapshot does not vanish.
		if restoreErr := os.Rename(trash, final); restoreErr != nil {
			return nil, classify(errors.Wrapf(err, "swapping generations (old generation stranded at %s)", trash))
		}
		os.RemoveAll(stage)
		return nil, classify(errors.Wrap(err, "swapping generations"))
	}
	os.RemoveAll(trash)

	return s.load(id, snapshotID)
}

// stageFiles copies srcFiles and the manifest into a new staging
// directory and returns its path. On error the staging directory is
// removed and a classified error returned.
func (s *Store) stageFiles(id profile.ID, snapID string, srcFiles []string, manifest *Manifest) (string, error) {
	stage := filepath.Join(ProfileDir(s.root, id), stagingPrefix+snapID)
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", classify(errors.Wrap(err, "creating staging directory"))
	}

	fail := func(err error) (string, error) {
		os.RemoveAll(stage)
		return "", classify(err)
	}

	manifest.Files = manifest.Files[:0]
	for _, src := range srcFiles {
		dst := filepath.Join(stage, filepath.Base(src))
		hash, size, mode, err := fileutil.AtomicCopyFile(src, dst)
		if err != nil {
			return fail(errors.Wrapf(err, "copying %s", filepath.Base(src)))
		}
		manifest.Files = append(manifest.Files, SnapshotFile{
			Name:       filepath.Base(src),
			Size:       size,
			SHA256Hash: hash,
			Mode:       mode,
		})
	}

	if err := fileutil.AtomicWriteJSON(filepath.Join(stage, ManifestName), manifest); err != nil {
		return fail(errors.Wrap(err, "writing manifest"))
	}

	return stage, nil
}

// List returns the profile's snapshots sorted by CreatedAt descending,
// with a deterministic id-descending tie-break when timestamps collide.
// Directories without a readable manifest fall back to the legacy folder
// name format; anything unrecognizable is skipped.
func (s *Store) List(id profile.ID) ([]Snapshot, error) {
	if !id.Valid() {
		return nil, errors.Newf("invalid profile %d", int(id))
	}

	dir := ProfileDir(s.root, id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, classify(errors.Wrap(err, "reading profile directory"))
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		snap, err := s.load(id, entry.Name())
		if err != nil {
			// Not a snapshot directory; leave it alone.
			continue
		}
		snapshots = append(snapshots, *snap)
	}

	slices.SortFunc(snapshots, func(a, b Snapshot) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	return snapshots, nil
}

// Get returns one snapshot by id.
func (s *Store) Get(id profile.ID, snapshotID string) (*Snapshot, error) {
	return s.load(id, snapshotID)
}

// Delete removes the given snapshot ids for a profile, best effort: one
// failure does not abort deletion of the others. It returns the ids that
// were deleted and a map of failures by id.
func (s *Store) Delete(id profile.ID, snapshotIDs []string) (deleted []string, failed map[string]error) {
	failed = make(map[string]error)

	mu := s.profileLock(id)
	mu.Lock()
	defer mu.Unlock()

	for _, snapID := range snapshotIDs {
		path := SnapshotPath(s.root, id, snapID)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				failed[snapID] = ErrSnapshotNotFound
			} else {
				failed[snapID] = classify(errors.Wrap(err, "stat snapshot"))
			}
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			failed[snapID] = classify(errors.Wrap(err, "removing snapshot"))
			continue
		}
		deleted = append(deleted, snapID)
		if s.events != nil {
			s.events.Publish(bus.Event{Kind: bus.SnapshotDeleted, Profile: id, SnapshotID: snapID})
		}
	}

	return deleted, failed
}

// AttachScreenshot records a screenshot reference in the snapshot's
// manifest. The image itself is not moved or copied; ownership stays
// with the capture collaborator.
func (s *Store) AttachScreenshot(id profile.ID, snapshotID, imagePath string) error {
	mu := s.profileLock(id)
	mu.Lock()
	defer mu.Unlock()

	snap, err := s.load(id, snapshotID)
	if err != nil {
		return err
	}

	snap.Manifest.Screenshot = imagePath
	path := filepath.Join(snap.Path, ManifestName)
	if err := fileutil.AtomicWriteJSON(path, &snap.Manifest); err != nil {
		return classify(errors.Wrap(err, "updating manifest"))
	}
	return nil
}

// load reads one snapshot directory into a Snapshot. It does not take
// the profile lock; callers that mutate must.
func (s *Store) load(id profile.ID, snapshotID string) (*Snapshot, error) {
	path := SnapshotPath(s.root, id, snapshotID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSnapshotNotFound, "%s", snapshotID)
		}
		return nil, classify(errors.Wrap(err, "stat snapshot"))
	}

	manifest, err := readManifest(path)
	if err != nil {
		// Legacy layout: folder name carries the metadata.
		legacy, legacyErr := parseLegacyDir(path, snapshotID)
		if legacyErr != nil {
			return nil, err
		}
		manifest = legacy
	}

	size, err := fileutil.DirSize(path)
	if err != nil {
		return nil, classify(errors.Wrap(err, "sizing snapshot"))
	}

	return &Snapshot{
		ID:       snapshotID,
		Path:     path,
		Size:     size,
		Manifest: *manifest,
	}, nil
}

// newID allocates a timestamp-derived snapshot id unique within the
// profile. A same-second collision appends an increasing suffix, so ids
// remain totally ordered and are never reused.
func (s *Store) newID(id profile.ID) string {
	base := s.now().Format("20060102T150405")
	snapID := base
	for n := 1; ; n++ {
		if _, err := os.Stat(SnapshotPath(s.root, id, snapID)); os.IsNotExist(err) {
			return snapID
		}
		snapID = base + "-" + strconv.Itoa(n)
	}
}

// classify maps low-level file system errors onto the storage sentinels
// so callers can distinguish recoverable conditions.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return errors.Mark(err, ErrInsufficientSpace)
	case errors.Is(err, fs.ErrPermission):
		return errors.Mark(err, ErrPermissionDenied)
	case errors.Is(err, fs.ErrNotExist):
		return errors.Mark(err, ErrSourceUnreadable)
	default:
		return err
	}
}
