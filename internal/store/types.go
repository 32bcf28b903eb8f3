package store

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/savesentry/savesentry/internal/profile"
)

// Manifest format version for forward compatibility.
const ManifestVersion = 1

// ManifestName is the metadata file stored in each snapshot directory.
const ManifestName = "manifest.json"

// ScreenshotName is the conventional screenshot file name inside a
// snapshot directory, kept compatible with the layout other tools read.
const ScreenshotName = "snapshot.png"

// Sentinel errors for snapshot storage. These are always reported to the
// caller, never swallowed.
var (
	// ErrSnapshotNotFound indicates the requested snapshot id does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInsufficientSpace indicates the storage volume ran out of space.
	ErrInsufficientSpace = errors.New("insufficient space")

	// ErrPermissionDenied indicates the storage operation was rejected by
	// file system permissions.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSourceUnreadable indicates a live save file could not be read.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrNoSaveFiles indicates the profile has no live save files to copy.
	ErrNoSaveFiles = errors.New("no save files found")
)

// SnapshotFile describes one copied save file inside a snapshot.
type SnapshotFile struct {
	// Name is the file name within the snapshot directory, identical to
	// its name in the live save directory.
	Name string `json:"name"`

	// Size is the file size in bytes at copy time.
	Size int64 `json:"size"`

	// SHA256Hash is the hex-encoded SHA256 hash of the file contents.
	SHA256Hash string `json:"sha256_hash"`

	// Mode is the file's permission bits.
	Mode fs.FileMode `json:"mode"`
}

// Manifest is the metadata record stored as manifest.json in each
// snapshot directory. The on-disk layout (one directory per profile, one
// subdirectory per snapshot id, save files plus this record) is a
// contract other tools may read.
type Manifest struct {
	// Version is the manifest format version.
	Version int `json:"version"`

	// Profile is the owning save profile. Immutable once assigned.
	Profile profile.ID `json:"profile"`

	// CreatedAt is when the snapshot generation was first created.
	CreatedAt time.Time `json:"created_at"`

	// LastAmendedAt tracks the most recent amend; equals CreatedAt for a
	// snapshot that was never amended.
	LastAmendedAt time.Time `json:"last_amended_at"`

	// Files describes each copied save file.
	Files []SnapshotFile `json:"files"`

	// Screenshot is the optional screenshot reference. Empty is valid.
	Screenshot string `json:"screenshot,omitempty"`

	// RoomLabel is an optional informational label.
	RoomLabel string `json:"room_label,omitempty"`
}

// Snapshot is one point-in-time copy of a profile's save files plus its
// metadata, as seen by callers.
type Snapshot struct {
	// ID is unique within the profile and totally ordered; never reused.
	ID string

	// Path is the snapshot's own directory.
	Path string

	// Size is the total size of the snapshot directory in bytes.
	Size int64

	Manifest
}

// ScreenshotPath returns the path of the snapshot's screenshot, or ""
// when none was captured. The manifest stores the file name relative to
// the snapshot directory.
func (s *Snapshot) ScreenshotPath() string {
	if s.Screenshot == "" {
		return ""
	}
	if filepath.IsAbs(s.Screenshot) {
		return s.Screenshot
	}
	return filepath.Join(s.Path, s.Screenshot)
}
