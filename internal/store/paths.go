package store

import (
	"path/filepath"

	"github.com/savesentry/savesentry/internal/profile"
)

// LiveBackupDirName is the subdirectory under the storage root holding
// the single-slot pre-restore backups, one per profile.
const LiveBackupDirName = "live_backup"

// ProfileDir returns the snapshot directory for a profile under root.
func ProfileDir(root string, id profile.ID) string {
	return filepath.Join(root, id.Dir())
}

// SnapshotPath returns the directory for one snapshot id.
func SnapshotPath(root string, id profile.ID, snapshotID string) string {
	return filepath.Join(ProfileDir(root, id), snapshotID)
}

// LiveBackupDir returns the single-slot live backup directory for a profile.
func LiveBackupDir(root string, id profile.ID) string {
	return filepath.Join(root, LiveBackupDirName, id.Dir())
}
