package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/savesentry/savesentry/internal/profile"
)

// legacyNameLayout matches snapshot folders created by the original
// save manager: YYYY-MM-DD_HH-MM-SS_profileN.
const legacyNameLayout = "2006-01-02_15-04-05"

// readManifest loads and decodes manifest.json from a snapshot directory.
func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, classify(errors.Wrap(err, "reading manifest"))
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}
	return &m, nil
}

// parseLegacyDir reconstructs a Manifest for a snapshot directory that
// predates manifest.json, deriving timestamps and profile from the
// folder name and enumerating the save files it contains.
func parseLegacyDir(dir, name string) (*Manifest, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return nil, errors.Newf("unrecognized snapshot folder name %q", name)
	}

	last := parts[len(parts)-1]
	if !strings.HasPrefix(last, "profile") {
		return nil, errors.Newf("unrecognized snapshot folder name %q", name)
	}
	n, err := strconv.Atoi(last[len("profile"):])
	if err != nil {
		return nil, errors.Wrapf(err, "parsing profile from %q", name)
	}
	id := profile.ID(n)
	if !id.Valid() {
		return nil, errors.Newf("profile %d out of range in %q", n, name)
	}

	stamp := strings.Join(parts[:len(parts)-1], "_")
	createdAt, err := time.ParseInLocation(legacyNameLayout, stamp, time.Local)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing timestamp from %q", name)
	}

	m := &Manifest{
		Version:       0, // pre-manifest layout
		Profile:       id,
		CreatedAt:     createdAt,
		LastAmendedAt: createdAt,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classify(errors.Wrap(err, "reading snapshot directory"))
	}
	for _, entry := range entries {
		if entry.IsDir() || !profile.IsSaveFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		m.Files = append(m.Files, SnapshotFile{
			Name: entry.Name(),
			Size: info.Size(),
			Mode: info.Mode(),
		})
	}
	if _, err := os.Stat(filepath.Join(dir, ScreenshotName)); err == nil {
		m.Screenshot = ScreenshotName
	}

	return m, nil
}
