// Package profile resolves Hades II save file names to save profiles and
// enumerates the files that make up one profile's live save state.
package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// The game defines exactly four save profiles.
const (
	MinID = 1
	MaxID = 4
)

// ErrNotProfileFile indicates a path that does not follow the save file
// naming convention. Callers ignore such paths; this is never fatal.
var ErrNotProfileFile = errors.New("not a profile save file")

// ID identifies one of the game's save profiles (1-4).
type ID int

// Valid reports whether the id is within the game's profile range.
func (id ID) Valid() bool {
	return id >= MinID && id <= MaxID
}

// Dir returns the conventional directory name for the profile
// (e.g. "Profile2"), used by the snapshot storage layout.
func (id ID) Dir() string {
	return "Profile" + strconv.Itoa(int(id))
}

// All returns every valid profile id in order.
func All() []ID {
	ids := make([]ID, 0, MaxID-MinID+1)
	for i := MinID; i <= MaxID; i++ {
		ids = append(ids, ID(i))
	}
	return ids
}

// Resolve maps a save file path to its owning profile. It is a pure
// function over the file name: "Profile<N>.sav", "Profile<N>_Temp.sav"
// and "Profile<N>.sav.bak*" all resolve to profile N. Any other name
// returns ErrNotProfileFile.
func Resolve(path string) (ID, error) {
	name := filepath.Base(path)

	if !strings.HasPrefix(name, "Profile") {
		return 0, errors.Wrapf(ErrNotProfileFile, "%s", name)
	}

	rest := name[len("Profile"):]
	digits := 0
	n := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		n = n*10 + int(rest[digits]-'0')
		digits++
	}
	if digits == 0 {
		return 0, errors.Wrapf(ErrNotProfileFile, "%s", name)
	}

	id := ID(n)
	if !id.Valid() {
		return 0, errors.Wrapf(ErrNotProfileFile, "%s: profile %d out of range", name, n)
	}
	if !IsSaveFile(name) {
		return 0, errors.Wrapf(ErrNotProfileFile, "%s", name)
	}

	return id, nil
}

// IsSaveFile reports whether the file name matches a recognized save
// file pattern. Lock files and other transients do not match.
func IsSaveFile(name string) bool {
	if strings.HasSuffix(name, ".sav") {
		return true
	}
	// Game-produced backups: Profile1.sav.bak, Profile1.sav.bak2, ...
	if i := strings.Index(name, ".sav.bak"); i >= 0 {
		suffix := name[i+len(".sav.bak"):]
		for j := 0; j < len(suffix); j++ {
			if suffix[j] < '0' || suffix[j] > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// FindSaveSet returns the live files that constitute the profile's save
// state: the primary save, the temp/working save, and any game-produced
// backups. Missing files are simply absent from the result; an empty
// result means the profile has no save on disk.
func FindSaveSet(saveDir string, id ID) ([]string, error) {
	if !id.Valid() {
		return nil, errors.Newf("invalid profile %d", int(id))
	}

	var files []string

	for _, name := range []string{id.Dir() + ".sav", id.Dir() + "_Temp.sav"} {
		path := filepath.Join(saveDir, name)
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}

	matches, err := filepath.Glob(filepath.Join(saveDir, id.Dir()+".sav.bak*"))
	if err != nil {
		return nil, errors.Wrap(err, "globbing backup files")
	}
	for _, m := range matches {
		if IsSaveFile(filepath.Base(m)) {
			files = append(files, m)
		}
	}

	return files, nil
}
