package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// AtomicCopyFile copies src to dst via a temp file in dst's directory
// followed by an atomic rename, so a reader of dst never observes a
// partial copy. Returns the SHA256 hash, size, and mode of the copied
// content. The source permissions are preserved on the destination.
func AtomicCopyFile(src, dst string) (hash string, size int64, mode fs.FileMode, err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "opening source file")
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "stat source file")
	}
	mode = srcInfo.Mode()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".savesentry-copy-*.tmp")
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			os.Remove(tmpName)
		}
	}()

	// Compute hash while copying
	h := sha256.New()
	w := io.MultiWriter(tmp, h)

	size, err = io.Copy(w, srcFile)
	if err != nil {
		tmp.Close()
		return "", 0, 0, errors.Wrap(err, "copying file")
	}

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return "", 0, 0, errors.Wrap(err, "setting permissions")
	}

	if err := tmp.Close(); err != nil {
		return "", 0, 0, errors.Wrap(err, "closing temp file")
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return "", 0, 0, errors.Wrap(err, "renaming temp file")
	}

	return hex.EncodeToString(h.Sum(nil)), size, mode, nil
}

// HashFile computes the SHA256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// DirSize returns the total size in bytes of all regular files under dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "walking directory")
	}
	return total, nil
}
