package mirror

import (
	"fmt"
	"os"
	"path/filepath"
)

// Permissions for mirror content. Metadata and prompt scripts are plain
// configuration, not secrets.
const (
	FilePerms os.FileMode = 0o644
	DirPerms  os.FileMode = 0o700
)

// tmpPattern names in-flight write temp files. The leading dot keeps the
// scanner from picking them up.
const tmpPattern = ".spindle-*"

// Abs converts a slash-separated relative mirror path to an absolute
// filesystem path under root.
func Abs(root, relPath string) string {
	return filepath.Join(root, filepath.FromSlash(relPath))
}

// WriteFileAtomic writes data to the given absolute path via a temp file
// and rename, creating parent directories as needed. A crash mid-write
// leaves the previous content intact.
func WriteFileAtomic(absPath string, data []byte) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(FilePerms); err != nil {
		cleanup()

		return fmt.Errorf("setting file mode: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// RemoveFile deletes a mirror file and then removes any directories left
// empty up to (but excluding) root. Missing files are not an error.
func RemoveFile(root, relPath string) error {
	absPath := Abs(root, relPath)

	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}

	// Sweep empty parents. os.Remove refuses non-empty directories, so
	// the sweep stops at the first directory still in use.
	dir := filepath.Dir(absPath)

	cleanRoot := filepath.Clean(root)
	for dir != cleanRoot && len(dir) > len(cleanRoot) {
		if err := os.Remove(dir); err != nil {
			break
		}

		dir = filepath.Dir(dir)
	}

	return nil
}
