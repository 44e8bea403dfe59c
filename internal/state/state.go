// Package state persists per-tenant synchronization state: the hash store
// (relative path -> content fingerprint) and the identity map (idn path ->
// remote entity id). Both are JSON files under the tenant's state directory,
// written atomically (temp file + rename) and serialized deterministically
// so that idempotent syncs leave byte-identical state files.
//
// Corruption handling is deliberately strict: a state file that exists but
// cannot be parsed is a LocalStateError and aborts the tenant's run. Silently
// resetting state would make every mirrored file look newly added and trigger
// mass duplicate creates on the next push.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePerms restricts state files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating tenant state directories.
const DirPerms = 0o700

// State file names within a tenant's state directory.
const (
	hashFileName     = "hashes.json"
	identityFileName = "identity.json"
	tokenFileName    = "token.json"
)

// LocalStateError reports a corrupt or unreadable state file. Fatal for the
// affected tenant's run; the file is left untouched for inspection.
type LocalStateError struct {
	Path string
	Err  error
}

func (e *LocalStateError) Error() string {
	return fmt.Sprintf("local state file %s is corrupt or unreadable: %v (refusing to reset; repair or remove it manually)", e.Path, e.Err)
}

func (e *LocalStateError) Unwrap() error {
	return e.Err
}

// Paths resolves the on-disk locations of one tenant's state files.
type Paths struct {
	dir string
}

// NewPaths returns the state file locations for a tenant.
func NewPaths(stateDir, tenantIdn string) Paths {
	return Paths{dir: filepath.Join(stateDir, tenantIdn)}
}

// Dir returns the tenant's state directory.
func (p Paths) Dir() string { return p.dir }

// HashFile returns the hash store path.
func (p Paths) HashFile() string { return filepath.Join(p.dir, hashFileName) }

// IdentityFile returns the identity map path.
func (p Paths) IdentityFile() string { return filepath.Join(p.dir, identityFileName) }

// TokenFile returns the token record path.
func (p Paths) TokenFile() string { return filepath.Join(p.dir, tokenFileName) }

// loadJSON reads and decodes a state file. Returns (false, nil) when the
// file does not exist — a fresh tenant, not an error. Any other failure is
// a LocalStateError.
func loadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, &LocalStateError{Path: path, Err: err}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, &LocalStateError{Path: path, Err: err}
	}

	return true, nil
}

// saveJSON writes a state file atomically: temp file in the same directory,
// fsync, then rename. Same directory guarantees same filesystem for
// rename(2). encoding/json sorts map keys, so output bytes are deterministic
// for equal logical content.
func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encoding %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("state: creating directory %s: %w", dir, mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("state: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("state: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: writing: %w", err)
	}

	// Flush to stable storage before rename so a crash between close and
	// rename cannot leave an empty or partial file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("state: renaming: %w", err)
	}

	success = true

	return nil
}
