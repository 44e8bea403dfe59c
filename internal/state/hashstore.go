package state

import (
	"maps"
	"sort"
	"sync"
)

// HashStore is the persisted mapping from a mirror file's relative path to
// the fingerprint of its content as of the last successful sync. It is what
// makes status a pure function of disk state: comparing the stored and
// current fingerprints answers "did this file change since the last sync"
// without any network call.
//
// Methods are safe for concurrent use; the engine's pull fan-out updates
// entries from multiple goroutines.
type HashStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string
}

// LoadHashStore reads the hash store at path. A missing file yields an
// empty store (fresh tenant). A present-but-unparseable file is a
// LocalStateError.
func LoadHashStore(path string) (*HashStore, error) {
	entries := make(map[string]string)
	if _, err := loadJSON(path, &entries); err != nil {
		return nil, err
	}

	return &HashStore{path: path, entries: entries}, nil
}

// Get returns the stored fingerprint for relPath.
func (s *HashStore) Get(relPath string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fp, ok := s.entries[relPath]

	return fp, ok
}

// Set records the fingerprint for relPath.
func (s *HashStore) Set(relPath, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[relPath] = fingerprint
}

// Delete removes the entry for relPath, if present.
func (s *HashStore) Delete(relPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, relPath)
}

// Paths returns all tracked relative paths, sorted.
func (s *HashStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}

	sort.Strings(out)

	return out
}

// Len returns the number of tracked paths.
func (s *HashStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Snapshot returns a copy of the full path -> fingerprint mapping.
func (s *HashStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.entries)
}

// Save persists the store atomically to its backing file.
func (s *HashStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return saveJSON(s.path, s.entries)
}
