// Package fingerprint persists the per-source batch digests used to skip
// reconciliation when an entire source is byte-identical to the last run.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"
)

const (
	// StoreVersion is the current schema version
	StoreVersion = 1

	// StoreFilename is the default store filename
	StoreFilename = "fingerprints.json"
)

// Entry is the persisted state for a single source batch. Entries are
// overwritten on successful runs and never deleted.
type Entry struct {
	SHA256 string `json:"sha256"`
	// FileSHA256 is the raw file digest, empty for in-memory batches.
	FileSHA256 string    `json:"file_sha256,omitempty"`
	TaskID     string    `json:"last_run_task_id"`
	SyncedAt   time.Time `json:"synced_at"`
	// Sinks are the names of the sinks that acknowledged this digest.
	// A sink that failed is absent and gets the batch replayed on the
	// next run; the others are left alone.
	Sinks []string `json:"sinks,omitempty"`
}

// Store maps source identifiers to their last successfully synced digest.
type Store struct {
	Version int              `json:"version"`
	LastRun time.Time        `json:"last_run"`
	Sources map[string]Entry `json:"sources"`
	mu      sync.RWMutex     `json:"-"`
}

// NewStore creates a new empty store.
func NewStore() *Store {
	return &Store{
		Version: StoreVersion,
		Sources: make(map[string]Entry),
	}
}

// Load reads a store from disk, or creates a new one if it doesn't exist.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, fmt.Errorf("failed to read fingerprint store: %w", err)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint store: %w", err)
	}

	if store.Sources == nil {
		store.Sources = make(map[string]Entry)
	}

	return &store, nil
}

// Save writes the store to disk atomically using the write-to-temp +
// rename pattern to prevent corruption.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint store: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create fingerprint directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write fingerprint temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename fingerprint file: %w", err)
	}

	return nil
}

// Get returns the entry for a source, if present.
func (s *Store) Get(source string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.Sources[source]
	return e, ok
}

// Unchanged reports whether the source's last synced digest equals digest.
func (s *Store) Unchanged(source, digest string) bool {
	e, ok := s.Get(source)
	return ok && e.SHA256 == digest
}

// Acked reports whether the named sink acknowledged the digest on a
// previous run. A matching digest alone is not enough: a sink that failed
// while the others succeeded must get the batch again.
func (s *Store) Acked(source, digest, sink string) bool {
	e, ok := s.Get(source)
	if !ok || e.SHA256 != digest {
		return false
	}
	return slices.Contains(e.Sinks, sink)
}

// Advance records which sinks accepted a source's batch. A sink missing
// from acked keeps the source pending for that sink, so the next run
// replays the batch to it alone. fileDigest may be empty for in-memory
// batches.
func (s *Store) Advance(source, digest, fileDigest, taskID string, acked []string) {
	sinks := make([]string, len(acked))
	copy(sinks, acked)
	sort.Strings(sinks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sources[source] = Entry{
		SHA256:     digest,
		FileSHA256: fileDigest,
		TaskID:     taskID,
		SyncedAt:   time.Now().UTC(),
		Sinks:      sinks,
	}
	s.LastRun = time.Now().UTC()
}

// SourceNames returns all known source identifiers.
func (s *Store) SourceNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.Sources))
	for name := range s.Sources {
		names = append(names, name)
	}
	return names
}
