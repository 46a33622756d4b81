// Package sourceurl persists the hash→URL sidecar (".model_sources.json")
// that lives alongside the Lake root so multiple installations pointed at
// the same Lake share a common provenance record. The file is rewritten
// atomically (temp file + rename) and its absence on read is tolerated —
// a fresh Lake simply starts with an empty source map.
package sourceurl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the sidecar's fixed name at the root of a Lake side.
const FileName = ".model_sources.json"

// Entry records where a file's bytes came from. Key is either a content hash
// (preferred) or "relpath:"+relpath for files that have not been hashed yet.
type Entry struct {
	Key           string    `json:"key"`
	URL           string    `json:"url"`
	AddedAt       time.Time `json:"added_at"`
	Notes         string    `json:"notes,omitempty"`
	FilenameHint  string    `json:"filename_hint,omitempty"`
}

// RelPathKey builds the fallback key for a file that has no known hash yet.
func RelPathKey(relpath string) string {
	return "relpath:" + relpath
}

// Store manages the sidecar file for one Lake root. All mutation goes
// through mu to keep the read-modify-write-rename cycle atomic with respect
// to other goroutines in this process; cross-process coordination relies on
// the atomic rename alone, per the engine's "no cross-process fs locks"
// contract.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store bound to the sidecar file under lakeRoot.
func New(lakeRoot string) *Store {
	return &Store{path: filepath.Join(lakeRoot, FileName)}
}

// load reads the sidecar, tolerating a missing file as an empty map.
func (s *Store) load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Entry{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("sourceurl: reading sidecar: %w", err)
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("sourceurl: parsing sidecar: %w", err)
	}

	return entries, nil
}

// save atomically rewrites the sidecar: write to a temp file in the same
// directory, fsync, then rename over the target.
func (s *Store) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("sourceurl: marshaling sidecar: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sourceurl: creating lake root: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model_sources.*.tmp")
	if err != nil {
		return fmt.Errorf("sourceurl: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("sourceurl: writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("sourceurl: syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sourceurl: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sourceurl: renaming temp file into place: %w", err)
	}

	return nil
}

// Get returns the source entry for key, if any.
func (s *Store) Get(key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}

	e, ok := entries[key]

	return e, ok, nil
}

// Put upserts the source entry for key.
func (s *Store) Put(key, url, notes, filenameHint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[key] = Entry{
		Key:          key,
		URL:          url,
		AddedAt:      time.Now().UTC(),
		Notes:        notes,
		FilenameHint: filenameHint,
	}

	return s.save(entries)
}

// Delete removes the source entry for key, if present.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	delete(entries, key)

	return s.save(entries)
}

// List returns all source entries.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}

	return out, nil
}
