package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Meta is embedded in every persisted document. Version gates schema
// migrations; a loaded document with a newer version than the binary
// understands is rejected rather than silently misread.
type Meta struct {
	Version   int       `json:"version"`
	Symbol    string    `json:"symbol"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists JSON state documents under a directory, one file per
// document. Writes are atomic (temp file + rename) so a crash mid-save can
// never leave a truncated document behind.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the state directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes doc as indented JSON to <dir>/<name>.json atomically.
func (s *Store) Save(name string, doc interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state document %s: %w", name, err)
	}

	path := s.path(name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state document %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to commit state document %s: %w", name, err)
	}
	return nil
}

// Load reads <dir>/<name>.json into out. It returns (false, nil) when the
// document does not exist yet, so first runs start clean. A document that
// exists but cannot be parsed is moved aside to .corrupt and treated as
// missing; losing stale risk state is safer than acting on garbage.
func (s *Store) Load(name string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read state document %s: %w", name, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		os.Rename(path, path+".corrupt")
		return false, nil
	}
	return true, nil
}

// Delete removes a document. Missing documents are not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state document %s: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// CheckVersion validates a loaded document's schema version against what the
// binary supports.
func CheckVersion(meta Meta, supported int) error {
	if meta.Version > supported {
		return fmt.Errorf("state document version %d is newer than supported version %d", meta.Version, supported)
	}
	return nil
}
