package nickname

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is the persisted device-nickname map: key "{nodeId}_{eoj}" → user
// label. The file is read once at startup and rewritten whole (temp file +
// rename, so a crash never leaves a torn file) on every change.
type Store struct {
	path string

	mu sync.RWMutex
	m  map[string]string
}

// Load reads the nickname file at path. A missing file is an empty map, not
// an error.
func Load(path string) (*Store, error) {
	s := &Store{path: path, m: map[string]string{}}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read nickname file %q: %w", path, err)
	}
	if err := json.Unmarshal(b, &s.m); err != nil {
		return nil, fmt.Errorf("parse nickname file %q: %w", path, err)
	}
	return s, nil
}

// Get returns the label for key; ok is false when the device keeps its
// default name.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.m[key]
	return label, ok
}

// All returns a copy of the whole mapping.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Set stores (or, with an empty label, removes) one nickname and rewrites
// the file.
func (s *Store) Set(key, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label == "" {
		delete(s.m, key)
	} else {
		s.m[key] = label
	}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	b, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal nicknames: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".nicknames-*")
	if err != nil {
		return fmt.Errorf("create temp nickname file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp nickname file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp nickname file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace nickname file: %w", err)
	}
	return nil
}
