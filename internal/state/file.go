package state

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

var currentFileVersion = 1

// FileStore is a Store persisted as a single text file.
type FileStore struct {
	mu   sync.RWMutex
	path string

	values map[string]string
}

// OpenFileStore parses the on-disk store file and returns a FileStore.
// If no file exists, a new empty one is created.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		values: map[string]string{},
	}

	// #nosec G304
	body, err := os.ReadFile(path)
	if err == nil {
		version, values, err := Decode(body)
		if err != nil {
			return nil, err
		}

		if version > currentFileVersion {
			slog.Warn("Configuration store was written by a newer version", "path", path, "version", version)
		}

		s.values = values

		return s, nil
	}

	if !os.IsNotExist(err) {
		return nil, err
	}

	// Store file doesn't exist, create it.
	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, err
	}

	err = s.save()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// GetString returns the value of key and whether it was set.
func (s *FileStore) GetString(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]

	return value, ok, nil
}

// SetString stores value under key and writes the store to disk.
func (s *FileStore) SetString(key string, value string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.values[key]
	s.values[key] = value

	err := s.save()
	if err != nil {
		// Keep memory and disk consistent.
		if existed {
			s.values[key] = old
		} else {
			delete(s.values, key)
		}

		return err
	}

	return nil
}

// ClearAll removes every key and writes the empty store to disk.
func (s *FileStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.values
	s.values = map[string]string{}

	err := s.save()
	if err != nil {
		s.values = old

		return err
	}

	return nil
}

// Keys returns the sorted list of keys.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys, nil
}

// save atomically replaces the on-disk store.
func (s *FileStore) save() error {
	tmp := s.path + ".tmp"

	err := os.WriteFile(tmp, Encode(currentFileVersion, s.values), 0o600)
	if err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}
