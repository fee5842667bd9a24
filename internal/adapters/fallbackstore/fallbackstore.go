// Package fallbackstore is a namespaced key-value store over plain files.
//
// It is the storage tier of last resort: always available, synchronous, no
// schema. The cache manager routes writes here when the structured store
// failed to open, and the settings services use it as their primary store.
package fallbackstore

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Store struct {
	dir       string
	namespace string

	mu sync.Mutex
}

func New(dir string, namespace string) (*Store, error) {
	if namespace == "" || strings.Contains(namespace, "_") {
		return nil, fmt.Errorf("invalid namespace %q", namespace)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fallbackstore: failed to create directory: %w", err)
	}

	return &Store{
		dir:       dir,
		namespace: namespace,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, s.filename(key))
}

func (s *Store) filename(key string) string {
	return fmt.Sprintf("%s_%s", s.namespace, url.PathEscape(key))
}

func (s *Store) keyFromFilename(name string) (string, bool) {
	prefix := s.namespace + "_"
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(name, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// Get returns the stored value for key, or found=false. Unreadable files are
// treated as absent.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Write-then-rename so watchers and concurrent readers never observe a
	// half-written value.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("fallbackstore: failed to write %q: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("fallbackstore: failed to replace %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fallbackstore: failed to delete %q: %w", key, err)
	}
	return nil
}

// Keys lists every key in this store's namespace.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		if key, ok := s.keyFromFilename(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *Store) Clear() error {
	for _, key := range s.Keys() {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// GetJSON reads and unmarshals the value for key into T.
func GetJSON[T any](s *Store, key string) (T, bool) {
	var value T

	data, found := s.Get(key)
	if !found {
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		// We wrote this value ourselves, so a parse failure means the file
		// was corrupted externally. Treat as absent.
		return value, false
	}

	return value, true
}

func SetJSON[T any](s *Store, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("fallbackstore: failed to marshal %q: %w", key, err)
	}
	return s.Set(key, data)
}
