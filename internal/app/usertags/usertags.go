// Package usertags keeps the reader's per-username labels. The whole map
// lives under a single fallback-store key and re-merges when another reader
// instance writes it.
package usertags

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
)

const tagsKey = "userTags"

type Store struct {
	store  *fallbackstore.Store
	logger *slog.Logger

	mutex sync.Mutex
	tags  map[string]string

	stopWatch func()
}

func NewStore(store *fallbackstore.Store, logger *slog.Logger) (*Store, error) {
	s := &Store{
		store:  store,
		logger: logger,
	}
	s.tags = s.load()

	stopWatch, err := store.Watch(s.onStoreChange)
	if err != nil {
		return nil, fmt.Errorf("usertags: failed to watch store: %w", err)
	}
	s.stopWatch = stopWatch

	return s, nil
}

func (s *Store) Close() {
	s.stopWatch()
}

func (s *Store) load() map[string]string {
	tags, found := fallbackstore.GetJSON[map[string]string](s.store, tagsKey)
	if !found || tags == nil {
		return map[string]string{}
	}
	return tags
}

func (s *Store) onStoreChange(key string) {
	if key != tagsKey {
		return
	}

	loaded := s.load()

	s.mutex.Lock()
	s.tags = loaded
	s.mutex.Unlock()
}

// Tag returns the label for a username, or "" when none is set.
func (s *Store) Tag(username string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tags[username]
}

// SetTag stores a label for a username. An empty or blank tag removes the
// entry instead.
func (s *Store) SetTag(username string, tag string) error {
	tag = strings.TrimSpace(tag)

	s.mutex.Lock()
	if tag == "" {
		delete(s.tags, username)
	} else {
		s.tags[username] = tag
	}
	snapshot := make(map[string]string, len(s.tags))
	for name, value := range s.tags {
		snapshot[name] = value
	}
	s.mutex.Unlock()

	if err := fallbackstore.SetJSON(s.store, tagsKey, snapshot); err != nil {
		return fmt.Errorf("usertags: failed to persist tags: %w", err)
	}
	return nil
}

// All returns a copy of the current username -> tag map.
func (s *Store) All() map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	all := make(map[string]string, len(s.tags))
	for name, value := range s.tags {
		all[name] = value
	}
	return all
}
