package fallbackstore

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch invokes onChange with the affected key whenever another process
// writes or removes a value in this store's namespace. This is the same-origin
// multi-tab synchronization mechanism: settings stores subscribe here and
// re-merge their state when an external write lands.
//
// Events for our own writes are delivered too; consumers are expected to be
// idempotent under re-merge. The returned stop function tears the watcher
// down and must be called exactly once.
func (s *Store) Watch(onChange func(key string)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}
				name := filepath.Base(event.Name)
				if strings.HasSuffix(name, ".tmp") {
					continue
				}
				if key, ok := s.keyFromFilename(name); ok {
					onChange(key)
				}
			case <-watcher.Errors:
				// Watch errors are not actionable here. The store keeps
				// working; only change notifications degrade.
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}
