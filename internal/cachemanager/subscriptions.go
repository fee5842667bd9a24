package cachemanager

import "sync"

// subject is the per-key broadcast channel group. One subject exists per
// "type:key" no matter how many subscribers attach; it is created on first
// subscribe and removed when the last subscriber leaves (or by the janitor).
type subject struct {
	mu     sync.Mutex
	subs   map[int]chan []byte
	nextID int
}

func (s *subject) publish(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		// Slow subscribers miss intermediate values rather than blocking the
		// write path.
		select {
		case ch <- data:
		default:
		}
	}
}

// Updates subscribes to future values written for (type, key). The returned
// cancel function must be called to release the subscription; the channel is
// closed on cancel.
func (m *Manager) Updates(cacheType string, key string) (<-chan []byte, func()) {
	subjectKey := entryKey(cacheType, key)

	// The subscriber is added while still holding the map lock. Otherwise a
	// concurrent cancel of the last existing subscriber could drain the
	// subject and delete it from the map, leaving us attached to a subject
	// broadcast can no longer find.
	m.subjectsLock.Lock()
	subj, ok := m.subjects[subjectKey]
	if !ok {
		subj = &subject{subs: make(map[int]chan []byte)}
		m.subjects[subjectKey] = subj
	}
	subj.mu.Lock()
	id := subj.nextID
	subj.nextID++
	ch := make(chan []byte, 16)
	subj.subs[id] = ch
	subj.mu.Unlock()
	m.subjectsLock.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			subj.mu.Lock()
			delete(subj.subs, id)
			empty := len(subj.subs) == 0
			subj.mu.Unlock()
			close(ch)

			if empty {
				m.subjectsLock.Lock()
				// Re-check under the map lock; someone may have subscribed
				// in between.
				subj.mu.Lock()
				if len(subj.subs) == 0 {
					delete(m.subjects, subjectKey)
				}
				subj.mu.Unlock()
				m.subjectsLock.Unlock()
			}
		})
	}

	return ch, cancel
}

func (m *Manager) broadcast(subjectKey string, data []byte) {
	m.subjectsLock.Lock()
	subj, ok := m.subjects[subjectKey]
	m.subjectsLock.Unlock()

	if ok {
		subj.publish(data)
	}
}

func (m *Manager) sweepSubjects() {
	m.subjectsLock.Lock()
	defer m.subjectsLock.Unlock()

	for key, subj := range m.subjects {
		subj.mu.Lock()
		if len(subj.subs) == 0 {
			delete(m.subjects, key)
		}
		subj.mu.Unlock()
	}
}
