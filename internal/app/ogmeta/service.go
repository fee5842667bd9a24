// Package ogmeta resolves article preview metadata for links as they become
// visible in the reader. Fetches are queued with a small concurrency cap so a
// fast-scrolling feed does not fan out into dozens of simultaneous requests.
package ogmeta

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/lumenhn/lumen/internal/adapters/ogclient"
	"github.com/lumenhn/lumen/internal/cachemanager"
	"github.com/lumenhn/lumen/internal/domain"
	"github.com/lumenhn/lumen/internal/logging"
	"github.com/lumenhn/lumen/internal/safeurl"
)

const maxConcurrentFetches = 5

// Target is an opaque handle for whatever the Observer tracks visibility of.
type Target any

// Observer reports when a target scrolls into view. The production
// implementation wraps the platform's intersection observer; Observe returns
// an unobserve func.
type Observer interface {
	Observe(target Target, onVisible func()) func()
}

type Fetcher interface {
	FetchOgMeta(ctx context.Context, articleURL string) (domain.OgMeta, error)
}

type listener struct {
	id int
	cb func(domain.OgMeta)
}

type Service struct {
	manager  *cachemanager.Manager
	fetcher  Fetcher
	observer Observer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex          sync.Mutex
	nextListenerID int
	listeners      map[string][]listener
	resolved       map[string]domain.OgMeta
	queue          []string
	queued         map[string]bool
	active         map[string]bool
	backendMissing bool
}

func NewService(manager *cachemanager.Manager, fetcher Fetcher, observer Observer, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		manager:   manager,
		fetcher:   fetcher,
		observer:  observer,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		listeners: map[string][]listener{},
		resolved:  map[string]domain.OgMeta{},
		queued:    map[string]bool{},
		active:    map[string]bool{},
	}
}

// Close cancels in-flight fetches. Pending callbacks may still fire with the
// all-null result.
func (s *Service) Close() {
	s.cancel()
}

// Observe registers interest in the article's preview metadata. The callback
// fires once the metadata resolves. Unsafe URLs resolve synchronously to the
// all-null result. Already-resolved URLs replay synchronously, and the
// callback additionally receives values written by later background
// refreshes. The returned func deregisters the callback and the visibility
// watch.
func (s *Service) Observe(target Target, articleURL string, cb func(domain.OgMeta)) func() {
	if safeurl.IsSafePublicURL(articleURL) == nil {
		cb(domain.OgMeta{})
		return func() {}
	}

	s.mutex.Lock()
	if meta, ok := s.resolved[articleURL]; ok {
		s.mutex.Unlock()
		// Replay synchronously and keep the callback registered for values
		// written by future background refreshes.
		updates, cancelUpdates := s.manager.Updates(cachemanager.TypeOgImage, "og:"+articleURL)
		go forwardUpdates(updates, cb)
		cb(meta)
		return cancelUpdates
	}

	s.nextListenerID++
	id := s.nextListenerID
	s.listeners[articleURL] = append(s.listeners[articleURL], listener{id: id, cb: cb})
	s.mutex.Unlock()

	var once sync.Once
	var unobserve func()
	unobserve = s.observer.Observe(target, func() {
		// One-shot: the first visibility event schedules the fetch.
		once.Do(func() {
			if unobserve != nil {
				unobserve()
			}
			s.enqueue(articleURL)
		})
	})

	return func() {
		unobserve()
		s.mutex.Lock()
		defer s.mutex.Unlock()
		remaining := s.listeners[articleURL][:0]
		for _, l := range s.listeners[articleURL] {
			if l.id != id {
				remaining = append(remaining, l)
			}
		}
		if len(remaining) == 0 {
			delete(s.listeners, articleURL)
		} else {
			s.listeners[articleURL] = remaining
		}
	}
}

func (s *Service) enqueue(articleURL string) {
	s.mutex.Lock()

	if s.backendMissing {
		s.mutex.Unlock()
		s.complete(articleURL, domain.OgMeta{})
		return
	}

	if _, ok := s.resolved[articleURL]; ok || s.queued[articleURL] || s.active[articleURL] {
		s.mutex.Unlock()
		return
	}

	if len(s.active) < maxConcurrentFetches {
		s.active[articleURL] = true
		s.mutex.Unlock()
		go s.fetch(articleURL)
		return
	}

	s.queued[articleURL] = true
	s.queue = append(s.queue, articleURL)
	s.mutex.Unlock()
}

func (s *Service) fetch(articleURL string) {
	ctx := logging.AddToContext(s.ctx, s.logger)

	meta, err := cachemanager.GetWithSWRAs(
		ctx, s.manager, cachemanager.TypeOgImage, "og:"+articleURL,
		func(ctx context.Context) (*domain.OgMeta, error) {
			fetched, err := s.fetcher.FetchOgMeta(ctx, articleURL)
			if err != nil {
				return nil, err
			}
			// The all-null result is cached too, so failed articles are not
			// re-fetched every scroll.
			return &fetched, nil
		},
	)
	if err != nil {
		if errors.Is(err, ogclient.ErrNoBackend) {
			s.mutex.Lock()
			s.backendMissing = true
			s.mutex.Unlock()
		} else {
			s.logger.Warn("OG metadata fetch failed", "url", articleURL, "error", err.Error())
		}
	}

	result := domain.OgMeta{}
	if meta != nil {
		result = *meta
	}
	s.complete(articleURL, result)
}

// complete records the result, notifies every listener for the URL, and
// starts the next queued fetch if a slot opened up.
func (s *Service) complete(articleURL string, meta domain.OgMeta) {
	s.mutex.Lock()
	s.resolved[articleURL] = meta
	notify := s.listeners[articleURL]
	delete(s.listeners, articleURL)
	delete(s.active, articleURL)
	delete(s.queued, articleURL)

	var next string
	if len(s.queue) > 0 && len(s.active) < maxConcurrentFetches {
		next = s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, next)
		s.active[next] = true
	}
	s.mutex.Unlock()

	for _, l := range notify {
		l.cb(meta)
	}

	if next != "" {
		go s.fetch(next)
	}
}

func forwardUpdates(updates <-chan []byte, cb func(domain.OgMeta)) {
	for data := range updates {
		var meta domain.OgMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		cb(meta)
	}
}
