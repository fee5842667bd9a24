// Package privacyredirect rewrites outbound article links to privacy-friendly
// frontends. Settings persist on the fallback store and stay in sync across
// concurrently running readers through the store's change notifications.
package privacyredirect

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
)

const settingsKey = "privacyRedirectSettings"

// Settings as persisted. Unknown services in a stored blob are kept verbatim;
// services missing from it are filled from the defaults on load.
type Settings struct {
	Enabled  bool            `json:"enabled"`
	Services map[string]bool `json:"services"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled: false,
		Services: map[string]bool{
			"youtube": true,
			"twitter": true,
			"reddit":  true,
			"medium":  true,
		},
	}
}

// mergeWithDefaults fills gaps so a blob written by an older version never
// leaves a known service unset.
func mergeWithDefaults(stored Settings) Settings {
	defaults := DefaultSettings()

	merged := Settings{
		Enabled:  stored.Enabled,
		Services: map[string]bool{},
	}
	for name, enabled := range defaults.Services {
		merged.Services[name] = enabled
	}
	for name, enabled := range stored.Services {
		merged.Services[name] = enabled
	}
	return merged
}

// Instances maps a service name to the frontend base URLs currently up,
// fetched from an upstream instance directory.
type Instances map[string][]string

type InstanceFetcher interface {
	FetchInstances(ctx context.Context) (Instances, error)
}

type Service struct {
	store   *fallbackstore.Store
	fetcher InstanceFetcher
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex     sync.Mutex
	settings  Settings
	instances Instances
	fetching  bool

	stopWatch func()
}

// NewService loads persisted settings, starts watching for external changes,
// and begins fetching the instance list if redirects are enabled.
func NewService(store *fallbackstore.Store, fetcher InstanceFetcher, logger *slog.Logger) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	s.settings = s.load()

	stopWatch, err := store.Watch(s.onStoreChange)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("privacyredirect: failed to watch settings: %w", err)
	}
	s.stopWatch = stopWatch

	if s.settings.Enabled {
		s.ensureInstances()
	}

	return s, nil
}

func (s *Service) Close() {
	s.cancel()
	s.stopWatch()
}

func (s *Service) load() Settings {
	stored, found := fallbackstore.GetJSON[Settings](s.store, settingsKey)
	if !found {
		return DefaultSettings()
	}
	return mergeWithDefaults(stored)
}

// Settings returns a copy; mutating the returned map does not affect the
// service until the copy is passed back through UpdateSettings.
func (s *Service) Settings() Settings {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	services := make(map[string]bool, len(s.settings.Services))
	for name, enabled := range s.settings.Services {
		services[name] = enabled
	}
	return Settings{Enabled: s.settings.Enabled, Services: services}
}

// UpdateSettings persists the new settings and starts the instance fetch if
// redirects just became enabled.
func (s *Service) UpdateSettings(settings Settings) error {
	merged := mergeWithDefaults(settings)

	s.mutex.Lock()
	wasEnabled := s.settings.Enabled
	s.settings = merged
	s.mutex.Unlock()

	if err := fallbackstore.SetJSON(s.store, settingsKey, merged); err != nil {
		return fmt.Errorf("privacyredirect: failed to persist settings: %w", err)
	}

	if merged.Enabled && !wasEnabled {
		s.ensureInstances()
	}
	return nil
}

// onStoreChange re-merges settings written by another reader instance.
func (s *Service) onStoreChange(key string) {
	if key != settingsKey {
		return
	}

	loaded := s.load()

	s.mutex.Lock()
	wasEnabled := s.settings.Enabled
	s.settings = loaded
	s.mutex.Unlock()

	if loaded.Enabled && !wasEnabled {
		s.ensureInstances()
	}
}

// ensureInstances fetches the upstream instance directory, retrying forever
// with exponential backoff until it succeeds or the service closes. At most
// one fetch loop runs at a time.
func (s *Service) ensureInstances() {
	s.mutex.Lock()
	if s.fetching || s.instances != nil {
		s.mutex.Unlock()
		return
	}
	s.fetching = true
	s.mutex.Unlock()

	go func() {
		defer func() {
			s.mutex.Lock()
			s.fetching = false
			s.mutex.Unlock()
		}()

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = time.Second
		policy.Multiplier = 2
		policy.MaxInterval = 5 * time.Minute
		policy.MaxElapsedTime = 0

		err := backoff.Retry(func() error {
			instances, err := s.fetcher.FetchInstances(s.ctx)
			if err != nil {
				s.logger.Warn("Instance list fetch failed", "error", err.Error())
				return err
			}

			s.mutex.Lock()
			s.instances = instances
			s.mutex.Unlock()
			return nil
		}, backoff.WithContext(policy, s.ctx))
		if err != nil && s.ctx.Err() == nil {
			s.logger.Warn("Instance list fetch gave up", "error", err.Error())
		}
	}()
}

// serviceForHost maps an article link's hostname to a redirect service.
func serviceForHost(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	switch {
	case host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com":
		return "youtube"
	case host == "twitter.com" || host == "x.com" || host == "mobile.twitter.com":
		return "twitter"
	case host == "reddit.com" || host == "old.reddit.com":
		return "reddit"
	case host == "medium.com" || strings.HasSuffix(host, ".medium.com"):
		return "medium"
	default:
		return ""
	}
}

// RedirectURL rewrites the link to a privacy frontend when redirects are
// enabled for its service and an instance is known. The second return
// reports whether a rewrite happened.
func (s *Service) RedirectURL(raw string) (string, bool) {
	s.mutex.Lock()
	settings := s.settings
	instances := s.instances
	s.mutex.Unlock()

	if !settings.Enabled || instances == nil {
		return raw, false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw, false
	}

	service := serviceForHost(parsed.Hostname())
	if service == "" || !settings.Services[service] {
		return raw, false
	}

	available := instances[service]
	if len(available) == 0 {
		return raw, false
	}

	frontend, err := url.Parse(available[0])
	if err != nil {
		return raw, false
	}

	parsed.Scheme = frontend.Scheme
	parsed.Host = frontend.Host
	return parsed.String(), true
}
