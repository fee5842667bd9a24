// Package cachemanager orchestrates the cache tiers.
//
// Reads go memory -> primary tier -> fallback tier, populating memory on the
// way back. Writes go primary-first; the fallback tier is best effort and
// never fails a call. Stale-while-revalidate reads serve whatever is cached
// and refresh in the background, with at most one in-flight fetch per key.
package cachemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
	"github.com/lumenhn/lumen/internal/adapters/memorycache"
	"github.com/lumenhn/lumen/internal/adapters/persistence"
	"golang.org/x/sync/singleflight"
)

const janitorInterval = 60 * time.Second

type Manager struct {
	memory   *memorycache.Cache
	store    *persistence.Store
	fallback *fallbackstore.Store
	nowFunc  func() time.Time
	logger   *slog.Logger

	group singleflight.Group

	subjectsLock sync.Mutex
	subjects     map[string]*subject

	janitorStop chan struct{}
	stopOnce    sync.Once
}

func New(
	memory *memorycache.Cache,
	store *persistence.Store,
	fallback *fallbackstore.Store,
	nowFunc func() time.Time,
	logger *slog.Logger,
) *Manager {
	m := &Manager{
		memory:      memory,
		store:       store,
		fallback:    fallback,
		nowFunc:     nowFunc,
		logger:      logger,
		subjects:    make(map[string]*subject),
		janitorStop: make(chan struct{}),
	}

	go m.janitor()

	return m
}

func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.janitorStop)
	})
}

// The memory tier handles its own TTL and capacity eviction; the janitor
// only sweeps update subjects nobody listens to anymore.
func (m *Manager) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepSubjects()
		case <-m.janitorStop:
			return
		}
	}
}

func entryKey(cacheType string, key string) string {
	return fmt.Sprintf("%s:%s", cacheType, key)
}

// fallbackEntry wraps fallback-tier payloads with the freshness metadata the
// structured store keeps in table columns.
type fallbackEntry struct {
	Data        json.RawMessage `json:"data"`
	TimestampMS int64           `json:"timestamp"`
	TTLMS       int64           `json:"ttl"`
}

func (m *Manager) fallbackGet(cacheType string, key string) []byte {
	entry, found := fallbackstore.GetJSON[fallbackEntry](m.fallback, entryKey(cacheType, key))
	if !found {
		return nil
	}

	if entry.TTLMS >= 0 && m.nowFunc().UnixMilli()-entry.TimestampMS > entry.TTLMS {
		if err := m.fallback.Delete(entryKey(cacheType, key)); err != nil {
			m.logger.Warn("Failed to delete expired fallback entry", "type", cacheType, "error", err.Error())
		}
		return nil
	}

	return entry.Data
}

func (m *Manager) fallbackSet(cacheType string, key string, data []byte, ttl time.Duration) error {
	ttlMS := int64(-1)
	if ttl >= 0 {
		ttlMS = ttl.Milliseconds()
	}
	return fallbackstore.SetJSON(m.fallback, entryKey(cacheType, key), fallbackEntry{
		Data:        data,
		TimestampMS: m.nowFunc().UnixMilli(),
		TTLMS:       ttlMS,
	})
}

// Get returns the cached payload for (type, key), or nil. Hits from a
// storage tier populate the memory cache.
func (m *Manager) Get(ctx context.Context, cacheType string, key string) []byte {
	memKey := entryKey(cacheType, key)
	if data := m.memory.Get(memKey); data != nil {
		return data
	}

	config := ConfigFor(cacheType)

	var data []byte
	if config.Primary == TierPersistent {
		data = m.store.Get(ctx, config.Collection, key)
		if data == nil && config.HasFallback {
			data = m.fallbackGet(cacheType, key)
		}
	} else {
		data = m.fallbackGet(cacheType, key)
	}

	if data == nil {
		return nil
	}

	m.memory.Set(memKey, data, config.TTL)
	return data
}

// Set writes using the type's configured TTL.
func (m *Manager) Set(ctx context.Context, cacheType string, key string, data []byte) error {
	return m.SetWithTTL(ctx, cacheType, key, data, ConfigFor(cacheType).TTL)
}

// SetWithTTL writes the primary tier first. Only after the primary write
// succeeds is the memory cache updated and the value broadcast to
// subscribers; a best-effort fallback write in between never fails the call.
func (m *Manager) SetWithTTL(ctx context.Context, cacheType string, key string, data []byte, ttl time.Duration) error {
	config := ConfigFor(cacheType)

	if config.Primary == TierPersistent {
		if err := m.store.Set(ctx, config.Collection, key, data, ttl); err != nil {
			return fmt.Errorf("cachemanager: primary tier write failed: %w", err)
		}
		if config.HasFallback {
			if err := m.fallbackSet(cacheType, key, data, ttl); err != nil {
				m.logger.Warn("Fallback tier write failed", "type", cacheType, "error", err.Error())
			}
		}
	} else {
		if err := m.fallbackSet(cacheType, key, data, ttl); err != nil {
			return fmt.Errorf("cachemanager: primary tier write failed: %w", err)
		}
	}

	m.memory.Set(entryKey(cacheType, key), data, ttl)
	m.broadcast(entryKey(cacheType, key), data)

	return nil
}

func (m *Manager) Delete(ctx context.Context, cacheType string, key string) error {
	config := ConfigFor(cacheType)

	m.memory.Delete(entryKey(cacheType, key))

	if config.Primary == TierPersistent {
		if err := m.store.Delete(ctx, config.Collection, key); err != nil {
			return err
		}
	}

	return m.fallback.Delete(entryKey(cacheType, key))
}

// Clear with an empty cacheType clears every tier completely. With a type it
// clears only that type's memory keys, its mapped collection, and its
// fallback entries.
func (m *Manager) Clear(ctx context.Context, cacheType string) error {
	if cacheType == "" {
		m.memory.Purge()
		if err := m.store.ClearAll(ctx); err != nil {
			return err
		}
		return m.fallback.Clear()
	}

	config := ConfigFor(cacheType)

	m.memory.DeleteByPrefix(cacheType + ":")

	if config.Primary == TierPersistent {
		if err := m.store.Clear(ctx, config.Collection); err != nil {
			return err
		}
	}

	prefix := cacheType + ":"
	for _, key := range m.fallback.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			if err := m.fallback.Delete(key); err != nil {
				return err
			}
		}
	}

	return nil
}

// Prefetch fires concurrent gets for each key, for the population side
// effect only.
func (m *Manager) Prefetch(ctx context.Context, cacheType string, keys []string) {
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			m.Get(ctx, cacheType, key)
		}(key)
	}
	wg.Wait()
}

type Stats struct {
	MemoryEntries int
	Storage       persistence.StorageStats
}

// GetStats is best effort and never fails; unavailable storage reports
// zeros.
func (m *Manager) GetStats(ctx context.Context) Stats {
	return Stats{
		MemoryEntries: m.memory.Len(),
		Storage:       m.store.Stats(ctx),
	}
}
