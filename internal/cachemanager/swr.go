package cachemanager

import (
	"context"
	"fmt"
)

// Fetcher produces a fresh payload for one cache key. A nil, nil return
// means "no data": nothing is written and the caller sees a miss.
type Fetcher func(ctx context.Context) ([]byte, error)

// GetWithSWR implements stale-while-revalidate reads.
//
// On a cache hit the cached value is returned immediately and a background
// refresh is started, unless one for this exact key is already in flight;
// background refresh errors are logged and swallowed. On a miss the caller
// either joins an in-flight fetch or starts one and awaits it. In both paths
// the singleflight group guarantees at most one concurrent fetch per key.
func (m *Manager) GetWithSWR(ctx context.Context, cacheType string, key string, fetch Fetcher) ([]byte, error) {
	if cached := m.Get(ctx, cacheType, key); cached != nil {
		m.revalidate(ctx, cacheType, key, fetch)
		return cached, nil
	}

	data, err, _ := m.group.Do(entryKey(cacheType, key), func() (any, error) {
		return m.fetchAndStore(ctx, cacheType, key, fetch)
	})
	if err != nil {
		return nil, fmt.Errorf("cachemanager: fetch failed: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return data.([]byte), nil
}

func (m *Manager) revalidate(ctx context.Context, cacheType string, key string, fetch Fetcher) {
	// Detach from the request: the refresh belongs to the cache, not to the
	// caller that happened to trigger it.
	refreshCtx := context.WithoutCancel(ctx)

	go func() {
		_, err, _ := m.group.Do(entryKey(cacheType, key), func() (any, error) {
			return m.fetchAndStore(refreshCtx, cacheType, key, fetch)
		})
		if err != nil {
			m.logger.Warn("Background refresh failed", "type", cacheType, "key", key, "error", err.Error())
		}
	}()
}

func (m *Manager) fetchAndStore(ctx context.Context, cacheType string, key string, fetch Fetcher) ([]byte, error) {
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		// "No data" is not cached: the next read tries again.
		return nil, nil
	}

	if err := m.Set(ctx, cacheType, key, data); err != nil {
		// The fetch succeeded; a failed write only costs us the caching.
		m.logger.Warn("Failed to store fetched value", "type", cacheType, "key", key, "error", err.Error())
	}

	return data, nil
}
