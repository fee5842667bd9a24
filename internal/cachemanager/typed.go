package cachemanager

import (
	"context"
	"encoding/json"
	"fmt"
)

// Typed access over the manager's raw JSON payloads, in the same
// generic-free-function shape as the adapters.

func GetAs[T any](ctx context.Context, m *Manager, cacheType string, key string) *T {
	data := m.Get(ctx, cacheType, key)
	if data == nil {
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		m.logger.Warn("Failed to unmarshal cached value", "type", cacheType, "key", key, "error", err.Error())
		return nil
	}
	return &value
}

func SetAs[T any](ctx context.Context, m *Manager, cacheType string, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cachemanager: failed to marshal value: %w", err)
	}
	return m.Set(ctx, cacheType, key, data)
}

// GetWithSWRAs wraps GetWithSWR for typed payloads. A fetcher returning nil
// means "no data" and is not cached.
func GetWithSWRAs[T any](
	ctx context.Context,
	m *Manager,
	cacheType string,
	key string,
	fetch func(ctx context.Context) (*T, error),
) (*T, error) {
	data, err := m.GetWithSWR(ctx, cacheType, key, func(ctx context.Context) ([]byte, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, nil
		}
		return json.Marshal(value)
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("cachemanager: failed to unmarshal fetched value: %w", err)
	}
	return &value, nil
}
