package memorycache_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/lumenhn/lumen/internal/adapters/memorycache"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	t.Parallel()

	cache := memorycache.New(100)
	defer cache.Stop()

	require.Nil(t, cache.Get("story:1"))

	cache.Set("story:1", []byte("a"), time.Hour)
	require.Equal(t, []byte("a"), cache.Get("story:1"))

	cache.Delete("story:1")
	require.Nil(t, cache.Get("story:1"))
}

func TestCapacityEvictsOldestWrite(t *testing.T) {
	t.Parallel()

	cache := memorycache.New(3)
	defer cache.Stop()

	cache.Set("story:1", []byte("1"), time.Hour)
	cache.Set("story:2", []byte("2"), time.Hour)
	cache.Set("story:3", []byte("3"), time.Hour)

	// Reading the oldest entry must not protect it: eviction is by write
	// time, not access.
	require.NotNil(t, cache.Get("story:1"))

	cache.Set("story:4", []byte("4"), time.Hour)

	require.Nil(t, cache.Get("story:1"))
	require.NotNil(t, cache.Get("story:2"))
	require.NotNil(t, cache.Get("story:4"))
	require.Equal(t, 3, cache.Len())
}

func TestExpiry(t *testing.T) {
	t.Parallel()

	cache := memorycache.New(100)
	defer cache.Stop()

	cache.Set("story:1", []byte("1"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	require.Nil(t, cache.Get("story:1"))
}

func TestInfiniteTTL(t *testing.T) {
	t.Parallel()

	cache := memorycache.New(100)
	defer cache.Stop()

	cache.Set("preference:theme", []byte("dark"), -1)
	require.Equal(t, []byte("dark"), cache.Get("preference:theme"))
}

func TestDeleteByPrefixAndPurge(t *testing.T) {
	t.Parallel()

	cache := memorycache.New(100)
	defer cache.Stop()

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("story:%d", i), []byte("s"), time.Hour)
	}
	cache.Set("user:pg", []byte("u"), time.Hour)

	cache.DeleteByPrefix("story:")
	require.Nil(t, cache.Get("story:0"))
	require.NotNil(t, cache.Get("user:pg"))

	cache.Purge()
	require.Equal(t, 0, cache.Len())
}
