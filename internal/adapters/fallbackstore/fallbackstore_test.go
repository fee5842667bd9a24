package fallbackstore_test

import (
	"testing"
	"time"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundtrip(t *testing.T) {
	t.Parallel()

	store, err := fallbackstore.New(t.TempDir(), "lumen")
	require.NoError(t, err)

	_, found := store.Get("missing")
	require.False(t, found)

	require.NoError(t, store.Set("settings/privacy", []byte(`{"enabled":true}`)))

	data, found := store.Get("settings/privacy")
	require.True(t, found)
	require.JSONEq(t, `{"enabled":true}`, string(data))

	require.NoError(t, store.Delete("settings/privacy"))
	_, found = store.Get("settings/privacy")
	require.False(t, found)

	// Deleting a missing key is a no-op
	require.NoError(t, store.Delete("settings/privacy"))
}

func TestStoreNamespacing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lumen, err := fallbackstore.New(dir, "lumen")
	require.NoError(t, err)
	other, err := fallbackstore.New(dir, "other")
	require.NoError(t, err)

	require.NoError(t, lumen.Set("key", []byte("a")))
	require.NoError(t, other.Set("key", []byte("b")))

	data, found := lumen.Get("key")
	require.True(t, found)
	require.Equal(t, "a", string(data))

	require.ElementsMatch(t, []string{"key"}, lumen.Keys())

	require.NoError(t, lumen.Clear())
	require.Empty(t, lumen.Keys())

	// Clearing one namespace leaves the other untouched
	data, found = other.Get("key")
	require.True(t, found)
	require.Equal(t, "b", string(data))
}

func TestStoreKeysWithSpecialCharacters(t *testing.T) {
	t.Parallel()

	store, err := fallbackstore.New(t.TempDir(), "lumen")
	require.NoError(t, err)

	key := "og:https://example.com/post?id=1"
	require.NoError(t, store.Set(key, []byte("x")))

	require.ElementsMatch(t, []string{key}, store.Keys())

	data, found := store.Get(key)
	require.True(t, found)
	require.Equal(t, "x", string(data))
}

func TestGetJSONIgnoresCorruptValues(t *testing.T) {
	t.Parallel()

	store, err := fallbackstore.New(t.TempDir(), "lumen")
	require.NoError(t, err)

	require.NoError(t, store.Set("corrupt", []byte("{not json")))

	_, found := fallbackstore.GetJSON[map[string]bool](store, "corrupt")
	require.False(t, found)

	require.NoError(t, fallbackstore.SetJSON(store, "valid", map[string]bool{"x": true}))
	value, found := fallbackstore.GetJSON[map[string]bool](store, "valid")
	require.True(t, found)
	require.Equal(t, map[string]bool{"x": true}, value)
}

func TestWatchSeesExternalWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := fallbackstore.New(dir, "lumen")
	require.NoError(t, err)

	changed := make(chan string, 16)
	stop, err := store.Watch(func(key string) {
		changed <- key
	})
	require.NoError(t, err)
	defer stop()

	// Writes from a second store over the same directory model another tab.
	otherTab, err := fallbackstore.New(dir, "lumen")
	require.NoError(t, err)
	require.NoError(t, otherTab.Set("settings/privacy", []byte(`{"enabled":true}`)))

	select {
	case key := <-changed:
		require.Equal(t, "settings/privacy", key)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
