package ogclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchOgMetaParsesResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/og-image", r.URL.Path)
		require.Equal(t, "https://blog.example.com/post", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"imageUrl":"https://cdn.example.com/og.jpg","title":"A Post","description":"About things"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	meta, err := client.FetchOgMeta(context.Background(), "https://blog.example.com/post")
	require.NoError(t, err)

	require.Equal(t, "A Post", *meta.Title)
	require.Equal(t, "About things", *meta.Description)
	// Image URLs are rewritten through the edge proxy
	require.Equal(t,
		server.URL+"/api/og-image-proxy?url=https%3A%2F%2Fcdn.example.com%2Fog.jpg",
		*meta.ImageURL,
	)
}

func TestFetchOgMetaDetectsMissingBackend(t *testing.T) {
	t.Parallel()

	// Static hosting answers API paths with the SPA shell
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<!doctype html><html></html>"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	_, err := client.FetchOgMeta(context.Background(), "https://blog.example.com/post")
	require.ErrorIs(t, err, ErrNoBackend)
}

func TestFetchOgMetaTreatsErrorStatusAsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Invalid URL"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	meta, err := client.FetchOgMeta(context.Background(), "not a url")
	require.NoError(t, err)
	require.True(t, meta.IsZero())
}

func TestFetchOgMetaTreatsMalformedJSONAsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"imageUrl":`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	meta, err := client.FetchOgMeta(context.Background(), "https://blog.example.com/post")
	require.NoError(t, err)
	require.True(t, meta.IsZero())
}
