package ports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhn/lumen/internal/app"
	"github.com/lumenhn/lumen/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func noopSentryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return next
}

func fixedOgMeta(meta domain.OgMeta, err error) app.FetchArticleOgMeta {
	return func(ctx context.Context, articleURL string) (domain.OgMeta, error) {
		return meta, err
	}
}

func strPtr(s string) *string {
	return &s
}

func TestOgImageHandlerRejectsMissingAndUnsafeURLs(t *testing.T) {
	t.Parallel()

	handler := MakeOgImageHandler(fixedOgMeta(domain.OgMeta{}, nil), newTestLogger(), noopSentryMiddleware)

	for _, target := range []string{
		"/api/og-image",
		"/api/og-image?url=",
		"/api/og-image?url=http%3A%2F%2Flocalhost%2Fx",
		"/api/og-image?url=http%3A%2F%2F169.254.169.254%2Flatest",
		"/api/og-image?url=not-a-url",
	} {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusBadRequest, w.Code, "target: %s", target)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		require.JSONEq(t, `{"imageUrl":null,"title":null,"description":null}`, w.Body.String())
	}
}

func TestOgImageHandlerServesMetadata(t *testing.T) {
	t.Parallel()

	fetch := fixedOgMeta(domain.OgMeta{
		ImageURL:    strPtr("https://cdn.example.com/og.jpg"),
		Title:       strPtr("A Post"),
		Description: strPtr("About things"),
	}, nil)
	handler := MakeOgImageHandler(fetch, newTestLogger(), noopSentryMiddleware)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/og-image?url=https%3A%2F%2Fblog.example.com%2Fpost", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "public, max-age=604800", w.Header().Get("Cache-Control"))
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.JSONEq(t, `{"imageUrl":"https://cdn.example.com/og.jpg","title":"A Post","description":"About things"}`, w.Body.String())
}

func TestOgImageHandlerNullsUnsafeDiscoveredImage(t *testing.T) {
	t.Parallel()

	fetch := fixedOgMeta(domain.OgMeta{
		ImageURL: strPtr("http://169.254.169.254/latest/meta-data/"),
		Title:    strPtr("A Post"),
	}, nil)
	handler := MakeOgImageHandler(fetch, newTestLogger(), noopSentryMiddleware)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/og-image?url=https%3A%2F%2Fblog.example.com%2Fpost", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"imageUrl":null,"title":"A Post","description":null}`, w.Body.String())
}

func TestOgImageHandlerCachesFailuresBriefly(t *testing.T) {
	t.Parallel()

	handler := MakeOgImageHandler(fixedOgMeta(domain.OgMeta{}, errors.New("boom")), newTestLogger(), noopSentryMiddleware)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/og-image?url=https%3A%2F%2Fblog.example.com%2Fpost", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"imageUrl":null,"title":null,"description":null}`, w.Body.String())
}

func TestOgImageHandlerAnswersPreflight(t *testing.T) {
	t.Parallel()

	handler := MakeOgImageHandler(fixedOgMeta(domain.OgMeta{}, nil), newTestLogger(), noopSentryMiddleware)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodOptions, "/api/og-image", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
}
