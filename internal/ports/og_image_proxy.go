package ports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lumenhn/lumen/internal/adapters/ogprovider"
	"github.com/lumenhn/lumen/internal/logging"
	"github.com/lumenhn/lumen/internal/ratelimiting"
)

type imageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*ogprovider.Image, error)
}

// MakeOgImageProxyHandler serves GET /api/og-image-proxy?url=<image URL>:
// fetches a previously discovered preview image and relays it so the reader
// never connects to third-party hosts. The proxy returns real HTTP errors so
// the browser's broken-image fallback applies.
func MakeOgImageProxyHandler(
	fetcher imageFetcher,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("og-image-proxy"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		NewCORSMiddleware(),
		NewRateLimitMiddleware(ipRateLimiter, onRateLimitExceeded(ipRateLimiter)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawURL := r.URL.Query().Get("url")
		if rawURL == "" {
			statusCode := http.StatusBadRequest
			logging.FromContext(ctx).Info("Rejected image proxy request", "statusCode", statusCode, "reason", "missing url")
			http.Error(w, "Missing url parameter", statusCode)
			return
		}

		image, err := fetcher.FetchImage(ctx, rawURL)
		if err != nil {
			statusCode := statusForImageError(err)
			logging.FromContext(ctx).Info("Image proxy fetch rejected", "statusCode", statusCode, "error", err.Error())
			http.Error(w, http.StatusText(statusCode), statusCode)
			return
		}

		w.Header().Set("Content-Type", image.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
		w.Header().Set("Cache-Control", cacheControlWeek)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Disposition", "inline")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(image.Data); err != nil {
			logging.FromContext(ctx).Error("Failed to write image response", "error", err)
		}
	}

	return middleware(handler)
}

func statusForImageError(err error) int {
	switch {
	case errors.Is(err, ogprovider.ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, ogprovider.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ogprovider.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
