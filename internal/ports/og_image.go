package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lumenhn/lumen/internal/app"
	"github.com/lumenhn/lumen/internal/domain"
	e "github.com/lumenhn/lumen/internal/errors"
	"github.com/lumenhn/lumen/internal/logging"
	"github.com/lumenhn/lumen/internal/ratelimiting"
	"github.com/lumenhn/lumen/internal/reporting"
	"github.com/lumenhn/lumen/internal/safeurl"
)

const (
	cacheControlWeek = "public, max-age=604800"
	cacheControlHour = "public, max-age=3600"
)

// MakeOgImageHandler serves GET /api/og-image?url=<article URL>: the preview
// metadata for an article, as JSON. Results cache for a week; internal
// failures cache for an hour so a broken page does not get hammered.
func MakeOgImageHandler(
	fetchArticleOgMeta app.FetchArticleOgMeta,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(4),
		ratelimiting.BurstSize(240),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("og-image"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		NewCORSMiddleware(),
		NewRateLimitMiddleware(ipRateLimiter, onRateLimitExceeded(ipRateLimiter)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawURL := r.URL.Query().Get("url")
		if safeurl.IsSafePublicURL(rawURL) == nil {
			statusCode := http.StatusBadRequest
			logging.FromContext(ctx).Info("Rejected og-image request", "statusCode", statusCode, "reason", "missing or unsafe url")
			writeOgMetaResponse(ctx, w, statusCode, "", domain.OgMeta{})
			return
		}

		meta, err := fetchArticleOgMeta(ctx, rawURL)
		if err != nil {
			logging.FromContext(ctx).Error("Error fetching og metadata", "error", err)
			reporting.Report(ctx, fmt.Errorf("failed to fetch og metadata: %w", err))

			writeOgMetaResponse(ctx, w, http.StatusOK, cacheControlHour, domain.OgMeta{})
			return
		}

		// The discovered image came off a third-party page; it goes through
		// the same safety gate as user-supplied URLs before we hand it out.
		if meta.ImageURL != nil && safeurl.IsSafePublicURL(*meta.ImageURL) == nil {
			meta.ImageURL = nil
		}

		writeOgMetaResponse(ctx, w, http.StatusOK, cacheControlWeek, meta)
	}

	return middleware(handler)
}

func writeOgMetaResponse(ctx context.Context, w http.ResponseWriter, statusCode int, cacheControl string, meta domain.OgMeta) {
	data, err := json.Marshal(meta)
	if err != nil {
		logging.FromContext(ctx).Error("Failed to marshal og metadata response", "error", err)
		reporting.Report(ctx, fmt.Errorf("failed to marshal og metadata response: %w", err))

		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(ctx).Error("Failed to write response", "error", err)
	}
}

func onRateLimitExceeded(rateLimiter ratelimiting.RequestRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		statusCode := http.StatusTooManyRequests

		logging.FromContext(ctx).Info("Rate limit exceeded", "statusCode", statusCode, "reason", "ratelimit exceeded", "key", rateLimiter.KeyFor(r))

		http.Error(w, e.RatelimitExceededError.Error(), statusCode)
	}
}
