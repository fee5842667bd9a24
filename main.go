package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
	"github.com/lumenhn/lumen/internal/adapters/hnapi"
	"github.com/lumenhn/lumen/internal/adapters/memorycache"
	"github.com/lumenhn/lumen/internal/adapters/ogprovider"
	"github.com/lumenhn/lumen/internal/adapters/persistence"
	"github.com/lumenhn/lumen/internal/app"
	"github.com/lumenhn/lumen/internal/cachemanager"
	"github.com/lumenhn/lumen/internal/config"
	"github.com/lumenhn/lumen/internal/ports"
	"github.com/lumenhn/lumen/internal/reporting"
	"github.com/lumenhn/lumen/internal/telemetry"
)

const fallbackNamespace = "lumen"

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	otelShutdown, err := telemetry.SetupOTelSDK(context.Background(), "lumen", instanceID)
	if err != nil {
		fail("Failed to set up telemetry", "error", err.Error())
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down telemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	fallback, err := fallbackstore.New(config.DataDir(), fallbackNamespace)
	if err != nil {
		fail("Failed to initialize fallback store", "error", err.Error())
	}

	store := persistence.NewStore(config.DataDir(), time.Now, logger.With("component", "persistence"))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", "error", err.Error())
		}
	}()

	// Pull in anything an older deploy persisted on the fallback store. The
	// import is flag-guarded and a no-op on every start after the first.
	if err := store.ImportFromFallback(context.Background(), fallback); err != nil {
		logger.Warn("Failed to import fallback entries", "error", err.Error())
	}

	memory := memorycache.New(100)
	defer memory.Stop()

	manager := cachemanager.New(memory, store, fallback, time.Now, logger.With("component", "cachemanager"))
	defer manager.Close()
	logger.Info("Initialized cache tiers")

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	hnClient := hnapi.NewClient(httpClient)
	ogProvider := ogprovider.NewProvider(httpClient)

	getStory := app.BuildGetStoryWithCache(manager, hnClient)
	getUserProfile := app.BuildGetUserProfileWithCache(manager, hnClient)
	fetchArticleOgMeta := app.BuildFetchArticleOgMetaWithCache(manager, ogProvider)

	ogImageHandler := ports.MakeOgImageHandler(
		fetchArticleOgMeta,
		logger.With("port", "og-image"),
		sentryMiddleware,
	)
	http.HandleFunc("GET /api/og-image", ogImageHandler)
	http.HandleFunc("OPTIONS /api/og-image", ogImageHandler)

	ogImageProxyHandler := ports.MakeOgImageProxyHandler(
		ogProvider,
		logger.With("port", "og-image-proxy"),
		sentryMiddleware,
	)
	http.HandleFunc("GET /api/og-image-proxy", ogImageProxyHandler)
	http.HandleFunc("OPTIONS /api/og-image-proxy", ogImageProxyHandler)

	http.HandleFunc(
		"/",
		ports.MakeCrawlerMetaHandler(
			getStory,
			getUserProfile,
			config.DistDir(),
			config.PublicOrigin(),
			logger.With("port", "static"),
			sentryMiddleware,
		),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", config.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
