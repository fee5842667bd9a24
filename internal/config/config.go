package config

import (
	"errors"
	"fmt"
	"os"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	dataDir      string
	distDir      string
	sentryDSN    string
	port         string
	publicOrigin string
	env          environment
}

// DataDir is the directory holding the local cache database and the
// key-value fallback store.
func (c *Config) DataDir() string {
	return c.dataDir
}

// DistDir is the directory holding the built single-page app (index.html and
// assets) served to browsers and crawlers.
func (c *Config) DistDir() string {
	return c.distDir
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Port() string {
	return c.port
}

// PublicOrigin is the canonical scheme+host the app is served from. It is
// used to build absolute URLs in social preview tags.
func (c *Config) PublicOrigin() string {
	return c.publicOrigin
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, dataDir: %s, distDir: %s, port: %s, publicOrigin: %s}", string(c.env), c.dataDir, c.distDir, c.port, c.publicOrigin)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("LUMEN_ENVIRONMENT")
	if !ok {
		return missingKey("LUMEN_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: LUMEN_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	dataDir := os.Getenv("LUMEN_DATA_DIR")
	distDir := os.Getenv("LUMEN_DIST_DIR")
	sentryDSN := os.Getenv("SENTRY_DSN")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	publicOrigin := os.Getenv("LUMEN_PUBLIC_ORIGIN")
	if publicOrigin == "" {
		publicOrigin = fmt.Sprintf("http://localhost:%s", port)
	}

	if env == production || env == staging {
		if dataDir == "" {
			return missingKey("LUMEN_DATA_DIR")
		}
		if distDir == "" {
			return missingKey("LUMEN_DIST_DIR")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	if dataDir == "" {
		dataDir = os.TempDir()
	}

	return Config{
		dataDir:      dataDir,
		distDir:      distDir,
		sentryDSN:    sentryDSN,
		port:         port,
		publicOrigin: publicOrigin,
		env:          env,
	}, nil
}
