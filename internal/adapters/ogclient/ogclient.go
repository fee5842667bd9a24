// Package ogclient calls the edge OG-metadata API on behalf of the reader
// application. It is the network half of the article preview service: the
// queuing and viewport logic live in internal/app/ogmeta.
package ogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lumenhn/lumen/internal/domain"
	"github.com/lumenhn/lumen/internal/logging"
)

const (
	requestTimeout = 10 * time.Second

	ogImagePath      = "/api/og-image"
	ogImageProxyPath = "/api/og-image-proxy"
)

// ErrNoBackend means the deployment serves no edge functions: requests for
// API paths come back as HTML (the SPA fallback) instead of JSON. Callers
// should stop asking.
var ErrNoBackend = errors.New("og metadata backend not available")

type Client struct {
	inner   *retryablehttp.Client
	baseURL string
}

// NewClient wraps retryablehttp with a couple of retries and a hard timeout.
// baseURL is the origin serving the edge API, without a trailing slash.
func NewClient(baseURL string) *Client {
	r := retryablehttp.NewClient()
	r.RetryMax = 2
	r.HTTPClient.Timeout = requestTimeout
	r.Logger = nil

	return &Client{
		inner:   r,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// FetchOgMeta asks the edge API for the article's preview metadata. A missing
// backend is reported as ErrNoBackend; any other failure yields the all-null
// result with a nil error, matching how previews degrade in the reader.
func (c *Client) FetchOgMeta(ctx context.Context, articleURL string) (domain.OgMeta, error) {
	logger := logging.FromContext(ctx)

	requestURL := fmt.Sprintf("%s%s?url=%s", c.baseURL, ogImagePath, url.QueryEscape(articleURL))

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return domain.OgMeta{}, fmt.Errorf("failed to create og metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.inner.Do(req)
	if err != nil {
		logger.Warn("OG metadata request failed", "error", err.Error())
		return domain.OgMeta{}, nil
	}
	defer resp.Body.Close()

	// A static host answers API paths with the SPA's index.html. That is not
	// an error response, it means there is no backend at all.
	if !isJSONResponse(resp) {
		return domain.OgMeta{}, ErrNoBackend
	}

	if resp.StatusCode != http.StatusOK {
		return domain.OgMeta{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("Failed to read og metadata response", "error", err.Error())
		return domain.OgMeta{}, nil
	}

	var meta domain.OgMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		logger.Warn("Failed to parse og metadata response", "error", err.Error())
		return domain.OgMeta{}, nil
	}

	if meta.ImageURL != nil {
		proxied := c.ProxyImageURL(*meta.ImageURL)
		meta.ImageURL = &proxied
	}

	return meta, nil
}

// ProxyImageURL rewrites a discovered image URL to go through the edge image
// proxy instead of hitting the third-party host from the reader.
func (c *Client) ProxyImageURL(imageURL string) string {
	return fmt.Sprintf("%s%s?url=%s", c.baseURL, ogImageProxyPath, url.QueryEscape(imageURL))
}

func isJSONResponse(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
