// Package ogprovider fetches third-party article pages and extracts their
// social-preview metadata, and proxies the discovered images.
//
// Everything here touches attacker-controlled URLs, so every fetch
// re-validates through safeurl, runs under a hard timeout, and reads a
// bounded number of bytes.
package ogprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lumenhn/lumen/internal/domain"
	"github.com/lumenhn/lumen/internal/logging"
	"github.com/lumenhn/lumen/internal/safeurl"
)

const (
	metaFetchTimeout = 3 * time.Second

	// Everything we care about lives in <head>; 50KB covers even tag-bloated
	// pages without buffering whole articles.
	maxHeadBytes = 50 * 1024

	maxTitleLength       = 200
	maxDescriptionLength = 300
)

const userAgent = "lumen-edge/1.0 (+https://github.com/lumenhn/lumen) article-preview-fetcher"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Provider struct {
	httpClient HttpClient
}

func NewProvider(httpClient HttpClient) *Provider {
	return &Provider{httpClient: httpClient}
}

// FetchArticleOgMeta fetches the article page and extracts image, title and
// description. Expected failures (unsafe URL, timeout, non-OK, unparseable
// page) yield the all-null result with a nil error; a non-nil error means
// something unexpected went wrong on our side.
func (p *Provider) FetchArticleOgMeta(ctx context.Context, articleURL string) (domain.OgMeta, error) {
	logger := logging.FromContext(ctx)

	parsed := safeurl.IsSafePublicURL(articleURL)
	if parsed == nil {
		return domain.OgMeta{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, metaFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", parsed.String(), nil)
	if err != nil {
		return domain.OgMeta{}, fmt.Errorf("failed to create article request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Warn("Article fetch failed", "error", err.Error())
		return domain.OgMeta{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Body == nil {
		return domain.OgMeta{}, nil
	}

	head := readHead(resp.Body)

	return extractOgMeta(head, parsed), nil
}

// readHead reads until </head>, the byte cap, or EOF, whichever first.
func readHead(r io.Reader) []byte {
	buf := make([]byte, 0, 8192)
	chunk := make([]byte, 4096)
	for len(buf) < maxHeadBytes {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if end := headCloseEnd(buf); end >= 0 {
			return buf[:end]
		}
		if err != nil {
			break
		}
	}
	if len(buf) > maxHeadBytes {
		buf = buf[:maxHeadBytes]
	}
	return buf
}

// headCloseEnd returns the index just past the first "</head>", matched
// ignoring ASCII case, or -1. The tag is pure ASCII, so byte-wise folding
// keeps the index valid for buf; folding the whole buffer with bytes.ToLower
// would shift it whenever a multi-byte rune changes width when lowered.
func headCloseEnd(buf []byte) int {
	const closeTag = "</head>"
	for i := 0; i+len(closeTag) <= len(buf); i++ {
		match := true
		for j := 0; j < len(closeTag); j++ {
			c := buf[i+j]
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != closeTag[j] {
				match = false
				break
			}
		}
		if match {
			return i + len(closeTag)
		}
	}
	return -1
}

func extractOgMeta(head []byte, articleURL *url.URL) domain.OgMeta {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(head))
	if err != nil {
		return domain.OgMeta{}
	}

	// First occurrence wins for each key, matching how crawlers read pages.
	metas := map[string]string{}
	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		key, ok := sel.Attr("property")
		if !ok {
			key, ok = sel.Attr("name")
		}
		if !ok {
			return
		}
		key = strings.ToLower(strings.TrimSpace(key))

		content, ok := sel.Attr("content")
		if !ok || content == "" {
			return
		}
		if _, exists := metas[key]; !exists {
			metas[key] = strings.TrimSpace(content)
		}
	})

	title := firstOf(metas, "og:title", "twitter:title")
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	description := firstOf(metas, "og:description", "twitter:description", "description")

	var imageURL string
	if image := firstOf(metas, "og:image", "twitter:image"); image != "" {
		imageURL = resolveImageURL(image, articleURL)
	}

	meta := domain.OgMeta{}
	if title != "" {
		title = truncate(title, maxTitleLength)
		meta.Title = &title
	}
	if description != "" {
		description = truncate(description, maxDescriptionLength)
		meta.Description = &description
	}
	if imageURL != "" {
		meta.ImageURL = &imageURL
	}
	return meta
}

func firstOf(metas map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := metas[key]; value != "" {
			return value
		}
	}
	return ""
}

// resolveImageURL resolves an image reference against the article URL:
// absolute as-is, protocol-relative gets the article's scheme, and relative
// paths resolve against the article URL.
func resolveImageURL(image string, articleURL *url.URL) string {
	if strings.HasPrefix(image, "//") {
		return fmt.Sprintf("%s:%s", articleURL.Scheme, image)
	}

	ref, err := url.Parse(image)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}

	return articleURL.ResolveReference(ref).String()
}

func truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimRight(string(runes[:maxRunes]), " \t\n") + "…"
}
