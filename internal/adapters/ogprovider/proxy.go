package ogprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumenhn/lumen/internal/safeurl"
)

const (
	imageFetchTimeout = 5 * time.Second
	maxImageBytes     = 5 * 1024 * 1024
)

var (
	// ErrUpstream maps to 502: the remote server failed us.
	ErrUpstream = errors.New("upstream image fetch failed")
	// ErrNotImage maps to 400: wrong content type, including the explicit
	// SVG block (SVG can carry scripts).
	ErrNotImage = errors.New("not a proxyable image")
	// ErrImageTooLarge maps to 413.
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

type Image struct {
	ContentType string
	Data        []byte
}

// FetchImage fetches a previously discovered image URL with strict
// content-type and size enforcement. The size limit is checked against the
// Content-Length header before reading anything, and again with a running
// counter while streaming, so a lying or absent header cannot get past it.
func (p *Provider) FetchImage(ctx context.Context, imageURL string) (*Image, error) {
	parsed := safeurl.IsSafePublicURL(imageURL)
	if parsed == nil {
		return nil, ErrNotImage
	}

	ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Body == nil {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content-type %q", ErrNotImage, contentType)
	}
	if strings.Contains(contentType, "svg") {
		return nil, fmt.Errorf("%w: svg is not allowed", ErrNotImage)
	}

	if lengthHeader := resp.Header.Get("Content-Length"); lengthHeader != "" {
		if length, err := strconv.ParseInt(lengthHeader, 10, 64); err == nil && length > maxImageBytes {
			return nil, fmt.Errorf("%w: advertised %d bytes", ErrImageTooLarge, length)
		}
	}

	data := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(chunk)
		data = append(data, chunk[:n]...)
		if len(data) > maxImageBytes {
			return nil, fmt.Errorf("%w: exceeded %d bytes mid-stream", ErrImageTooLarge, maxImageBytes)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	}

	return &Image{
		ContentType: contentType,
		Data:        data,
	}, nil
}
