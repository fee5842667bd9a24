// Package hnapi is a minimal client for the official Hacker News Firebase
// API, used by the edge service to resolve titles for crawler previews.
package hnapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumenhn/lumen/internal/domain"
	e "github.com/lumenhn/lumen/internal/errors"
	"github.com/lumenhn/lumen/internal/logging"
	"github.com/lumenhn/lumen/internal/ratelimiting"
)

const baseURL = "https://hacker-news.firebaseio.com/v0"

const userAgent = "lumen-edge/1.0 (+https://github.com/lumenhn/lumen)"

// Self-imposed bounds on the upstream API: the Firebase endpoint is
// unauthenticated and we would rather queue than get blocked.
const (
	maxConcurrentRequests = 16
	requestsPerSecond     = 50
	requestBurst          = 100
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient HttpClient
	baseURL    string
	limiter    *ratelimiting.OutboundLimiter
}

func NewClient(httpClient HttpClient) *Client {
	return NewClientWithBaseURL(httpClient, baseURL)
}

// NewClientWithBaseURL is for tests pointing at a local server.
func NewClientWithBaseURL(httpClient HttpClient, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    ratelimiting.NewOutboundLimiter(maxConcurrentRequests, requestsPerSecond, requestBurst),
	}
}

func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	var resp *http.Response
	err = c.limiter.Do(ctx, func() error {
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		return doErr
	})
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	logging.FromContext(ctx).Info("hn api request completed", "url", url, "status", resp.StatusCode, "duration", time.Since(start).String())

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: unexpected status code %d", e.APIServerError, resp.StatusCode)
		}
		return fmt.Errorf("%w: unexpected status code %d", e.APIClientError, resp.StatusCode)
	}

	// The API returns the literal "null" for unknown ids
	if string(data) == "null" {
		return nil
	}

	return json.Unmarshal(data, target)
}

type itemResponse struct {
	ID          int64   `json:"id"`
	By          string  `json:"by"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	Descendants int     `json:"descendants"`
	Time        int64   `json:"time"`
	Kids        []int64 `json:"kids"`
	Type        string  `json:"type"`
	Dead        bool    `json:"dead"`
	Deleted     bool    `json:"deleted"`
}

func (c *Client) GetStory(ctx context.Context, id int64) (*domain.Story, error) {
	var item itemResponse
	err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &item)
	if err != nil {
		return nil, fmt.Errorf("hnapi: failed to get item %d: %w", id, err)
	}
	if item.ID == 0 {
		return nil, domain.ErrStoryNotFound
	}

	return &domain.Story{
		ID:          item.ID,
		By:          item.By,
		Title:       item.Title,
		URL:         item.URL,
		Score:       item.Score,
		Descendants: item.Descendants,
		Time:        time.Unix(item.Time, 0),
		Kids:        item.Kids,
		Type:        item.Type,
		Dead:        item.Dead,
		Deleted:     item.Deleted,
	}, nil
}

type userResponse struct {
	ID        string  `json:"id"`
	Created   int64   `json:"created"`
	Karma     int     `json:"karma"`
	About     string  `json:"about"`
	Submitted []int64 `json:"submitted"`
}

func (c *Client) GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	var user userResponse
	err := c.getJSON(ctx, fmt.Sprintf("%s/user/%s.json", c.baseURL, id), &user)
	if err != nil {
		return nil, fmt.Errorf("hnapi: failed to get user %q: %w", id, err)
	}
	if user.ID == "" {
		return nil, domain.ErrUserNotFound
	}

	return &domain.UserProfile{
		ID:        user.ID,
		Created:   time.Unix(user.Created, 0),
		Karma:     user.Karma,
		About:     user.About,
		Submitted: user.Submitted,
	}, nil
}

// GetStoryList fetches the id list for one feed ("top", "new", ...).
func (c *Client) GetStoryList(ctx context.Context, name string) (*domain.StoryList, error) {
	canonical := domain.CanonicalListName(name)
	if !domain.IsListName(canonical) {
		return nil, fmt.Errorf("hnapi: unknown list %q", name)
	}

	var ids []int64
	err := c.getJSON(ctx, fmt.Sprintf("%s/%sstories.json", c.baseURL, canonical), &ids)
	if err != nil {
		return nil, fmt.Errorf("hnapi: failed to get %s stories: %w", canonical, err)
	}

	return &domain.StoryList{Name: canonical, IDs: ids}, nil
}
