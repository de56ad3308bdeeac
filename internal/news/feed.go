package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

const maxFeedBytes = 1 << 20

// feedDocument is the JSON shape served by a headline feed.
type feedDocument struct {
	Headlines []forecast.Headline `json:"headlines"`
}

// FeedSource fetches headlines from an HTTP JSON endpoint. The target
// month is sent as the "month" query parameter and responses are cached
// per month.
type FeedSource struct {
	Client  *http.Client
	baseURL string
	cache   *cache.LRUCache[forecast.Sentiment]
}

// NewFeedSource creates a feed source. A nil client gets a 10s timeout.
func NewFeedSource(baseURL string, client *http.Client) *FeedSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FeedSource{
		Client:  client,
		baseURL: baseURL,
		cache:   cache.NewLRUCache[forecast.Sentiment](24, time.Hour),
	}
}

// Cache exposes the response cache for registration with a cache.Manager.
func (f *FeedSource) Cache() *cache.LRUCache[forecast.Sentiment] {
	return f.cache
}

func (f *FeedSource) Sentiment(ctx context.Context, month core.Month) (forecast.Sentiment, error) {
	key := month.String()
	if s, ok := f.cache.Get(key); ok {
		return s, nil
	}

	u, err := url.Parse(f.baseURL)
	if err != nil {
		return forecast.Sentiment{}, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("month", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return forecast.Sentiment{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return forecast.Sentiment{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return forecast.Sentiment{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return forecast.Sentiment{}, fmt.Errorf("read feed: %w", err)
	}
	var doc feedDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return forecast.Sentiment{}, fmt.Errorf("decode feed: %w", err)
	}

	s := forecast.Sentiment{Source: string(KindFeed), Headlines: doc.Headlines}
	if err := s.Validate(); err != nil {
		return forecast.Sentiment{}, fmt.Errorf("feed: %w", err)
	}
	f.cache.Set(key, s)
	return s, nil
}
