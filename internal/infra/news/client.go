// Package news queries a press search endpoint for coverage of an
// amendment.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Limit    int
	DaysBack int
}

// Client implements amendments.NewsSource against a JSON search API:
// GET {base}/search?q=&limit=&days_back= answering {"articles":[...]} or a
// bare list.
type Client struct {
	config Config
	http   *http.Client
}

func NewClient(config Config) *Client {
	if config.Limit <= 0 {
		config.Limit = 10
	}
	if config.DaysBack <= 0 {
		config.DaysBack = 90
	}
	return &Client{config: config, http: &http.Client{Timeout: config.Timeout}}
}

type article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// Query builds the search terms: amendment number, author and recipient.
func Query(a *amendments.Amendment) string {
	terms := []string{a.Number}
	if a.Author.Name != "" {
		terms = append(terms, a.Author.Name)
	}
	if a.Recipient.Name != "" {
		terms = append(terms, a.Recipient.Name)
	}
	return strings.TrimSpace(strings.Join(terms, " "))
}

func (c *Client) Search(ctx context.Context, a *amendments.Amendment) ([]amendments.NewsItem, error) {
	params := url.Values{}
	params.Set("q", Query(a))
	params.Set("limit", strconv.Itoa(c.config.Limit))
	params.Set("days_back", strconv.Itoa(c.config.DaysBack))
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: news search: %v", amendments.ErrEnrichmentUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: news search returned status %d", amendments.ErrEnrichmentUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	arts, err := decode(body)
	if err != nil {
		return nil, err
	}

	out := make([]amendments.NewsItem, 0, len(arts))
	for _, art := range arts {
		if art.URL == "" && art.Title == "" {
			continue
		}
		item := amendments.NewsItem{Title: art.Title, URL: art.URL, Source: art.Source}
		if t, err := time.Parse(time.RFC3339, art.PublishedAt); err == nil {
			item.PublishedAt = &t
		} else if t, err := time.Parse("2006-01-02", art.PublishedAt); err == nil {
			item.PublishedAt = &t
		}
		out = append(out, item)
		if len(out) == c.config.Limit {
			break
		}
	}
	return out, nil
}

func decode(body []byte) ([]article, error) {
	var wrapped struct {
		Articles []article `json:"articles"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return wrapped.Articles, nil
	}
	var list []article
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode news: %w", err)
	}
	return list, nil
}
