package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/research"
)

// NewsFeed retrieves recent press coverage from the NewsAPI everything
// endpoint.
type NewsFeed struct {
	endpoint   string
	apiKey     string
	maxResults int
	client     *research.HTTPClient
}

func NewNewsFeed(cfg config.NewsAPIConfig, client *research.HTTPClient) *NewsFeed {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://newsapi.org/v2/everything"
	}
	max := cfg.MaxResults
	if max < 1 {
		max = 5
	}
	return &NewsFeed{endpoint: endpoint, apiKey: cfg.APIKey, maxResults: max, client: client}
}

func (f *NewsFeed) Type() research.SourceType { return research.SourceNews }

func (f *NewsFeed) Fetch(ctx context.Context, query string, max int) ([]research.FeedItem, error) {
	if max < 1 || max > f.maxResults {
		max = f.maxResults
	}
	endpoint := fmt.Sprintf("%s?q=%s&pageSize=%d&sortBy=relevancy&language=en",
		f.endpoint, url.QueryEscape(query), max)

	var raw struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Content     string `json:"content"`
			Author      string `json:"author"`
			PublishedAt string `json:"publishedAt"`
		} `json:"articles"`
	}
	headers := map[string]string{"X-Api-Key": f.apiKey}
	if err := f.client.GetJSON(ctx, endpoint, headers, &raw); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if raw.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %s", raw.Message)
	}

	items := make([]research.FeedItem, 0, len(raw.Articles))
	for _, a := range raw.Articles {
		text := a.Content
		if text == "" {
			text = a.Description
		}
		item := research.FeedItem{URL: a.URL, Title: a.Title, Text: text}
		if a.Author != "" {
			item.Authors = []string{a.Author}
		}
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			item.PublishedAt = ts
		}
		items = append(items, item)
	}
	return items, nil
}
