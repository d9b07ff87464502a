package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/research"
)

// WikipediaFeed retrieves encyclopedia articles via the MediaWiki API: a
// title search followed by a plain-text extract per hit.
type WikipediaFeed struct {
	endpoint   string
	maxResults int
	client     *research.HTTPClient
}

func NewWikipediaFeed(cfg config.FeedConfig, client *research.HTTPClient) *WikipediaFeed {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://en.wikipedia.org/w/api.php"
	}
	max := cfg.MaxResults
	if max < 1 {
		max = 3
	}
	return &WikipediaFeed{endpoint: endpoint, maxResults: max, client: client}
}

func (f *WikipediaFeed) Type() research.SourceType { return research.SourceReference }

func (f *WikipediaFeed) Fetch(ctx context.Context, query string, max int) ([]research.FeedItem, error) {
	if max < 1 || max > f.maxResults {
		max = f.maxResults
	}

	titles, err := f.searchTitles(ctx, query, max)
	if err != nil {
		return nil, err
	}

	items := make([]research.FeedItem, 0, len(titles))
	for _, title := range titles {
		extract, err := f.extract(ctx, title)
		if err != nil || extract == "" {
			continue
		}
		items = append(items, research.FeedItem{
			URL:   "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")),
			Title: title,
			Text:  extract,
		})
	}
	return items, nil
}

func (f *WikipediaFeed) searchTitles(ctx context.Context, query string, max int) ([]string, error) {
	endpoint := fmt.Sprintf("%s?action=query&list=search&srsearch=%s&srlimit=%d&format=json",
		f.endpoint, url.QueryEscape(query), max)
	var raw struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := f.client.GetJSON(ctx, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}
	titles := make([]string, 0, len(raw.Query.Search))
	for _, hit := range raw.Query.Search {
		titles = append(titles, hit.Title)
	}
	return titles, nil
}

func (f *WikipediaFeed) extract(ctx context.Context, title string) (string, error) {
	endpoint := fmt.Sprintf("%s?action=query&prop=extracts&explaintext=1&exintro=0&titles=%s&format=json",
		f.endpoint, url.QueryEscape(title))
	var raw struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := f.client.GetJSON(ctx, endpoint, nil, &raw); err != nil {
		return "", fmt.Errorf("wikipedia extract: %w", err)
	}
	for _, page := range raw.Query.Pages {
		if page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", nil
}
