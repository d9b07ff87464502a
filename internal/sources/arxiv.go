package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/research"
)

// ArxivFeed retrieves preprint abstracts from the arXiv Atom API.
type ArxivFeed struct {
	endpoint   string
	maxResults int
	parser     *gofeed.Parser
}

func NewArxivFeed(cfg config.FeedConfig) *ArxivFeed {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://export.arxiv.org/api/query"
	}
	max := cfg.MaxResults
	if max < 1 {
		max = 5
	}
	return &ArxivFeed{endpoint: endpoint, maxResults: max, parser: gofeed.NewParser()}
}

func (f *ArxivFeed) Type() research.SourceType { return research.SourcePreprint }

func (f *ArxivFeed) Fetch(ctx context.Context, query string, max int) ([]research.FeedItem, error) {
	if max < 1 || max > f.maxResults {
		max = f.maxResults
	}
	feedURL := fmt.Sprintf("%s?search_query=all:%s&max_results=%d&sortBy=relevance",
		f.endpoint, url.QueryEscape(fmt.Sprintf("%q", query)), max)

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}

	items := make([]research.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := research.FeedItem{
			URL:   entry.Link,
			Title: collapseWhitespace(entry.Title),
			Text:  collapseWhitespace(entry.Description),
		}
		for _, a := range entry.Authors {
			if a != nil && a.Name != "" {
				item.Authors = append(item.Authors, a.Name)
			}
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = *entry.PublishedParsed
		}
		items = append(items, item)
	}
	return items, nil
}

// collapseWhitespace flattens the newline-wrapped text arXiv Atom entries carry.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
