package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/deepscribe/researchd/internal/research"
)

const maxArticleBytes = 2 << 20

// ReadabilityFetcher extracts the readable article body from a web page so
// scoring and indexing see more than the search snippet.
type ReadabilityFetcher struct {
	client *research.HTTPClient
}

func NewReadabilityFetcher(client *research.HTTPClient) *ReadabilityFetcher {
	return &ReadabilityFetcher{client: client}
}

func (f *ReadabilityFetcher) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("full text fetch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("full text fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("full text fetch: %s", resp.Status)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxArticleBytes), parsed)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
