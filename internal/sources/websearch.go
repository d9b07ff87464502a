// Package sources implements the retrieval providers: general web search and
// the specialized preprint, reference and news feeds.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/research"
)

// NewWebSearcher selects the configured web-search provider.
func NewWebSearcher(cfg config.WebSearchConfig, client *research.HTTPClient) (research.WebSearcher, error) {
	switch cfg.Provider {
	case "serper":
		if cfg.SerperAPIKey == "" {
			return nil, fmt.Errorf("serper selected but SERPER_API_KEY is empty")
		}
		return &SerperSearch{apiKey: cfg.SerperAPIKey, client: client}, nil
	case "brave":
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave selected but BRAVE_SEARCH_KEY is empty")
		}
		return &BraveSearch{apiKey: cfg.BraveAPIKey, client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported web search provider %q", cfg.Provider)
	}
}

// SerperSearch queries the serper.dev Google-results API.
type SerperSearch struct {
	apiKey string
	client *research.HTTPClient
}

func (s *SerperSearch) Search(ctx context.Context, query string, k int) ([]research.SearchResult, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": query, "num": k}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	headers := map[string]string{"X-API-KEY": s.apiKey}
	if err := s.client.DoJSON(ctx, http.MethodPost, "https://google.serper.dev/search", headers, payload, &raw); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	out := make([]research.SearchResult, 0, k)
	for _, r := range raw.Organic {
		if len(out) >= k {
			break
		}
		out = append(out, research.SearchResult{URL: r.Link, Title: r.Title, Snippet: r.Snippet})
	}
	return out, nil
}

// BraveSearch queries the Brave web search API.
type BraveSearch struct {
	apiKey string
	client *research.HTTPClient
}

func (s *BraveSearch) Search(ctx context.Context, query string, k int) ([]research.SearchResult, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", url.QueryEscape(query), k)
	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": s.apiKey,
	}
	if err := s.client.GetJSON(ctx, endpoint, headers, &raw); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	out := make([]research.SearchResult, 0, k)
	for _, r := range raw.Web.Results {
		if len(out) >= k {
			break
		}
		out = append(out, research.SearchResult{URL: r.URL, Title: r.Title, Snippet: r.Description})
	}
	return out, nil
}
