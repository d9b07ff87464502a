package research

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepscribe/researchd/internal/telemetry"
)

// FullTextFetcher optionally enriches a web search hit with the article body.
type FullTextFetcher interface {
	Extract(ctx context.Context, url string) (string, error)
}

// RetrieverConfig bounds the retrieval fan-out.
type RetrieverConfig struct {
	MaxInFlight  int
	FetchTimeout time.Duration
	Retries      int
	Backoff      time.Duration
	WebResults   int
}

// Retriever fans queries out to the web-search capability and the specialized
// feeds, normalizing everything into SourceDocument records. A permanent
// failure of one source never blocks the others; the stage completes once
// every fetch has resolved or spent its retry budget.
type Retriever struct {
	search   WebSearcher
	feeds    []FeedProvider
	fullText FullTextFetcher
	cfg      RetrieverConfig
	logger   *log.Logger
}

func NewRetriever(search WebSearcher, feeds []FeedProvider, fullText FullTextFetcher, cfg RetrieverConfig, logger *log.Logger) *Retriever {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 4
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.WebResults < 1 {
		cfg.WebResults = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVE] ", log.LstdFlags)
	}
	return &Retriever{search: search, feeds: feeds, fullText: fullText, cfg: cfg, logger: logger}
}

// collector deduplicates documents by canonical origin URL, first-seen wins.
type collector struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	docs  []SourceDocument
	total int
}

func (c *collector) add(doc SourceDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	norm, err := CanonicalURL(doc.URL)
	if err != nil {
		return
	}
	if _, dup := c.seen[norm]; dup {
		return
	}
	c.seen[norm] = struct{}{}
	doc.NormalizedURL = norm
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	c.docs = append(c.docs, doc)
}

// Retrieve executes every planned query against its hinted sources. It
// returns the deduplicated documents plus the raw hit count; the error is
// ErrNoEvidence only when nothing at all was retrieved.
func (r *Retriever) Retrieve(ctx context.Context, queries []Query) ([]SourceDocument, int, error) {
	col := &collector{seen: make(map[string]struct{})}
	sem := make(chan struct{}, r.cfg.MaxInFlight)
	var wg sync.WaitGroup

	run := func(job func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			job(ctx)
		}()
	}

	for _, q := range queries {
		query := q
		if query.HintedFor(SourceWeb) && r.search != nil {
			run(func(ctx context.Context) { r.fetchWeb(ctx, query, col) })
		}
		for _, feed := range r.feeds {
			if !query.HintedFor(feed.Type()) {
				continue
			}
			f := feed
			run(func(ctx context.Context) { r.fetchFeed(ctx, f, query, col) })
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, col.total, err
	}
	if len(col.docs) == 0 {
		return nil, col.total, ErrNoEvidence
	}
	r.logger.Printf("retrieved %d documents (%d raw hits) across %d queries", len(col.docs), col.total, len(queries))
	return col.docs, col.total, nil
}

func (r *Retriever) fetchWeb(ctx context.Context, q Query, col *collector) {
	var results []SearchResult
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		results, err = r.search.Search(ctx, q.Text, r.cfg.WebResults)
		return err
	})
	if err != nil {
		telemetry.FetchesTotal.WithLabelValues(string(SourceWeb), telemetry.OutcomeError).Inc()
		r.logger.Printf("web search for %q dropped after retries: %v", q.Text, err)
		return
	}
	telemetry.FetchesTotal.WithLabelValues(string(SourceWeb), telemetry.OutcomeOK).Inc()

	now := time.Now().UTC()
	for _, res := range results {
		if res.URL == "" {
			continue
		}
		content := res.Snippet
		if r.fullText != nil {
			if body, err := r.fullText.Extract(ctx, res.URL); err == nil && body != "" {
				content = body
			}
		}
		col.add(SourceDocument{
			URL:       res.URL,
			Title:     res.Title,
			Content:   content,
			Type:      SourceWeb,
			Query:     q.Text,
			FetchedAt: now,
		})
	}
}

func (r *Retriever) fetchFeed(ctx context.Context, feed FeedProvider, q Query, col *collector) {
	var items []FeedItem
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		items, err = feed.Fetch(ctx, q.Text, 0)
		return err
	})
	if err != nil {
		telemetry.FetchesTotal.WithLabelValues(string(feed.Type()), telemetry.OutcomeError).Inc()
		r.logger.Printf("%s feed for %q dropped after retries: %v", feed.Type(), q.Text, err)
		return
	}
	telemetry.FetchesTotal.WithLabelValues(string(feed.Type()), telemetry.OutcomeOK).Inc()

	now := time.Now().UTC()
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		col.add(SourceDocument{
			URL:         item.URL,
			Title:       item.Title,
			Content:     item.Text,
			Type:        feed.Type(),
			Authors:     item.Authors,
			Query:       q.Text,
			PublishedAt: item.PublishedAt,
			FetchedAt:   now,
		})
	}
}

// withRetry runs fn with a per-attempt timeout and exponential backoff,
// giving up after the configured retry budget.
func (r *Retriever) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	tries := r.cfg.Retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < tries-1 {
			select {
			case <-time.After(r.cfg.Backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
