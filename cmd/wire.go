package main

import (
	"fmt"
	"log"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/index"
	"github.com/deepscribe/researchd/internal/provider/openai"
	"github.com/deepscribe/researchd/internal/research"
	"github.com/deepscribe/researchd/internal/session"
	"github.com/deepscribe/researchd/internal/sources"
	"github.com/deepscribe/researchd/internal/store"
)

// app bundles the wired pipeline and its closable resources.
type app struct {
	coordinator *research.Coordinator
	sessions    session.Store
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp is the composition root shared by serve and the one-shot research
// command.
func buildApp(cfg *config.Config) (*app, error) {
	a := &app{}

	llm, err := openai.New(cfg.LLM)
	if err != nil {
		return nil, err
	}

	// Source fetches get their retries from the retriever, so the shared
	// client does not retry on its own.
	sourceClient := research.NewHTTPClient(cfg.Research.FetchTimeout, 0, 0)

	searcher, err := sources.NewWebSearcher(cfg.Sources.WebSearch, sourceClient)
	if err != nil {
		return nil, err
	}

	var feeds []research.FeedProvider
	if cfg.Sources.Arxiv.Enabled {
		feeds = append(feeds, sources.NewArxivFeed(cfg.Sources.Arxiv))
	}
	if cfg.Sources.Wikipedia.Enabled {
		feeds = append(feeds, sources.NewWikipediaFeed(cfg.Sources.Wikipedia, sourceClient))
	}
	if cfg.Sources.NewsAPI.Enabled && cfg.Sources.NewsAPI.APIKey != "" {
		feeds = append(feeds, sources.NewNewsFeed(cfg.Sources.NewsAPI, sourceClient))
	}

	var fullText research.FullTextFetcher
	if cfg.Sources.FullText {
		fullText = sources.NewReadabilityFetcher(sourceClient)
	}

	var vectors research.VectorStore
	switch cfg.Storage.Vector.Driver {
	case "pgvector":
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		pg, err := store.NewPgVectorStore(dsn, cfg.Storage.Vector.Dimensions)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		vectors = pg
	case "memory":
		vectors = store.NewMemoryVectorStore()
	default:
		return nil, fmt.Errorf("unsupported vector driver %q", cfg.Storage.Vector.Driver)
	}

	if cfg.Storage.Redis.Host != "" {
		rs, err := session.NewRedisStore(
			cfg.Storage.Redis.Host+":"+cfg.Storage.Redis.Port,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Server.SessionRetention,
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		a.sessions = rs
	} else {
		a.sessions = session.NewMemoryStore()
	}

	rc := cfg.Research
	planner := research.NewPlanner(llm, rc.DepthQueries, log.New(log.Writer(), "[PLAN] ", log.LstdFlags))
	retriever := research.NewRetriever(searcher, feeds, fullText, research.RetrieverConfig{
		MaxInFlight:  rc.MaxConcurrentFetch,
		FetchTimeout: rc.FetchTimeout,
		Retries:      rc.FetchRetries,
		Backoff:      rc.RetryBackoff,
		WebResults:   cfg.Sources.WebSearch.MaxResults,
	}, log.New(log.Writer(), "[RETRIEVE] ", log.LstdFlags))
	scorer := research.NewScorer(llm, research.ScorerConfig{
		RelevanceThreshold: rc.RelevanceThreshold,
		RelevanceWeight:    rc.RelevanceWeight,
		CredibilityWeight:  rc.CredibilityWeight,
		RecencyWeight:      rc.RecencyWeight,
	}, log.New(log.Writer(), "[SCORE] ", log.LstdFlags))
	indexer := index.NewIndexer(
		index.NewChunker(rc.ChunkSize, rc.ChunkOverlap),
		llm, vectors,
		index.IndexerConfig{MaxInFlight: rc.MaxConcurrentEmbeds},
		log.New(log.Writer(), "[INDEX] ", log.LstdFlags),
	)
	synthesizer := research.NewSynthesizer(llm, indexer, research.SynthesisConfig{
		Outline:        rc.Outline,
		TopK:           rc.TopK,
		SectionRetries: rc.SectionRetries,
	}, log.New(log.Writer(), "[SYNTH] ", log.LstdFlags))

	a.coordinator = research.NewCoordinator(
		planner, retriever, scorer, indexer, synthesizer, vectors, a.sessions,
		log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
	)
	return a, nil
}
