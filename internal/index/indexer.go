package index

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/deepscribe/researchd/internal/research"
	"github.com/deepscribe/researchd/internal/telemetry"
)

// IndexerConfig bounds embedding concurrency and batch size.
type IndexerConfig struct {
	MaxInFlight int
	BatchSize   int
}

// Indexer chunks accepted documents, embeds the chunks in bounded batches and
// upserts them into the session's vector namespace.
type Indexer struct {
	chunker  *Chunker
	embedder research.Embedder
	store    research.VectorStore
	cfg      IndexerConfig
	logger   *log.Logger
}

func NewIndexer(chunker *Chunker, embedder research.Embedder, store research.VectorStore, cfg IndexerConfig, logger *log.Logger) *Indexer {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 2
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 32
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	return &Indexer{chunker: chunker, embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Index chunks and embeds every document into the namespace. It fails fast on
// the first embedding or store error; partial namespaces are cleaned up by the
// coordinator's terminal-state purge.
func (ix *Indexer) Index(ctx context.Context, namespace string, docs []research.SourceDocument) (int, error) {
	var chunks []research.Chunk
	for _, doc := range docs {
		chunks = append(chunks, ix.chunker.Split(doc)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	type batch struct {
		start  int
		chunks []research.Chunk
	}
	var batches []batch
	for i := 0; i < len(chunks); i += ix.cfg.BatchSize {
		end := i + ix.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, batch{start: i, chunks: chunks[i:end]})
	}

	vectors := make([][]float32, len(chunks))
	sem := make(chan struct{}, ix.cfg.MaxInFlight)
	errCh := make(chan error, len(batches))
	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func(b batch) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			texts := make([]string, len(b.chunks))
			for i, c := range b.chunks {
				texts[i] = c.Text
			}
			vecs, err := ix.embedder.Embed(ctx, texts)
			if err != nil {
				errCh <- fmt.Errorf("embed batch at %d: %w", b.start, err)
				return
			}
			if len(vecs) != len(texts) {
				errCh <- fmt.Errorf("embed batch at %d: got %d vectors for %d texts", b.start, len(vecs), len(texts))
				return
			}
			copy(vectors[b.start:], vecs)
		}(b)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return 0, err
	}

	if err := ix.store.Upsert(ctx, namespace, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert namespace %s: %w", namespace, err)
	}
	telemetry.ChunksIndexed.Add(float64(len(chunks)))
	ix.logger.Printf("indexed %d chunks from %d documents into namespace %s", len(chunks), len(docs), namespace)
	return len(chunks), nil
}

// Search embeds the intent and returns the namespace's top-k chunks. It
// satisfies the synthesis context-search dependency.
func (ix *Indexer) Search(ctx context.Context, namespace, intent string, k int) ([]research.RetrievedChunk, error) {
	vecs, err := ix.embedder.Embed(ctx, []string{intent})
	if err != nil {
		return nil, fmt.Errorf("embed intent: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed intent: got %d vectors", len(vecs))
	}
	return ix.store.Query(ctx, namespace, vecs[0], k)
}
