package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/deepscribe/researchd/internal/research"
	"github.com/deepscribe/researchd/internal/store"
)

// hashEmbedder returns deterministic vectors derived from the text so
// similarity search is exercised without a real model.
type hashEmbedder struct {
	err error
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 4)
		for j, word := range strings.Fields(strings.ToLower(text)) {
			vec[j%4] += float32(len(word))
		}
		out[i] = vec
	}
	return out, nil
}

func TestIndexerIndexAndSearch(t *testing.T) {
	t.Parallel()

	vectors := store.NewMemoryVectorStore()
	ix := NewIndexer(NewChunker(200, 40), &hashEmbedder{}, vectors, IndexerConfig{MaxInFlight: 2, BatchSize: 2}, nil)

	docs := []research.SourceDocument{
		{ID: "d1", Content: strings.Repeat("solar energy panels capacity. ", 20)},
		{ID: "d2", Content: strings.Repeat("wind turbine offshore farms. ", 20)},
	}
	n, err := ix.Index(context.Background(), "sess-1", docs)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n < 2 {
		t.Fatalf("indexed %d chunks, want several", n)
	}

	got, err := ix.Search(context.Background(), "sess-1", "solar energy panels capacity", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 || len(got) > 3 {
		t.Fatalf("got %d chunks", len(got))
	}
	if got[0].DocumentID != "d1" {
		t.Fatalf("top chunk from %s, want d1", got[0].DocumentID)
	}
}

func TestIndexerNoChunks(t *testing.T) {
	t.Parallel()

	ix := NewIndexer(NewChunker(100, 10), &hashEmbedder{}, store.NewMemoryVectorStore(), IndexerConfig{}, nil)
	n, err := ix.Index(context.Background(), "sess", []research.SourceDocument{{ID: "d", Content: " "}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n != 0 {
		t.Fatalf("indexed %d chunks, want 0", n)
	}
}

func TestIndexerPropagatesEmbedError(t *testing.T) {
	t.Parallel()

	ix := NewIndexer(NewChunker(100, 10), &hashEmbedder{err: errors.New("quota")}, store.NewMemoryVectorStore(), IndexerConfig{}, nil)
	_, err := ix.Index(context.Background(), "sess", []research.SourceDocument{{ID: "d", Content: "some text"}})
	if err == nil {
		t.Fatal("expected embed error to propagate")
	}
}

func TestIndexerSearchScopedToNamespace(t *testing.T) {
	t.Parallel()

	vectors := store.NewMemoryVectorStore()
	ix := NewIndexer(NewChunker(100, 10), &hashEmbedder{}, vectors, IndexerConfig{}, nil)

	if _, err := ix.Index(context.Background(), "sess-a", []research.SourceDocument{{ID: "d", Content: "namespaced text"}}); err != nil {
		t.Fatal(err)
	}
	got, err := ix.Search(context.Background(), "sess-b", "namespaced text", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("namespace leak: %d chunks", len(got))
	}
}
