package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/deepscribe/researchd/internal/research"
)

type memoryEntry struct {
	chunk  research.Chunk
	vector []float32
}

// MemoryVectorStore is a brute-force cosine-distance store for development
// and tests.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]memoryEntry
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{namespaces: make(map[string]map[string]memoryEntry)}
}

func entryKey(c research.Chunk) string {
	return fmt.Sprintf("%s/%d", c.DocumentID, c.Ordinal)
}

func (s *MemoryVectorStore) Upsert(_ context.Context, namespace string, chunks []research.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]memoryEntry)
		s.namespaces[namespace] = ns
	}
	for i, chunk := range chunks {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		ns[entryKey(chunk)] = memoryEntry{chunk: chunk, vector: vec}
	}
	return nil
}

func (s *MemoryVectorStore) Query(_ context.Context, namespace string, vector []float32, k int) ([]research.RetrievedChunk, error) {
	if k < 1 {
		k = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.namespaces[namespace]
	out := make([]research.RetrievedChunk, 0, len(ns))
	for _, entry := range ns {
		out = append(out, research.RetrievedChunk{
			Chunk:    entry.chunk,
			Distance: cosineDistance(vector, entry.vector),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *MemoryVectorStore) Delete(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
