// Package index chunks accepted documents, embeds them and maintains the
// per-session vector namespace used for grounded synthesis.
package index

import (
	"strings"

	"github.com/deepscribe/researchd/internal/research"
)

// Chunker splits document text into overlapping windows, preferring to break
// on sentence boundaries so embeddings see coherent spans.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size < 1 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks one document. Whitespace-only content yields no chunks.
func (c *Chunker) Split(doc research.SourceDocument) []research.Chunk {
	text := strings.TrimSpace(doc.Content)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []research.Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = start + breakPoint(runes[start:end])
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, research.Chunk{
				DocumentID: doc.ID,
				Ordinal:    len(chunks),
				Text:       piece,
			})
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakPoint finds a cut within the window, favouring the last sentence end
// or newline past the midpoint; otherwise the last space, otherwise a hard
// cut at the window edge.
func breakPoint(window []rune) int {
	mid := len(window) / 2
	for i := len(window) - 1; i > mid; i-- {
		switch window[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 == len(window) || window[i+1] == ' ' || window[i+1] == '\n' {
				return i + 1
			}
		}
	}
	for i := len(window) - 1; i > mid; i-- {
		if window[i] == ' ' {
			return i + 1
		}
	}
	return len(window)
}
