package research

import (
	"context"
	"errors"
	"time"
)

// Depth controls how many search queries a session plans.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// ParseDepth normalizes a client-supplied depth, defaulting to standard.
func ParseDepth(s string) Depth {
	switch Depth(s) {
	case DepthQuick, DepthStandard, DepthDeep:
		return Depth(s)
	default:
		return DepthStandard
	}
}

// SourceType is the closed set of retrieval source variants.
type SourceType string

const (
	SourceWeb       SourceType = "web"
	SourcePreprint  SourceType = "preprint"
	SourceReference SourceType = "reference"
	SourceNews      SourceType = "news"
)

// SessionState enumerates the one-directional pipeline states.
type SessionState string

const (
	StateCreated      SessionState = "created"
	StatePlanning     SessionState = "planning"
	StateRetrieving   SessionState = "retrieving"
	StateScoring      SessionState = "scoring"
	StateIndexing     SessionState = "indexing"
	StateSynthesizing SessionState = "synthesizing"
	StateAssembling   SessionState = "assembling"
	StateComplete     SessionState = "complete"
	StateFailed       SessionState = "failed"
	StateCancelled    SessionState = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// ErrNoEvidence is the fatal condition when retrieval and scoring leave no documents.
var ErrNoEvidence = errors.New("no sources retrieved")

// Query is a single planned search query.
type Query struct {
	Text     string       `json:"text"`
	Hints    []SourceType `json:"hints"`
	Priority int          `json:"priority"`
}

// HintedFor reports whether the query should be routed to the given source type.
func (q Query) HintedFor(t SourceType) bool {
	for _, h := range q.Hints {
		if h == t {
			return true
		}
	}
	return false
}

// SourceDocument is a normalized retrieval result.
type SourceDocument struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	NormalizedURL string     `json:"normalized_url"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Type          SourceType `json:"type"`
	Authors       []string   `json:"authors,omitempty"`
	Query         string     `json:"query,omitempty"`
	PublishedAt   time.Time  `json:"published_at,omitempty"`
	FetchedAt     time.Time  `json:"fetched_at"`
	Relevance     float64    `json:"relevance"`
	Credibility   float64    `json:"credibility"`
	Score         float64    `json:"score"`
}

// Chunk is a bounded text span derived from an accepted document.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
}

// RetrievedChunk is a chunk returned from a top-k similarity query.
type RetrievedChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Citation ties a source document to its stable report number.
type Citation struct {
	Number     int    `json:"number"`
	DocumentID string `json:"document_id"`
}

// Reference is a formatted bibliography entry.
type Reference struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// SynthesisSection is one generated report section.
type SynthesisSection struct {
	Heading    string `json:"heading"`
	Body       string `json:"body"`
	Citations  []int  `json:"citations,omitempty"`
	BestEffort bool   `json:"best_effort,omitempty"`
}

// ReportMetadata summarizes a research run.
type ReportMetadata struct {
	TotalRetrieved  int       `json:"total_retrieved"`
	AcceptedSources int       `json:"accepted_sources"`
	Depth           Depth     `json:"depth"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// ResearchReport is the terminal artifact of a session.
type ResearchReport struct {
	SessionID    string             `json:"session_id"`
	Topic        string             `json:"topic"`
	Sections     []SynthesisSection `json:"sections"`
	Bibliography []Reference        `json:"bibliography"`
	Format       string             `json:"format"`
	Metadata     ReportMetadata     `json:"metadata"`
}

// Session is the coordinator-owned mutable session record.
type Session struct {
	ID        string       `json:"id"`
	Topic     string       `json:"topic"`
	Depth     Depth        `json:"depth"`
	Format    string       `json:"format"`
	Status    SessionState `json:"status"`
	Progress  int          `json:"progress"`
	Log       []string     `json:"log,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// EventType labels progress-stream events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ProgressEvent is emitted by the coordinator and consumed by the transport layer.
type ProgressEvent struct {
	Type    EventType       `json:"type"`
	Percent int             `json:"percent"`
	Message string          `json:"message,omitempty"`
	Report  *ResearchReport `json:"report,omitempty"`
}

// SearchResult is one hit from the general web-search capability.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// FeedItem is one record from a specialized feed.
type FeedItem struct {
	URL         string
	Title       string
	Text        string
	Authors     []string
	PublishedAt time.Time
}

// LLMProvider is the narrow interface over the text-generation collaborator.
type LLMProvider interface {
	// Generate produces text for a prompt. Failures may be transient.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder produces vector embeddings for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// WebSearcher is the general web-search capability.
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// FeedProvider is a specialized retrieval feed (preprint, reference, news).
type FeedProvider interface {
	Type() SourceType
	Fetch(ctx context.Context, query string, max int) ([]FeedItem, error)
}

// VectorStore is the session-namespaced chunk index.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, chunks []Chunk, vectors [][]float32) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]RetrievedChunk, error)
	Delete(ctx context.Context, namespace string) error
}
