package research

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"
)

// ScorerConfig carries the weighting knobs; the exact formula is deliberately
// configuration, not constants.
type ScorerConfig struct {
	RelevanceThreshold float64
	RelevanceWeight    float64
	CredibilityWeight  float64
	RecencyWeight      float64
}

// Scorer ranks retrieved documents by a weighted mix of topical relevance,
// source credibility and recency, dropping documents below the relevance
// threshold. Output order is deterministic for identical scores.
type Scorer struct {
	embedder Embedder
	cfg      ScorerConfig
	logger   *log.Logger
	now      func() time.Time
}

func NewScorer(embedder Embedder, cfg ScorerConfig, logger *log.Logger) *Scorer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SCORE] ", log.LstdFlags)
	}
	return &Scorer{embedder: embedder, cfg: cfg, logger: logger, now: time.Now}
}

var authoritativeDomains = []string{
	".edu", ".gov", "arxiv.org", "pubmed", "ieee.org", "acm.org",
	"springer", "nature.com", "science.org", "sciencedirect",
}

var reputableDomains = []string{
	"bbc.", "reuters.", "apnews.", "npr.org", "economist.",
	"scientificamerican.", "newscientist.", "wikipedia.org",
}

var lowCredibilityDomains = []string{
	"pinterest.", "quora.", "reddit.", "facebook.", "twitter.", "x.com",
}

// Score annotates, filters and ranks the documents. A scoring error on an
// individual document drops that document, never the session.
func (s *Scorer) Score(ctx context.Context, topic string, docs []SourceDocument) []SourceDocument {
	relevances := s.relevances(ctx, topic, docs)

	accepted := make([]SourceDocument, 0, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		rel := relevances[i]
		if rel < s.cfg.RelevanceThreshold {
			continue
		}
		doc.Relevance = rel
		doc.Credibility = s.credibility(doc)
		doc.Score = s.combine(doc)
		accepted = append(accepted, doc)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.Before(b.FetchedAt)
		}
		return a.NormalizedURL < b.NormalizedURL
	})

	s.logger.Printf("accepted %d/%d documents above relevance threshold %.2f", len(accepted), len(docs), s.cfg.RelevanceThreshold)
	return accepted
}

// relevances computes semantic similarity of each document to the topic.
// When the embedding collaborator fails the scorer degrades to lexical
// overlap rather than failing the session.
func (s *Scorer) relevances(ctx context.Context, topic string, docs []SourceDocument) []float64 {
	out := make([]float64, len(docs))
	if len(docs) == 0 {
		return out
	}

	texts := make([]string, 0, len(docs)+1)
	texts = append(texts, topic)
	for _, doc := range docs {
		texts = append(texts, truncate(doc.Title+"\n"+doc.Content, 2000))
	}

	if s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, texts)
		if err == nil && len(vecs) == len(texts) {
			topicVec := vecs[0]
			for i := range docs {
				out[i] = cosineSimilarity(topicVec, vecs[i+1])
			}
			return out
		}
		if err != nil {
			s.logger.Printf("embedding relevance failed, falling back to lexical overlap: %v", err)
		}
	}

	topicTokens := tokenSet(topic)
	for i, doc := range docs {
		out[i] = lexicalOverlap(topicTokens, doc.Title+" "+doc.Content)
	}
	return out
}

func (s *Scorer) credibility(doc SourceDocument) float64 {
	score := 0.5
	switch doc.Type {
	case SourcePreprint:
		score = 0.85
	case SourceReference:
		score = 0.8
	case SourceNews:
		score = 0.6
	}

	host := strings.ToLower(Domain(doc.URL))
	for _, d := range authoritativeDomains {
		if strings.Contains(host, d) {
			score += 0.2
			break
		}
	}
	for _, d := range reputableDomains {
		if strings.Contains(host, d) {
			score += 0.1
			break
		}
	}
	for _, d := range lowCredibilityDomains {
		if strings.Contains(host, d) {
			score -= 0.2
			break
		}
	}
	return clamp01(score)
}

// recency decays in coarse buckets; unknown publication dates sit in the
// middle rather than sinking time-insensitive sources.
func (s *Scorer) recency(doc SourceDocument) float64 {
	if doc.PublishedAt.IsZero() {
		return 0.3
	}
	age := s.now().Sub(doc.PublishedAt)
	switch {
	case age < 30*24*time.Hour:
		return 1.0
	case age < 90*24*time.Hour:
		return 0.8
	case age < 180*24*time.Hour:
		return 0.6
	case age < 365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

func (s *Scorer) combine(doc SourceDocument) float64 {
	wr, wc, wt := s.cfg.RelevanceWeight, s.cfg.CredibilityWeight, s.cfg.RecencyWeight
	sum := wr + wc + wt
	if sum <= 0 {
		return doc.Relevance
	}
	return (wr*doc.Relevance + wc*doc.Credibility + wt*s.recency(doc)) / sum
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if len(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}

func lexicalOverlap(topicTokens map[string]struct{}, text string) float64 {
	if len(topicTokens) == 0 {
		return 0
	}
	hits := 0
	for tok := range tokenSet(text) {
		if _, ok := topicTokens[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(topicTokens))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
