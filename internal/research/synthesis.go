package research

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/deepscribe/researchd/internal/telemetry"
)

// ContextSearcher retrieves the chunks most similar to a section intent from
// the session's namespace.
type ContextSearcher interface {
	Search(ctx context.Context, namespace, intent string, k int) ([]RetrievedChunk, error)
}

// SynthesisConfig bounds section generation.
type SynthesisConfig struct {
	Outline        []string
	TopK           int
	SectionRetries int
	Backoff        time.Duration
}

// Synthesizer generates report sections in outline order, grounding each on
// chunks retrieved for the section intent and resolving source markers into
// stable citation numbers.
type Synthesizer struct {
	llm      LLMProvider
	searcher ContextSearcher
	cfg      SynthesisConfig
	logger   *log.Logger
}

func NewSynthesizer(llm LLMProvider, searcher ContextSearcher, cfg SynthesisConfig, logger *log.Logger) *Synthesizer {
	if len(cfg.Outline) == 0 {
		cfg.Outline = []string{"Introduction", "Background", "Analysis", "Conclusion"}
	}
	if cfg.TopK < 1 {
		cfg.TopK = 6
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{llm: llm, searcher: searcher, cfg: cfg, logger: logger}
}

// sourceMarker matches the inline attribution tokens the LLM is instructed to
// emit, e.g. [S:3f1c...]. Unknown ids are stripped rather than cited.
var sourceMarker = regexp.MustCompile(`\[S:([^\]\s]+)\]`)

const sectionPrompt = `You are writing the %q section of a research report on the topic:

%s

Use ONLY the numbered source excerpts below. After every claim drawn from an
excerpt, append its attribution token exactly as given, e.g. [S:abc123]. Do
not invent sources or facts absent from the excerpts. Write flowing prose,
two to four paragraphs, without a heading.

Source excerpts:
%s`

// Sections returns the outline this synthesizer will generate, in order.
func (s *Synthesizer) Sections() []string {
	return s.cfg.Outline
}

// Section generates one section. Transient LLM failures are retried with
// backoff; once the budget is spent a best-effort placeholder is returned so
// a single stubborn section never voids the whole report.
func (s *Synthesizer) Section(ctx context.Context, sessionID, topic, heading string, docs []SourceDocument, cm *CitationManager) (SynthesisSection, error) {
	intent := heading + " of " + topic
	chunks, err := s.searcher.Search(ctx, sessionID, intent, s.cfg.TopK)
	if err != nil {
		return SynthesisSection{}, fmt.Errorf("context search for %q: %w", heading, err)
	}

	known := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		known[d.ID] = struct{}{}
	}

	prompt := fmt.Sprintf(sectionPrompt, heading, topic, renderExcerpts(chunks, docs))

	var raw string
	tries := s.cfg.SectionRetries + 1
	for attempt := 0; attempt < tries; attempt++ {
		raw, err = s.llm.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(raw) != "" {
			telemetry.LLMRequestsTotal.WithLabelValues("synthesis", telemetry.OutcomeOK).Inc()
			break
		}
		telemetry.LLMRequestsTotal.WithLabelValues("synthesis", telemetry.OutcomeError).Inc()
		if ctx.Err() != nil {
			return SynthesisSection{}, ctx.Err()
		}
		if attempt < tries-1 {
			s.logger.Printf("section %q attempt %d failed, retrying: %v", heading, attempt+1, err)
			select {
			case <-time.After(s.cfg.Backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return SynthesisSection{}, ctx.Err()
			}
		}
	}
	if err != nil || strings.TrimSpace(raw) == "" {
		s.logger.Printf("section %q exhausted retries, emitting best-effort placeholder: %v", heading, err)
		return SynthesisSection{
			Heading:    heading,
			Body:       "This section could not be generated from the available sources.",
			BestEffort: true,
		}, nil
	}

	body, numbers := resolveMarkers(raw, known, cm)
	return SynthesisSection{Heading: heading, Body: body, Citations: numbers}, nil
}

// resolveMarkers rewrites [S:<doc-id>] tokens into [n] citation brackets,
// assigning numbers in first-use order and dropping markers for unknown ids.
func resolveMarkers(body string, known map[string]struct{}, cm *CitationManager) (string, []int) {
	used := make(map[int]struct{})
	resolved := sourceMarker.ReplaceAllStringFunc(body, func(marker string) string {
		id := sourceMarker.FindStringSubmatch(marker)[1]
		if _, ok := known[id]; !ok {
			return ""
		}
		n := cm.Assign(id)
		used[n] = struct{}{}
		return fmt.Sprintf("[%d]", n)
	})

	numbers := make([]int, 0, len(used))
	for n := range used {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return strings.TrimSpace(resolved), numbers
}

func renderExcerpts(chunks []RetrievedChunk, docs []SourceDocument) string {
	titles := make(map[string]string, len(docs))
	for _, d := range docs {
		titles[d.ID] = d.Title
	}
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "Excerpt %d (source %q, token [S:%s]):\n%s\n\n", i+1, titles[c.DocumentID], c.DocumentID, c.Text)
	}
	if b.Len() == 0 {
		b.WriteString("(no excerpts available)")
	}
	return b.String()
}
