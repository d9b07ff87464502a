package research

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Planner converts a topic and depth into a bounded, deduplicated query set.
type Planner struct {
	llm          LLMProvider
	depthQueries map[string]int
	logger       *log.Logger
}

func NewPlanner(llm LLMProvider, depthQueries map[string]int, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(log.Writer(), "[PLAN] ", log.LstdFlags)
	}
	return &Planner{llm: llm, depthQueries: depthQueries, logger: logger}
}

const queryPrompt = `You are a research assistant generating web search queries.

Topic: %s

Generate %d diverse, specific search queries covering different aspects of the
topic, optimized for web search engines. Return ONLY the queries, one per
line, without numbering or additional text.`

// Plan asks the LLM for candidate queries, deduplicates them
// case-insensitively and truncates to the depth's target count. If the LLM is
// unavailable or returns nothing usable it falls back to a deterministic
// template so planner failure never stalls the pipeline.
func (p *Planner) Plan(ctx context.Context, topic string, depth Depth) []Query {
	target := p.targetCount(depth)

	var candidates []string
	raw, err := p.llm.Generate(ctx, fmt.Sprintf(queryPrompt, topic, target))
	if err != nil {
		p.logger.Printf("query generation failed, using fallback: %v", err)
	} else {
		candidates = parseQueryLines(raw)
	}
	if len(candidates) == 0 {
		candidates = fallbackQueries(topic)
	}

	queries := make([]Query, 0, target)
	seen := make(map[string]struct{}, target)
	for _, text := range candidates {
		key := strings.ToLower(strings.TrimSpace(text))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, Query{Text: strings.TrimSpace(text), Priority: len(queries) + 1, Hints: []SourceType{SourceWeb}})
		if len(queries) == target {
			break
		}
	}
	if len(queries) == 0 {
		queries = append(queries, Query{Text: topic, Priority: 1, Hints: []SourceType{SourceWeb}})
	}

	// The highest-priority query carries the specialized feed hints so each
	// feed is consulted exactly once per session.
	queries[0].Hints = []SourceType{SourceWeb, SourcePreprint, SourceReference, SourceNews}

	p.logger.Printf("planned %d queries for topic %q (depth %s)", len(queries), topic, depth)
	return queries
}

func (p *Planner) targetCount(depth Depth) int {
	if n, ok := p.depthQueries[string(depth)]; ok && n > 0 {
		return n
	}
	return 5
}

func parseQueryLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-*) ")
		line = strings.Trim(line, `"`)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func fallbackQueries(topic string) []string {
	return []string{
		topic,
		topic + " overview",
		topic + " recent developments",
	}
}
