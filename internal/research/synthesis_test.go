package research

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeSearcher struct {
	chunks []RetrievedChunk
	err    error
}

func (f *fakeSearcher) Search(_ context.Context, _, _ string, _ int) ([]RetrievedChunk, error) {
	return f.chunks, f.err
}

// sequenceLLM returns canned responses in order, then repeats the last one.
type sequenceLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (s *sequenceLLM) Generate(_ context.Context, _ string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], err
}

func testDocs() []SourceDocument {
	return []SourceDocument{
		{ID: "doc1", URL: "https://a.example.com", Title: "First"},
		{ID: "doc2", URL: "https://b.example.com", Title: "Second"},
	}
}

func newTestSynthesizer(llm LLMProvider, searcher ContextSearcher) *Synthesizer {
	return NewSynthesizer(llm, searcher, SynthesisConfig{
		Outline:        []string{"Introduction", "Conclusion"},
		TopK:           4,
		SectionRetries: 1,
		Backoff:        1,
	}, nil)
}

func TestSectionResolvesMarkers(t *testing.T) {
	t.Parallel()

	llm := &sequenceLLM{responses: []string{"Claim one [S:doc1]. Claim two [S:doc2]. Again [S:doc1]."}}
	searcher := &fakeSearcher{chunks: []RetrievedChunk{
		{Chunk: Chunk{DocumentID: "doc1", Text: "alpha"}},
		{Chunk: Chunk{DocumentID: "doc2", Text: "beta"}},
	}}
	s := newTestSynthesizer(llm, searcher)
	cm := NewCitationManager()

	section, err := s.Section(context.Background(), "sess", "topic", "Introduction", testDocs(), cm)
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	want := "Claim one [1]. Claim two [2]. Again [1]."
	if section.Body != want {
		t.Fatalf("body = %q, want %q", section.Body, want)
	}
	if len(section.Citations) != 2 || section.Citations[0] != 1 || section.Citations[1] != 2 {
		t.Fatalf("citations = %v", section.Citations)
	}
}

func TestSectionDropsUnknownMarkers(t *testing.T) {
	t.Parallel()

	llm := &sequenceLLM{responses: []string{"Real [S:doc1]. Hallucinated [S:ghost]."}}
	s := newTestSynthesizer(llm, &fakeSearcher{})
	cm := NewCitationManager()

	section, err := s.Section(context.Background(), "sess", "topic", "Introduction", testDocs(), cm)
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	if strings.Contains(section.Body, "ghost") || strings.Contains(section.Body, "[S:") {
		t.Fatalf("unknown marker leaked into body: %q", section.Body)
	}
	if len(section.Citations) != 1 {
		t.Fatalf("citations = %v, want only the real one", section.Citations)
	}
}

func TestSectionRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	llm := &sequenceLLM{
		responses: []string{"", "Recovered text [S:doc1]."},
		errs:      []error{errors.New("transient"), nil},
	}
	s := newTestSynthesizer(llm, &fakeSearcher{})
	cm := NewCitationManager()

	section, err := s.Section(context.Background(), "sess", "topic", "Introduction", testDocs(), cm)
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	if section.BestEffort {
		t.Fatal("expected recovered section, got best-effort")
	}
	if llm.calls != 2 {
		t.Fatalf("llm calls = %d, want 2", llm.calls)
	}
}

func TestSectionBestEffortAfterRetryBudget(t *testing.T) {
	t.Parallel()

	llm := &sequenceLLM{
		responses: []string{"", ""},
		errs:      []error{errors.New("down"), errors.New("down")},
	}
	s := newTestSynthesizer(llm, &fakeSearcher{})
	cm := NewCitationManager()

	section, err := s.Section(context.Background(), "sess", "topic", "Conclusion", testDocs(), cm)
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	if !section.BestEffort {
		t.Fatal("expected best-effort placeholder section")
	}
	if section.Heading != "Conclusion" || section.Body == "" {
		t.Fatalf("placeholder section malformed: %+v", section)
	}
}

func TestSectionFailsWhenContextSearchFails(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(&sequenceLLM{responses: []string{"x"}}, &fakeSearcher{err: errors.New("store down")})
	_, err := s.Section(context.Background(), "sess", "topic", "Introduction", testDocs(), NewCitationManager())
	if err == nil {
		t.Fatal("expected error when context search fails")
	}
}
