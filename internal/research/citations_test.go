package research

import (
	"strings"
	"testing"
	"time"
)

func TestCitationNumbersAreFirstUseStable(t *testing.T) {
	t.Parallel()

	cm := NewCitationManager()
	if n := cm.Assign("doc-b"); n != 1 {
		t.Fatalf("first assignment = %d, want 1", n)
	}
	if n := cm.Assign("doc-a"); n != 2 {
		t.Fatalf("second assignment = %d, want 2", n)
	}
	if n := cm.Assign("doc-b"); n != 1 {
		t.Fatalf("repeat assignment = %d, want stable 1", n)
	}

	citations := cm.Citations()
	if len(citations) != 2 {
		t.Fatalf("got %d citations", len(citations))
	}
	if citations[0].DocumentID != "doc-b" || citations[1].DocumentID != "doc-a" {
		t.Fatalf("citations out of order: %+v", citations)
	}
}

func TestBibliographyOmitsUncitedAndKeepsNumbering(t *testing.T) {
	t.Parallel()

	cm := NewCitationManager()
	cm.Assign("cited")

	docs := []SourceDocument{
		{ID: "cited", URL: "https://example.com/a", Title: "Cited Paper"},
		{ID: "uncited", URL: "https://example.com/b", Title: "Never Referenced"},
	}
	refs := cm.Bibliography(docs)
	if len(refs) != 1 {
		t.Fatalf("got %d references, want 1", len(refs))
	}
	if refs[0].Number != 1 || !strings.Contains(refs[0].Text, "Cited Paper") {
		t.Fatalf("unexpected reference: %+v", refs[0])
	}
}

func TestFormatReference(t *testing.T) {
	t.Parallel()

	doc := SourceDocument{
		ID:          "x",
		URL:         "https://www.nature.com/articles/xyz",
		Title:       "Protein Folding at Scale",
		Authors:     []string{"Jane Mary Doe", "Bob Roe"},
		PublishedAt: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
	}
	got := formatReference(doc)
	for _, want := range []string{
		"J. M. Doe and B. Roe",
		`"Protein Folding at Scale,"`,
		"nature.com",
		"Mar. 2025",
		"[Online]. Available: https://www.nature.com/articles/xyz",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("reference %q missing %q", got, want)
		}
	}
}

func TestFormatAuthors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"Ada Lovelace"}, "A. Lovelace"},
		{[]string{"Ada Lovelace", "Alan Turing"}, "A. Lovelace and A. Turing"},
		{[]string{"A One", "B Two", "C Three"}, "A. One, B. Two, and C. Three"},
		{[]string{"A One", "B Two", "C Three", "D Four"}, "A. One et al."},
		{[]string{"Plato"}, "Plato"},
	}
	for _, tc := range cases {
		if got := formatAuthors(tc.in); got != tc.want {
			t.Errorf("formatAuthors(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
