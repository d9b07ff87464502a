package research

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CitationManager assigns stable citation numbers in first-use order within a
// single session. It is safe for concurrent use although synthesis assigns
// sequentially.
type CitationManager struct {
	mu      sync.Mutex
	numbers map[string]int
	order   []string
}

func NewCitationManager() *CitationManager {
	return &CitationManager{numbers: make(map[string]int)}
}

// Assign returns the citation number for a document, allocating the next
// number on first use. Numbers start at 1 and never change once assigned.
func (m *CitationManager) Assign(docID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.numbers[docID]; ok {
		return n
	}
	n := len(m.order) + 1
	m.numbers[docID] = n
	m.order = append(m.order, docID)
	return n
}

// Known reports whether the document already holds a citation number.
func (m *CitationManager) Known(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.numbers[docID]
	return ok
}

// Citations lists every assignment in numeric order.
func (m *CitationManager) Citations() []Citation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Citation, 0, len(m.order))
	for i, id := range m.order {
		out = append(out, Citation{Number: i + 1, DocumentID: id})
	}
	return out
}

// Bibliography renders the cited documents as numbered IEEE-style entries.
// Documents that were never cited are omitted; a cited document missing from
// docs still gets an entry so numbering stays gapless.
func (m *CitationManager) Bibliography(docs []SourceDocument) []Reference {
	byID := make(map[string]SourceDocument, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	citations := m.Citations()
	refs := make([]Reference, 0, len(citations))
	for _, c := range citations {
		doc, ok := byID[c.DocumentID]
		if !ok {
			refs = append(refs, Reference{Number: c.Number, Text: "[unavailable source]"})
			continue
		}
		refs = append(refs, Reference{Number: c.Number, Text: formatReference(doc)})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Number < refs[j].Number })
	return refs
}

// formatReference builds an IEEE-flavoured entry:
//
//	F. Lastname and G. Other, "Title," domain.tld, Jan. 2024. [Online]. Available: https://...
func formatReference(doc SourceDocument) string {
	var b strings.Builder

	if authors := formatAuthors(doc.Authors); authors != "" {
		b.WriteString(authors)
		b.WriteString(", ")
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "\"%s,\"", title)

	if host := Domain(doc.URL); host != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimPrefix(host, "www."))
		b.WriteString(",")
	}

	if !doc.PublishedAt.IsZero() {
		b.WriteString(" ")
		b.WriteString(doc.PublishedAt.Format("Jan. 2006"))
		b.WriteString(".")
	}

	url := doc.URL
	if url == "" {
		url = doc.NormalizedURL
	}
	if url != "" {
		b.WriteString(" [Online]. Available: ")
		b.WriteString(url)
	}
	return strings.TrimSpace(b.String())
}

// formatAuthors abbreviates given names to initials, IEEE style.
func formatAuthors(authors []string) string {
	formatted := make([]string, 0, len(authors))
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parts := strings.Fields(a)
		if len(parts) == 1 {
			formatted = append(formatted, parts[0])
			continue
		}
		last := parts[len(parts)-1]
		initials := make([]string, 0, len(parts)-1)
		for _, given := range parts[:len(parts)-1] {
			r := []rune(given)
			initials = append(initials, strings.ToUpper(string(r[0]))+".")
		}
		formatted = append(formatted, strings.Join(initials, " ")+" "+last)
	}

	switch len(formatted) {
	case 0:
		return ""
	case 1:
		return formatted[0]
	case 2:
		return formatted[0] + " and " + formatted[1]
	default:
		if len(formatted) > 3 {
			return formatted[0] + " et al."
		}
		return strings.Join(formatted[:len(formatted)-1], ", ") + ", and " + formatted[len(formatted)-1]
	}
}
