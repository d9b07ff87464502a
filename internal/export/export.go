// Package export renders finished research reports into client-facing
// formats.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/deepscribe/researchd/internal/research"
)

// ErrUnsupportedFormat is returned for formats outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

// NormalizeFormat maps client-supplied format names onto the supported set.
// The legacy "screen" format is an alias for json.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatJSON, "screen":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

// Render serializes the report in the given format. ContentType is the MIME
// type the transport should declare.
func Render(report research.ResearchReport, format string) (body []byte, contentType string, err error) {
	normalized, err := NormalizeFormat(format)
	if err != nil {
		return nil, "", err
	}
	switch normalized {
	case FormatMarkdown:
		return []byte(Markdown(report)), "text/markdown; charset=utf-8", nil
	case FormatJSON:
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	case FormatHTML:
		var buf bytes.Buffer
		if err := markdownRenderer.Convert([]byte(Markdown(report)), &buf); err != nil {
			return nil, "", fmt.Errorf("render html: %w", err)
		}
		return wrapHTML(report.Topic, buf.Bytes()), "text/html; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Markdown renders the canonical markdown form every other format derives
// from.
func Markdown(report research.ResearchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", report.Topic)
	fmt.Fprintf(&b, "*Generated %s from %d sources (%d retrieved, depth %s).*\n\n",
		report.Metadata.GeneratedAt.Format("2006-01-02 15:04 MST"),
		report.Metadata.AcceptedSources,
		report.Metadata.TotalRetrieved,
		report.Metadata.Depth)

	for _, section := range report.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Heading)
		b.WriteString(section.Body)
		b.WriteString("\n\n")
		if section.BestEffort {
			b.WriteString("*This section is incomplete.*\n\n")
		}
	}

	if len(report.Bibliography) > 0 {
		b.WriteString("## References\n\n")
		for _, ref := range report.Bibliography {
			fmt.Fprintf(&b, "%d. %s\n", ref.Number, ref.Text)
		}
	}
	return b.String()
}

func wrapHTML(title string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	buf.WriteString(htmlEscape(title))
	buf.WriteString("</title>\n</head>\n<body>\n")
	buf.Write(body)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
