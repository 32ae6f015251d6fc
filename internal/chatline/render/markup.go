// Package render turns message content into terminal output. It supports
// the display subset used by replies: **x** and *x* mark emphasized text and
// newlines are line breaks. Content is not escaped.
package render

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	doubleStar = regexp.MustCompile(`\*\*([^\n]*?)\*\*`)
	singleStar = regexp.MustCompile(`\*([^\n]*?)\*`)
)

// Span is a run of content that is either plain or emphasized
type Span struct {
	Text       string
	Emphasized bool
}

// Spans splits content into plain and emphasized spans. Double-asterisk
// spans are matched first, then single-asterisk spans in the remaining
// plain text. Matches never cross a newline and empty emphasized spans are
// dropped.
func Spans(content string) []Span {
	var spans []Span
	for _, s := range split(content, doubleStar) {
		if s.Emphasized {
			spans = append(spans, s)
			continue
		}
		spans = append(spans, split(s.Text, singleStar)...)
	}
	return spans
}

func split(content string, re *regexp.Regexp) []Span {
	var spans []Span
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > last {
			spans = append(spans, Span{Text: content[last:m[0]]})
		}
		if inner := content[m[2]:m[3]]; inner != "" {
			spans = append(spans, Span{Text: inner, Emphasized: true})
		}
		last = m[1]
	}
	if last < len(content) {
		spans = append(spans, Span{Text: content[last:]})
	}
	return spans
}

// Markup renders content with emphasized spans styled by emphasis
func Markup(content string, emphasis lipgloss.Style) string {
	var b strings.Builder
	for _, s := range Spans(content) {
		if s.Emphasized {
			b.WriteString(emphasis.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Plain returns content with the markup delimiters removed
func Plain(content string) string {
	var b strings.Builder
	for _, s := range Spans(content) {
		b.WriteString(s.Text)
	}
	return b.String()
}
