// Package redact implements the result sink's text substitution pass.
// Configured terms are replaced case-insensitively in all extracted textual
// fields before a page result is considered final. URLs, counts, and ordering
// are never altered.
package redact

import (
	"regexp"
	"strings"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// Redactor rewrites configured terms with a fixed replacement.
type Redactor struct {
	pattern     *regexp.Regexp
	replacement string
}

// New builds a Redactor. With no terms the redactor is a no-op.
func New(terms []string, replacement string) *Redactor {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) == 0 {
		return &Redactor{}
	}
	return &Redactor{
		pattern:     regexp.MustCompile("(?i)" + strings.Join(quoted, "|")),
		replacement: replacement,
	}
}

// Text substitutes all configured terms in s.
func (r *Redactor) Text(s string) string {
	if r.pattern == nil {
		return s
	}
	return r.pattern.ReplaceAllLiteralString(s, r.replacement)
}

// Apply returns a copy of result with body content, anchor text, and image
// alt text redacted. Slices are copied so the input is never mutated.
func (r *Redactor) Apply(result crawl.PageResult) crawl.PageResult {
	if r.pattern == nil {
		return result
	}
	out := result
	out.Content = r.Text(result.Content)

	out.Links = make([]crawl.Link, len(result.Links))
	for i, link := range result.Links {
		out.Links[i] = crawl.Link{Text: r.Text(link.Text), URL: link.URL}
	}

	out.Images = make([]crawl.Image, len(result.Images))
	for i, img := range result.Images {
		out.Images[i] = crawl.Image{Src: img.Src, Alt: r.Text(img.Alt)}
	}
	return out
}
