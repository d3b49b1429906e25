// Package extractor counts structural features in fetched HTML.
package extractor

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TagCounter counts occurrences of a single element tag in an HTML
// document. The zero value is not usable; construct with New.
type TagCounter struct {
	tag string
}

// New builds a TagCounter for the given tag name. Matching is
// case-insensitive, so "SCRIPT", "Script" and "script" are equivalent.
func New(tag string) *TagCounter {
	return &TagCounter{tag: strings.ToLower(tag)}
}

// Count parses body as HTML and returns the number of matching elements.
// The parse is best effort: malformed or truncated markup yields whatever
// elements the tokenizer recovers, and unparseable input yields zero. Count
// never fails and has no side effects.
func (c *TagCounter) Count(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	return doc.Find(c.tag).Length()
}
