// Package tagtext inspects the linearized tag streams produced by the
// extractors. The alphabet is fixed: h1, h2, p and img.
package tagtext

import (
	"strings"

	"golang.org/x/net/html"
)

// TagCounts returns open and close counts per tag name.
func TagCounts(tagged string) (open map[string]int, closed map[string]int) {
	open = map[string]int{}
	closed = map[string]int{}
	tokenizer := html.NewTokenizer(strings.NewReader(tagged))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return open, closed
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			open[string(name)]++
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			closed[string(name)]++
		}
	}
}

// StripTags returns the text content of a tag stream, blocks joined by
// single spaces.
func StripTags(tagged string) string {
	var parts []string
	tokenizer := html.NewTokenizer(strings.NewReader(tagged))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.TextToken:
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

// Balanced reports whether every emitted tag is properly closed.
func Balanced(tagged string) bool {
	open, closed := TagCounts(tagged)
	if len(open) != len(closed) {
		return false
	}
	for name, n := range open {
		if closed[name] != n {
			return false
		}
	}
	return true
}
