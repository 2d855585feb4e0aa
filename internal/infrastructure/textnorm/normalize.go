// Package textnorm holds the pure text-repair functions applied to
// extracted text and metadata fields. No function here performs I/O.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	dotsRun        = regexp.MustCompile(`\.{2,}`)
	punctRun       = regexp.MustCompile(`([{}\[\]()*\-+?,:;._!@#$%^&])\1{2,}`)
	letterRun      = regexp.MustCompile(`([A-Za-zÁÉÍÓÚáéíóúÑñ])\1{2,}`)
	repeatedDigits = regexp.MustCompile(`(\d{6,})\s*[-–]+\s*(\d{6,})`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Normalize applies the standard repair pass: dot runs become a space,
// duplicated digit blocks are collapsed, and runs of three or more
// identical letters or punctuation characters collapse to one.
func Normalize(text string) string {
	text = dotsRun.ReplaceAllString(text, " ")
	text = RepairRepeatedNumbers(text)
	text = punctRun.ReplaceAllString(text, "$1")
	text = punctRun.ReplaceAllString(text, "$1")
	return letterRun.ReplaceAllString(text, "$1")
}

// RepairRepeatedNumbers fixes extraction artifacts of the form
// 11223344-55667788, where every digit of a page-range pair was doubled
// or quadrupled by overlapping glyphs. Each side keeps one digit per
// repetition block; sides with odd length are left untouched.
func RepairRepeatedNumbers(text string) string {
	return repeatedDigits.ReplaceAllStringFunc(text, func(match string) string {
		parts := repeatedDigits.FindStringSubmatch(match)
		return dedupeDigits(parts[1]) + "-" + dedupeDigits(parts[2])
	})
}

func dedupeDigits(num string) string {
	n := len(num)
	step := 0
	switch {
	case n%4 == 0:
		step = n / 4
	case n%2 == 0:
		step = 2
	default:
		return num
	}
	var b strings.Builder
	for i := 0; i < n; i += step {
		b.WriteByte(num[i])
	}
	return b.String()
}

// NormalizeForTraining is the minimal preprocessing used when loading
// classifier datasets: whitespace runs become single spaces and the
// text is lowercased. Feature extraction beyond that is
// strategy-specific.
func NormalizeForTraining(text string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")))
}

// ShortenTokens keeps the first n whitespace-delimited tokens.
func ShortenTokens(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ")
}

// CanonicalKeyword keeps the segment before the repository's intra-term
// qualifier separator.
func CanonicalKeyword(keyword string) string {
	if i := strings.Index(keyword, "::"); i >= 0 {
		return keyword[:i]
	}
	return keyword
}

// CanonicalKeywords maps CanonicalKeyword over a list.
func CanonicalKeywords(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = CanonicalKeyword(k)
	}
	return out
}

// CanonicalType folds the repository's dc.type spelling variants into
// the fixed label set. Unknown values pass through.
func CanonicalType(docType string) string {
	variants := map[string]string{
		"Artículo": "Articulo",
		"Articulo": "Articulo",
		"Article":  "Articulo",
		"ARTÍCULO": "Articulo",
		"Tesis":    "Tesis",
		"Tesina":   "Tesis",
	}
	if v, ok := variants[docType]; ok {
		return v
	}
	return docType
}
