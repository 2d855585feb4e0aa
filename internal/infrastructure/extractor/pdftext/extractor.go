// Package pdftext extracts the plain and tagged text views from PDF
// documents.
package pdftext

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

const (
	// Cumulative word cap for the tagged view.
	MaxTaggedWords = 4000

	// Font sizes at or above this are decoration, not text.
	maxFontSize = 40

	// Pages scanned when building the size histogram.
	histogramPages = 5
)

// ExtractPlain returns the paragraph-joined text of the whole document.
func ExtractPlain(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read pdf text", err)
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read pdf text", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", domain.WrapError(domain.ErrEmptyDocument, "read pdf text", fmt.Errorf("no extractable text"))
	}
	return text, nil
}

// ExtractTagged linearizes the document into <h1>/<h2>/<p> runs chosen
// by rounded glyph height, capped at MaxTaggedWords words.
func ExtractTagged(r io.ReaderAt, size int64) (string, error) {
	return ExtractTaggedWithImages(r, size, nil)
}

// ExtractTaggedWithImages additionally interleaves OCR-recovered image
// text: each block in imageBlocks, keyed by 1-based page number, is
// emitted as an <img> run after that page's textual content.
func ExtractTaggedWithImages(r io.ReaderAt, size int64, imageBlocks map[int][]string) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}

	var pages []pageContent
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, pageContent{num: pageNum, words: assembleWords(page.Content().Text)})
	}

	sizes := fontSizeThresholds(pages)
	return emitTagged(pages, sizes, MaxTaggedWords, imageBlocks), nil
}

type pageContent struct {
	num   int
	words []word
}

// FontSizeThresholds are the tag cutoffs derived from the document's
// size histogram.
type FontSizeThresholds struct {
	H1 int
	H2 int
	P  int
}

// Tag selects the tag for one rounded glyph height.
func (t FontSizeThresholds) Tag(size int) string {
	switch {
	case size >= t.H1:
		return "h1"
	case size >= t.H2:
		return "h2"
	default:
		return "p"
	}
}

type word struct {
	text string
	size int
}

// assembleWords merges the page's glyph runs into words. A word breaks
// on whitespace content, a line change, or a horizontal gap wider than
// a third of the glyph height.
func assembleWords(texts []pdf.Text) []word {
	var words []word
	var current strings.Builder
	var currentSize float64
	var lastX, lastW, lastY float64

	flush := func() {
		if current.Len() == 0 {
			return
		}
		words = append(words, word{text: current.String(), size: int(math.Round(currentSize))})
		current.Reset()
		currentSize = 0
	}

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		gap := t.X - (lastX + lastW)
		if current.Len() > 0 && (t.Y != lastY || gap > t.FontSize/3) {
			flush()
		}
		current.WriteString(t.S)
		if t.FontSize > currentSize {
			currentSize = t.FontSize
		}
		lastX, lastW, lastY = t.X, t.W, t.Y
	}
	flush()
	return words
}

// fontSizeThresholds scans the first pages and derives the h1/h2/p
// cutoffs: h1 is the largest size, h2 sits at the 75th percentile, p is
// the smallest size below h2. Degenerate documents fall back to
// 16/14/9.
func fontSizeThresholds(pages []pageContent) FontSizeThresholds {
	seen := map[int]bool{}
	for i, page := range pages {
		if i >= histogramPages {
			break
		}
		for _, w := range page.words {
			if w.size > 0 && w.size < maxFontSize {
				seen[w.size] = true
			}
		}
	}
	if len(seen) == 0 {
		return FontSizeThresholds{H1: 16, H2: 14, P: 9}
	}

	sizes := make([]int, 0, len(seen))
	for s := range seen {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)

	thresholds := FontSizeThresholds{H1: sizes[len(sizes)-1]}
	if len(sizes) > 1 {
		thresholds.H2 = sizes[int(float64(len(sizes))*0.75)]
	} else {
		thresholds.H2 = sizes[0]
	}
	thresholds.P = sizes[0]
	for _, s := range sizes {
		if s < thresholds.H2 {
			thresholds.P = s
			break
		}
	}
	return thresholds
}

// emitTagged writes consecutive same-tag words into one block. The
// output is always balanced, including when the word cap cuts the
// stream short.
func emitTagged(pages []pageContent, sizes FontSizeThresholds, maxWords int, imageBlocks map[int][]string) string {
	var b strings.Builder
	var run []string
	currentTag := ""
	emitted := 0

	flush := func() {
		if currentTag == "" {
			return
		}
		b.WriteString("<" + currentTag + ">")
		b.WriteString(strings.Join(run, " "))
		b.WriteString("</" + currentTag + ">")
		run = run[:0]
		currentTag = ""
	}

	for _, page := range pages {
		for _, w := range page.words {
			tag := sizes.Tag(w.size)
			if tag != currentTag {
				flush()
				currentTag = tag
			}
			run = append(run, w.text)
			emitted++
			if emitted >= maxWords {
				flush()
				return b.String()
			}
		}
		for _, block := range imageBlocks[page.num] {
			flush()
			b.WriteString("<img>")
			b.WriteString(block)
			b.WriteString("</img>")
			emitted += len(strings.Fields(block))
			if emitted >= maxWords {
				return b.String()
			}
		}
	}
	flush()
	return b.String()
}
