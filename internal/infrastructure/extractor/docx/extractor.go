// Package docx extracts the plain and tagged text views from DOCX
// documents. A .docx is a zip archive; the text lives in
// word/document.xml and embedded images under word/media/.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

const (
	// Cumulative word cap for the tagged view. DOCX uses a tighter
	// cap than PDF.
	MaxTaggedWords = 2000

	maxFontSize        = 40
	histogramParagraph = 100
)

type wordDocument struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Properties struct {
		Size struct {
			Val string `xml:"val,attr"`
		} `xml:"sz"`
	} `xml:"rPr"`
	Text []string `xml:"t"`
}

// halfPoints converts the w:sz value (half-points) to rounded points.
func (r run) fontSize() int {
	if r.Properties.Size.Val == "" {
		return 0
	}
	halfPoints, err := strconv.Atoi(r.Properties.Size.Val)
	if err != nil {
		return 0
	}
	return (halfPoints + 1) / 2
}

func parse(r io.ReaderAt, size int64) (*wordDocument, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open docx", err)
	}
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, "open document.xml", err)
		}
		defer rc.Close()

		var doc wordDocument
		if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, "parse document.xml", err)
		}
		return &doc, nil
	}
	return nil, domain.WrapError(domain.ErrExtraction, "open docx", fmt.Errorf("word/document.xml not found"))
}

// ExtractPlain returns the line-joined paragraph text.
func ExtractPlain(r io.ReaderAt, size int64) (string, error) {
	doc, err := parse(r, size)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, p := range doc.Body.Paragraphs {
		if text := strings.TrimSpace(paragraphText(p)); text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) == 0 {
		return "", domain.WrapError(domain.ErrEmptyDocument, "read docx text", fmt.Errorf("no extractable text"))
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractTagged mirrors the PDF tagging using run font sizes in place
// of glyph heights. Each paragraph is tagged by its largest run;
// consecutive same-tag paragraphs share one block.
func ExtractTagged(r io.ReaderAt, size int64) (string, error) {
	doc, err := parse(r, size)
	if err != nil {
		return "", err
	}
	sizes := fontSizeThresholds(doc)

	var b strings.Builder
	var blocks []string
	currentTag := ""
	emitted := 0

	flush := func() {
		if currentTag == "" || len(blocks) == 0 {
			return
		}
		b.WriteString("<" + currentTag + ">")
		b.WriteString(strings.Join(blocks, " "))
		b.WriteString("</" + currentTag + ">")
		blocks = blocks[:0]
	}

	for _, p := range doc.Body.Paragraphs {
		text := strings.TrimSpace(paragraphText(p))
		if text == "" {
			continue
		}
		maxSize := 0
		for _, r := range p.Runs {
			if fs := r.fontSize(); fs > maxSize {
				maxSize = fs
			}
		}
		tag := sizes.Tag(maxSize)
		if tag != currentTag {
			flush()
			currentTag = tag
		}
		blocks = append(blocks, text)
		emitted += len(strings.Fields(text))
		if emitted >= MaxTaggedWords {
			break
		}
	}
	flush()
	if b.Len() == 0 {
		return "", domain.WrapError(domain.ErrEmptyDocument, "read docx text", fmt.Errorf("no extractable text"))
	}
	return b.String(), nil
}

func paragraphText(p paragraph) string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return b.String()
}

type thresholds struct {
	H1 int
	H2 int
	P  int
}

func (t thresholds) Tag(size int) string {
	switch {
	case size >= t.H1:
		return "h1"
	case size >= t.H2:
		return "h2"
	default:
		return "p"
	}
}

func fontSizeThresholds(doc *wordDocument) thresholds {
	seen := map[int]bool{}
	for i, p := range doc.Body.Paragraphs {
		if i >= histogramParagraph {
			break
		}
		for _, r := range p.Runs {
			if fs := r.fontSize(); fs > 0 && fs < maxFontSize {
				seen[fs] = true
			}
		}
	}
	if len(seen) == 0 {
		return thresholds{H1: 16, H2: 14, P: 9}
	}

	sizes := make([]int, 0, len(seen))
	for s := range seen {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)

	th := thresholds{H1: sizes[len(sizes)-1]}
	if len(sizes) > 1 {
		th.H2 = sizes[int(float64(len(sizes))*0.75)]
	} else {
		th.H2 = sizes[0]
	}
	th.P = sizes[0]
	for _, s := range sizes {
		if s < th.H2 {
			th.P = s
			break
		}
	}
	return th
}

// Image is one embedded media entry.
type Image struct {
	Name string
	Data []byte
}

// Images lists the embedded media stream in archive order.
func Images(r io.ReaderAt, size int64) ([]Image, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open docx", err)
	}
	var images []Image
	for _, file := range archive.File {
		if !strings.HasPrefix(file.Name, "word/media/") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, "open media entry", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, "read media entry", err)
		}
		images = append(images, Image{Name: file.Name, Data: data})
	}
	return images, nil
}
