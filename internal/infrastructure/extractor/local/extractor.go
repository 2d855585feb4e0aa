// Package local runs text extraction in-process. The worker and the
// extraction endpoints use it directly; the orchestrator can also be
// wired to the remote extractor service instead.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/docx"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/ocr"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/pdftext"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/plaintext"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/textnorm"
)

type Extractor struct {
	ocrEngine *ocr.Engine
}

// NewExtractor builds the in-process extractor. ocrEngine may be nil,
// which disables the image sub-pipeline regardless of request options.
func NewExtractor(ocrEngine *ocr.Engine) *Extractor {
	return &Extractor{ocrEngine: ocrEngine}
}

func (e *Extractor) ExtractPlain(ctx context.Context, filename string, data io.Reader, normalize bool) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read document", err)
	}

	var text string
	switch extension(filename) {
	case ".pdf":
		text, err = pdftext.ExtractPlain(bytes.NewReader(raw), int64(len(raw)))
	case ".docx":
		text, err = docx.ExtractPlain(bytes.NewReader(raw), int64(len(raw)))
	case ".txt":
		text, err = plaintext.ExtractPlain(bytes.NewReader(raw))
	default:
		return "", domain.WrapError(domain.ErrFormat, "extract plain", fmt.Errorf("unsupported extension %q", extension(filename)))
	}
	if err != nil {
		return "", err
	}
	if normalize {
		text = textnorm.Normalize(text)
	}
	return text, nil
}

func (e *Extractor) ExtractTagged(ctx context.Context, filename string, data io.Reader, opts domain.ExtractOptions) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read document", err)
	}

	var tagged string
	switch extension(filename) {
	case ".pdf":
		tagged, err = e.taggedPDF(ctx, raw, opts)
	case ".docx":
		tagged, err = e.taggedDocx(ctx, raw, opts)
	case ".txt":
		tagged, err = plaintext.ExtractTagged(bytes.NewReader(raw))
	default:
		return "", domain.WrapError(domain.ErrFormat, "extract tagged", fmt.Errorf("unsupported extension %q", extension(filename)))
	}
	if err != nil {
		return "", err
	}
	if opts.Normalize {
		tagged = textnorm.Normalize(tagged)
	}
	return tagged, nil
}

func (e *Extractor) taggedPDF(ctx context.Context, raw []byte, opts domain.ExtractOptions) (string, error) {
	if !opts.OCR || e.ocrEngine == nil {
		return pdftext.ExtractTagged(bytes.NewReader(raw), int64(len(raw)))
	}

	// pdfcpu works on files.
	tempFile, err := os.CreateTemp("", "extract-*.pdf")
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "write temp pdf", err)
	}
	defer os.Remove(tempFile.Name())
	if _, err := tempFile.Write(raw); err != nil {
		tempFile.Close()
		return "", domain.WrapError(domain.ErrExtraction, "write temp pdf", err)
	}
	tempFile.Close()

	blocks, err := e.ocrEngine.PDFImageBlocks(ctx, tempFile.Name())
	if err != nil {
		return "", err
	}
	return pdftext.ExtractTaggedWithImages(bytes.NewReader(raw), int64(len(raw)), blocks)
}

func (e *Extractor) taggedDocx(ctx context.Context, raw []byte, opts domain.ExtractOptions) (string, error) {
	tagged, err := docx.ExtractTagged(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	if !opts.OCR || e.ocrEngine == nil {
		return tagged, nil
	}

	images, err := docx.Images(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	data := make([][]byte, len(images))
	for i, img := range images {
		data[i] = img.Data
	}
	blocks, err := e.ocrEngine.DocxImageBlocks(ctx, data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(tagged)
	for _, block := range blocks {
		b.WriteString("<img>")
		b.WriteString(block)
		b.WriteString("</img>")
	}
	return b.String(), nil
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
