// Package ocr recovers text from embedded document images with an
// external OCR engine.
package ocr

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

const (
	// Images covering this share of the page are backgrounds.
	backgroundAreaRatio = 0.8

	// Minimum sizes below which an image carries no readable text.
	// Wide strips (banners, rules) use the looser bound.
	minSquareSide = 100
	minStripW     = 50
	minStripH     = 20
)

// Runner executes the OCR binary. Injectable for tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner shells out to the real binary.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type Engine struct {
	runner Runner
	binary string
	lang   string
	logger *slog.Logger
}

func NewEngine(runner Runner, binary, lang string, logger *slog.Logger) *Engine {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "spa"
	}
	return &Engine{runner: runner, binary: binary, lang: lang, logger: logger}
}

// ImageText runs the OCR engine over one image file.
func (e *Engine) ImageText(ctx context.Context, imagePath string) (string, error) {
	out, err := e.runner.Run(ctx, e.binary, imagePath, "stdout", "-l", e.lang)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "run ocr", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// extracted image names end in _<page>_<resource>.<ext>
var imagePagePattern = regexp.MustCompile(`_(\d+)_[^_]+\.\w+$`)

// PDFImageBlocks extracts the document's embedded images and OCRs the
// ones that plausibly carry text. Returns recovered blocks keyed by
// 1-based page number. Skipped: duplicate (width,height) pairs already
// seen on earlier pages, page-sized backgrounds, and tiny images.
func (e *Engine) PDFImageBlocks(ctx context.Context, pdfPath string) (map[int][]string, error) {
	pageDims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "read page dimensions", err)
	}

	tempDir, err := os.MkdirTemp("", "ocr-images-")
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "create image dir", err)
	}
	defer os.RemoveAll(tempDir)

	if err := api.ExtractImagesFile(pdfPath, tempDir, nil, nil); err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "extract images", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "list images", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	blocks := map[int][]string{}
	seenSizes := map[[2]int]bool{}
	for _, name := range names {
		match := imagePagePattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		page, _ := strconv.Atoi(match[1])
		path := filepath.Join(tempDir, name)

		width, height, ok := imageSize(path)
		if !ok {
			continue
		}
		if seenSizes[[2]int{width, height}] {
			continue
		}
		seenSizes[[2]int{width, height}] = true
		if !worthReading(width, height, page, pageDims) {
			continue
		}

		text, err := e.ImageText(ctx, path)
		if err != nil {
			e.logger.Warn("ocr failed", "image", name, "error", err)
			continue
		}
		if text != "" {
			blocks[page] = append(blocks[page], text)
		}
	}
	return blocks, nil
}

// DocxImageBlocks OCRs a list of raw embedded images, applying the
// same size-based filters. All blocks land on page 1 since DOCX media
// entries carry no page anchor.
func (e *Engine) DocxImageBlocks(ctx context.Context, images [][]byte) ([]string, error) {
	tempDir, err := os.MkdirTemp("", "ocr-images-")
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "create image dir", err)
	}
	defer os.RemoveAll(tempDir)

	var blocks []string
	seenSizes := map[[2]int]bool{}
	for i, data := range images {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			continue
		}
		if seenSizes[[2]int{cfg.Width, cfg.Height}] {
			continue
		}
		seenSizes[[2]int{cfg.Width, cfg.Height}] = true
		if tooSmall(cfg.Width, cfg.Height) {
			continue
		}

		path := filepath.Join(tempDir, "media-"+strconv.Itoa(i))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, "write image", err)
		}
		text, err := e.ImageText(ctx, path)
		if err != nil {
			e.logger.Warn("ocr failed", "index", i, "error", err)
			continue
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	}
	return blocks, nil
}

func imageSize(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func worthReading(width, height, page int, pageDims []types.Dim) bool {
	if tooSmall(width, height) {
		return false
	}
	if page >= 1 && page <= len(pageDims) {
		dim := pageDims[page-1]
		pageArea := dim.Width * dim.Height
		if pageArea > 0 && float64(width)*float64(height) >= backgroundAreaRatio*pageArea {
			return false
		}
	}
	return true
}

func tooSmall(width, height int) bool {
	if width > 2*height {
		return width < minStripW || height < minStripH
	}
	return width < minSquareSide || height < minSquareSide
}
