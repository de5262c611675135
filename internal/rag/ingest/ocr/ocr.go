package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

var ErrToolNotFound = errors.New("ocr: pdftoppm and tesseract must be installed")

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type Engine interface {
	RecognizePage(ctx context.Context, pdfPath string, page int) (string, error)
	RecognizeDocument(ctx context.Context, pdfPath string) ([]docModel.Page, error)
	RecognizeImage(ctx context.Context, imagePath string) (string, error)
}

// Tesseract renders PDF pages with pdftoppm and reads them with tesseract.
type Tesseract struct {
	runner CommandRunner
	dpi    int
}

func New() *Tesseract {
	return NewWithRunner(execRunner{})
}

func NewWithRunner(runner CommandRunner) *Tesseract {
	return &Tesseract{runner: runner, dpi: config.OCRRenderDPI}
}

func CheckAvailable() error {
	for _, tool := range []string{"pdftoppm", "tesseract"} {
		if _, err := exec.LookPath(tool); err != nil {
			return ErrToolNotFound
		}
	}
	return nil
}

func (t *Tesseract) RecognizePage(ctx context.Context, pdfPath string, page int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.OCRPageTimeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "docusense-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	p := strconv.Itoa(page)
	if err := t.render(ctx, dir, pdfPath, "-f", p, "-l", p); err != nil {
		return "", err
	}
	images, err := renderedImages(dir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	return t.RecognizeImage(ctx, images[0].path)
}

func (t *Tesseract) RecognizeDocument(ctx context.Context, pdfPath string) ([]docModel.Page, error) {
	logger := logger_i.FromContext(ctx, "ocr")

	dir, err := os.MkdirTemp("", "docusense-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := t.render(ctx, dir, pdfPath); err != nil {
		return nil, err
	}
	images, err := renderedImages(dir)
	if err != nil {
		return nil, err
	}

	pages := make([]docModel.Page, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageCtx, cancel := context.WithTimeout(ctx, config.OCRPageTimeout)
		text, err := t.RecognizeImage(pageCtx, img.path)
		cancel()
		if err != nil {
			logger.Warn("ocr failed for page", "page", img.page, "error", err)
			continue
		}
		pages = append(pages, docModel.Page{Number: img.page, Content: text, OCR: true})
	}
	return pages, nil
}

func (t *Tesseract) RecognizeImage(ctx context.Context, imagePath string) (string, error) {
	out, err := t.runner.Run(ctx, "tesseract", imagePath, "stdout")
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (t *Tesseract) render(ctx context.Context, dir string, pdfPath string, pageArgs ...string) error {
	args := []string{"-r", strconv.Itoa(t.dpi), "-png"}
	args = append(args, pageArgs...)
	args = append(args, pdfPath, filepath.Join(dir, "page"))
	if _, err := t.runner.Run(ctx, "pdftoppm", args...); err != nil {
		return fmt.Errorf("pdftoppm failed: %w", err)
	}
	return nil
}

type renderedImage struct {
	page int
	path string
}

// renderedImages lists page-N.png files in page order. pdftoppm zero pads N
// according to the page count, so the number is parsed rather than sorted as text.
func renderedImages(dir string) ([]renderedImage, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	images := make([]renderedImage, 0, len(matches))
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".png")
		n, err := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		if err != nil {
			continue
		}
		images = append(images, renderedImage{page: n, path: m})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].page < images[j].page })
	return images, nil
}
