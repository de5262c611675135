package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

// extractPDF reads native text page by page. Pages without text are OCR'd one
// at a time; when no page had native text the whole document goes through OCR.
func (e *Extractor) extractPDF(ctx context.Context, path string) ([]docModel.Page, error) {
	logger := logger_i.FromContext(ctx, "extractor")

	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file", "path", path, "error", err)
		return nil, ragErrors.New(ragErrors.SourceUnavailable, "failed to open pdf", err)
	}

	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)

	pages := make([]docModel.Page, 0, numPages)
	nativeFound := false
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content := ""
		page := f.Page(i)
		if !page.V.IsNull() {
			content, err = protectExtract(ctx, page)
			if err != nil {
				logger.Warn("error parsing page content", "page", i, "error", err)
			}
		}
		if strings.TrimSpace(content) != "" {
			nativeFound = true
		}
		pages = append(pages, docModel.Page{Number: i, Content: content})
	}

	if !nativeFound {
		logger.Info("no native text, running ocr on the whole document", "pages", numPages)
		ocrPages, err := e.ocr.RecognizeDocument(ctx, path)
		if err != nil {
			logger.Error("document ocr failed", "error", err)
			return nil, nil
		}
		return ocrPages, nil
	}

	for i := range pages {
		if strings.TrimSpace(pages[i].Content) != "" {
			continue
		}
		text, err := e.ocr.RecognizePage(ctx, path, pages[i].Number)
		if err != nil {
			logger.Warn("page ocr failed", "page", pages[i].Number, "error", err)
			continue
		}
		pages[i].Content = text
		pages[i].OCR = true
	}
	return pages, nil
}

// extractDocxTxtRtf reads .odt, .docx, .rtf or plaintext files. cat has no page
// information so the content is a single page.
func extractDocxTxtRtf(path string) ([]docModel.Page, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, ragErrors.New(ragErrors.SourceUnavailable, "failed to extract text document", err)
	}
	return []docModel.Page{{Number: 1, Content: text}}, nil
}

func protectExtract(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("pdf parser panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, config.PageExtractTimeout)
	defer cancel()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-ctx.Done():
		return "", errors.New("page extraction timed out")
	}
}
