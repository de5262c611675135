package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/embedding"
	"github.com/akolanti/DocuSense/internal/rag/ingest/blob"
	"github.com/akolanti/DocuSense/internal/rag/ingest/ocr"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

type docType string

const (
	docPDF   docType = "PDF"
	docText  docType = "TEXT"
	docImage docType = "IMAGE"
	docErr   docType = "ERR"
)

func getDocType(docPath string) docType {
	switch strings.ToLower(filepath.Ext(docPath)) {
	case ".pdf":
		return docPDF
	case ".docx", ".odt", ".rtf", ".txt", ".md":
		return docText
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		return docImage
	default:
		return docErr
	}
}

// Supported reports whether the extractor knows the file's type.
func Supported(docPath string) bool {
	return getDocType(docPath) != docErr
}

type Extractor struct {
	fetcher blob.Fetcher
	ocr     ocr.Engine
}

func NewExtractor(fetcher blob.Fetcher, engine ocr.Engine) *Extractor {
	return &Extractor{fetcher: fetcher, ocr: engine}
}

// Extract returns the document's pages in reading order. A source that cannot
// be opened is SourceUnavailable, a document with no text even after OCR is
// NoReadableContent. Neither is retried.
func (e *Extractor) Extract(ctx context.Context, ref string) ([]docModel.Page, error) {
	logger := logger_i.FromContext(ctx, "extractor")

	path, cleanup, err := e.fetcher.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	kind := getDocType(path)
	logger.Debug("extracting document", "ref", ref, "type", kind)

	var pages []docModel.Page
	switch kind {
	case docPDF:
		pages, err = e.extractPDF(ctx, path)
	case docText:
		pages, err = extractDocxTxtRtf(path)
	case docImage:
		var text string
		text, err = e.ocr.RecognizeImage(ctx, path)
		if err != nil {
			logger.Warn("image ocr failed", "error", err)
			err = nil
		}
		pages = []docModel.Page{{Number: 1, Content: text, OCR: true}}
	default:
		return nil, ragErrors.New(ragErrors.InvalidInput, "unsupported document type "+filepath.Ext(path), nil)
	}
	if err != nil {
		return nil, err
	}

	if !hasText(pages) {
		return nil, ragErrors.New(ragErrors.NoReadableContent, ref, nil)
	}
	logger.Debug("extracted document", "pages", len(pages))
	return pages, nil
}

func hasText(pages []docModel.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			return true
		}
	}
	return false
}

// EmbedChunks embeds chunk texts in batches, one vector per chunk in chunk order.
func EmbedChunks(ctx context.Context, chunks []docModel.Chunk, embedder embedding.Embedder) ([][]float32, error) {
	logger := logger_i.FromContext(ctx, "batch embedding")

	batchSize := config.EmbeddingBatchSize
	isHugeDataSet := len(chunks) > config.HugeDataSetChunkCount
	if isHugeDataSet {
		logger.Debug("is a huge dataset", "chunks", len(chunks))
	}

	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}

		logger.Debug("starting embedding call", "batch start", i, "batch length", len(texts))
		batch, err := embedder.BatchEmbedding(ctx, texts, isHugeDataSet)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d failed: %w", i/batchSize, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding batch %d returned %d vectors for %d chunks", i/batchSize, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
