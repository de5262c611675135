package documents

import (
	"context"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/ingest"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

type Extractor interface {
	Extract(ctx context.Context, ref string) ([]docModel.Page, error)
}

type Generator interface {
	Generate(ctx context.Context, cfg docModel.ModelConfig, prompt string) (string, error)
}

// StepFunc is told which step a long operation has reached. It may be nil.
type StepFunc func(step jobModel.InternalStatus)

func (f StepFunc) report(step jobModel.InternalStatus) {
	if f != nil {
		f(step)
	}
}

// Service runs whole-document operations: summaries, translations and
// field extraction. Every chunk failure aborts the operation.
type Service struct {
	extractor Extractor
	chunker   ingest.Chunker
	models    Generator
	fanOut    int
	maxChars  int
	logger    *logger_i.Logger
}

func NewService(extractor Extractor, models Generator) *Service {
	return &Service{
		extractor: extractor,
		// no overlap, overlapping text would be summarized and translated twice
		chunker:  ingest.Chunker{Size: config.GetInt("CHUNK_SIZE", config.ChunkSize), Overlap: 0},
		models:   models,
		fanOut:   config.GetInt("SUMMARY_FAN_OUT", config.SummaryFanOut),
		maxChars: config.GetInt("EXTRACTION_MAX_TEXT_CHARS", config.ExtractionMaxTextChars),
		logger:   logger_i.NewLogger("documents"),
	}
}

func (s *Service) load(ctx context.Context, identity docModel.DocumentIdentity) ([]docModel.Page, error) {
	if !identity.Valid() {
		return nil, ragErrors.New(ragErrors.InvalidInput, "owner and document are required", nil)
	}
	return s.extractor.Extract(ctx, identity.DocumentRef)
}

func (s *Service) chunks(ctx context.Context, identity docModel.DocumentIdentity) ([]docModel.Chunk, error) {
	pages, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	chunks := s.chunker.PrepareChunks(pages, identity.DocumentRef)
	if len(chunks) == 0 {
		return nil, ragErrors.New(ragErrors.NoReadableContent, identity.DisplayName(), nil)
	}
	return chunks, nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
