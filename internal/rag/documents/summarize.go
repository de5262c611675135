package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/router"
	"golang.org/x/sync/errgroup"
)

const (
	minChunkSummaryWords = 30
	minSummaryWords      = 100
)

type Summary struct {
	Text          string
	OriginalWords int
	SummaryWords  int
	Ratio         float64
	Chunks        int
}

func ValidateRatio(ratio float64) error {
	if ratio <= 0.05 || ratio >= 1 {
		return ragErrors.New(ragErrors.InvalidInput, fmt.Sprintf("ratio %.2f must be between 0.05 and 1", ratio), nil)
	}
	return nil
}

func chunkSummaryPrompt(text string, words int) string {
	return fmt.Sprintf("Summarize the following text in about %d words:\n\n%s", words, text)
}

func mergePrompt(summaries []string, words int) string {
	return fmt.Sprintf("Merge the following summaries into one coherent paragraph, approximately %d words:\n\n%s",
		words, strings.Join(summaries, "\n"))
}

// Summarize condenses each chunk in parallel, then merges the partial
// summaries into one paragraph sized by ratio.
func (s *Service) Summarize(ctx context.Context, identity docModel.DocumentIdentity, ratio float64, step StepFunc) (Summary, error) {
	if err := ValidateRatio(ratio); err != nil {
		return Summary{}, err
	}
	log := s.logger.WithTrace(ctx).With("identity", identity.Key())

	chunks, err := s.chunks(ctx, identity)
	if err != nil {
		return Summary{}, err
	}
	cfg := router.Resolve(string(identity.Domain))

	total := 0
	for _, c := range chunks {
		total += wordCount(c.Text)
	}

	step.report(jobModel.ChunkModelCall)
	partial := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.fanOut))
	for i, c := range chunks {
		g.Go(func() error {
			words := max(minChunkSummaryWords, int(float64(wordCount(c.Text))*ratio))
			out, err := s.models.Generate(gctx, cfg, chunkSummaryPrompt(c.Text, words))
			if err != nil {
				return fmt.Errorf("summarizing chunk %d: %w", i+1, err)
			}
			partial[i] = strings.TrimSpace(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("chunk summary failed", "error", err)
		return Summary{}, err
	}

	step.report(jobModel.MergeCall)
	target := max(minSummaryWords, int(float64(total)*ratio))
	final, err := s.models.Generate(ctx, cfg, mergePrompt(partial, target))
	if err != nil {
		return Summary{}, fmt.Errorf("merging summaries: %w", err)
	}
	final = strings.TrimSpace(final)

	log.Info("document summarized", "chunks", len(chunks), "words", total, "summaryWords", wordCount(final))
	return Summary{
		Text:          final,
		OriginalWords: total,
		SummaryWords:  wordCount(final),
		Ratio:         ratio,
		Chunks:        len(chunks),
	}, nil
}
