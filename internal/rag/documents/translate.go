package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/router"
)

type Translation struct {
	Language string
	Text     string
	Sections int
}

// CanonicalLanguage matches a supported language case-insensitively.
func CanonicalLanguage(language string) (string, error) {
	for _, l := range config.SupportedLanguages {
		if strings.EqualFold(l, strings.TrimSpace(language)) {
			return l, nil
		}
	}
	return "", ragErrors.New(ragErrors.InvalidInput,
		fmt.Sprintf("unsupported language %q, expected one of %s", language, strings.Join(config.SupportedLanguages, ", ")), nil)
}

func translatePrompt(text string, language string) string {
	return fmt.Sprintf("You are a professional translator.\nTranslate the following document into %s.\n"+
		"Preserve formatting, names, lists, and numbers.\n\n%s", language, text)
}

// Translate goes chunk by chunk in document order. Blank chunks are skipped
// and an empty translation fails the whole document.
func (s *Service) Translate(ctx context.Context, identity docModel.DocumentIdentity, language string, step StepFunc) (Translation, error) {
	language, err := CanonicalLanguage(language)
	if err != nil {
		return Translation{}, err
	}
	log := s.logger.WithTrace(ctx).With("identity", identity.Key(), "language", language)

	chunks, err := s.chunks(ctx, identity)
	if err != nil {
		return Translation{}, err
	}
	cfg := router.Resolve(string(identity.Domain))

	step.report(jobModel.ChunkModelCall)
	var sb strings.Builder
	sections := 0
	for i, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out, err := s.models.Generate(ctx, cfg, translatePrompt(text, language))
		if err != nil {
			return Translation{}, fmt.Errorf("translating chunk %d: %w", i+1, err)
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return Translation{}, ragErrors.New(ragErrors.ModelInferenceFailed, fmt.Sprintf("empty translation for chunk %d", i+1), nil)
		}

		sections++
		if sections > 1 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Section %d ---\n%s", sections, out)
	}

	log.Info("document translated", "sections", sections)
	return Translation{Language: language, Text: sb.String(), Sections: sections}, nil
}
