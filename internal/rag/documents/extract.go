package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/ingest"
	"github.com/akolanti/DocuSense/internal/rag/router"
	"github.com/bytedance/sonic"
	"github.com/google/jsonschema-go/jsonschema"
)

type Extraction struct {
	Domain docModel.Domain
	Fields map[string]any
}

func extractionPrompt(fields []string, text string) string {
	return "Extract the following fields from the document and reply with a single JSON object only, no prose.\n" +
		"Use exactly these keys, and null for anything the document does not state:\n- " +
		strings.Join(fields, "\n- ") +
		"\n\nDocument Text:\n" + text
}

// fieldsSchema requires an object carrying every field; values are free-form.
func fieldsSchema(fields []string) (*jsonschema.Resolved, error) {
	props := make(map[string]*jsonschema.Schema, len(fields))
	for _, f := range fields {
		props[f] = &jsonschema.Schema{}
	}
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   fields,
	}
	return schema.Resolve(nil)
}

// parseFields pulls the JSON object out of a model reply. The reply is data
// only, it is never evaluated.
func parseFields(reply string, resolved *jsonschema.Resolved) (map[string]any, error) {
	body := stripFences(reply)
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var fields map[string]any
	if err := sonic.ConfigStd.UnmarshalFromString(body[start:end+1], &fields); err != nil {
		return nil, fmt.Errorf("decoding model reply: %w", err)
	}
	if err := resolved.Validate(fields); err != nil {
		return nil, fmt.Errorf("model reply does not match the field schema: %w", err)
	}
	return fields, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Extract asks the domain model for the domain's fields as JSON.
func (s *Service) Extract(ctx context.Context, identity docModel.DocumentIdentity, step StepFunc) (Extraction, error) {
	log := s.logger.WithTrace(ctx).With("identity", identity.Key())

	pages, err := s.load(ctx, identity)
	if err != nil {
		return Extraction{}, err
	}
	text := strings.TrimSpace(ingest.JoinPages(pages))
	if text == "" {
		return Extraction{}, ragErrors.New(ragErrors.NoReadableContent, identity.DisplayName(), nil)
	}

	cfg := router.Resolve(string(identity.Domain))
	resolved, err := fieldsSchema(cfg.ExtractionFields)
	if err != nil {
		return Extraction{}, ragErrors.New(ragErrors.Internal, "building field schema", err)
	}

	step.report(jobModel.ChunkModelCall)
	reply, err := s.models.Generate(ctx, cfg, extractionPrompt(cfg.ExtractionFields, truncateRunes(text, s.maxChars)))
	if err != nil {
		return Extraction{}, err
	}

	step.report(jobModel.ValidateCall)
	fields, err := parseFields(reply, resolved)
	if err != nil {
		log.Warn("unusable extraction reply", "error", err)
		return Extraction{}, ragErrors.New(ragErrors.ModelInferenceFailed, "extraction reply", err)
	}

	return Extraction{Domain: router.Canonical(string(identity.Domain)), Fields: fields}, nil
}
