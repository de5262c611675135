package mcpserver

import (
	"context"

	"github.com/akolanti/DocuSense/internal/api"
	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	Document string `json:"document" jsonschema:"path of an uploaded document or an http(s) URL"`
	Domain   string `json:"domain,omitempty" jsonschema:"document domain such as legal, medical or retail"`
	Question string `json:"question" jsonschema:"the question to answer from the document"`
}

type AskOutput struct {
	Answer       string         `json:"answer"`
	FallbackUsed bool           `json:"fallback_used"`
	Sources      []answerSource `json:"sources"`
}

type answerSource struct {
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float32 `json:"score"`
}

type IndexInput struct {
	Document string `json:"document" jsonschema:"path of an uploaded document or an http(s) URL"`
	Domain   string `json:"domain,omitempty" jsonschema:"document domain"`
}

type IndexOutput struct {
	Document string `json:"document"`
	Indexed  bool   `json:"indexed"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_document",
		Description: "Answer a question from one document, falling back to web search when the document is not enough",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_document",
		Description: "Build the search index for a document ahead of questions",
	}, s.handleIndex)
}

// ownerOf reads the verified token subject. Without a token only the
// development bypass has an owner.
func ownerOf(req *mcp.CallToolRequest) string {
	if req != nil && req.Extra != nil && req.Extra.TokenInfo != nil {
		return req.Extra.TokenInfo.UserID
	}
	if config.GetBool("NO_AUTH_BYPASS", config.NoAuthBypass) {
		return config.DevOwnerId
	}
	return ""
}

func (s *Server) identity(req *mcp.CallToolRequest, document string, domain string) (docModel.DocumentIdentity, error) {
	return s.resolver.ResolveIdentity(ownerOf(req), api.DocumentRequest{Document: document, Domain: domain})
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if input.Question == "" {
		return nil, AskOutput{}, ragErrors.New(ragErrors.InvalidInput, "question is required", nil)
	}
	identity, err := s.identity(req, input.Document, input.Domain)
	if err != nil {
		return nil, AskOutput{}, err
	}

	res, err := s.answers.Answer(ctx, input.Question, identity)
	if err != nil {
		s.logger.WithTrace(ctx).Warn("mcp ask failed", "identity", identity.Key(), "error", err)
		return nil, AskOutput{}, err
	}

	out := AskOutput{Answer: res.Answer, FallbackUsed: res.FallbackUsed, Sources: make([]answerSource, len(res.Sources))}
	for i, src := range res.Sources {
		out.Sources[i] = answerSource{Source: src.Source, Page: src.Page, Score: src.Score}
	}
	return nil, out, nil
}

func (s *Server) handleIndex(ctx context.Context, req *mcp.CallToolRequest, input IndexInput) (*mcp.CallToolResult, IndexOutput, error) {
	identity, err := s.identity(req, input.Document, input.Domain)
	if err != nil {
		return nil, IndexOutput{}, err
	}
	if err := s.answers.BuildOrReuseIndex(ctx, identity); err != nil {
		return nil, IndexOutput{}, err
	}
	return nil, IndexOutput{Document: identity.DisplayName(), Indexed: true}, nil
}
