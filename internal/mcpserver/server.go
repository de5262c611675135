// Package mcpserver exposes document questions as MCP tools so assistants can
// query an owner's documents over streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/DocuSense/internal/api"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/rag/answer"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

var ErrMissingAnswerer = errors.New("mcpserver: answerer is required")

type Answerer interface {
	Answer(ctx context.Context, question string, identity docModel.DocumentIdentity) (answer.Result, error)
	BuildOrReuseIndex(ctx context.Context, identity docModel.DocumentIdentity) error
}

// Resolver turns a requested document into an identity owned by the caller.
type Resolver interface {
	ResolveIdentity(owner string, req api.DocumentRequest) (docModel.DocumentIdentity, error)
}

type Server struct {
	answers  Answerer
	resolver Resolver
	server   *mcp.Server
	logger   *logger_i.Logger
}

func NewServer(answers Answerer, resolver Resolver) (*Server, error) {
	if answers == nil || resolver == nil {
		return nil, ErrMissingAnswerer
	}
	s := &Server{
		answers:  answers,
		resolver: resolver,
		server:   mcp.NewServer(&mcp.Implementation{Name: "docusense", Version: Version}, nil),
		logger:   logger_i.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Handler serves the MCP streamable HTTP transport. Auth is applied by the
// caller's middleware.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}
