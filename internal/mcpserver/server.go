// Package mcpserver exposes documentation search to MCP clients. The same
// server runs over stdio for local assistants and over streamable HTTP
// inside the searcher.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Version is reported to clients during initialization.
const Version = "0.1.0"

var ErrMissingBackend = errors.New("mcpserver: search backend is required")

// Backend answers the tool calls. *service.Service implements it.
type Backend interface {
	Search(ctx context.Context, query string, limit int, source string) (*executor.SearchResult, bool, error)
	Document(ref string) (*service.DocumentView, error)
	Summary() (*service.IndexSummary, error)
}

type Server struct {
	backend Backend
	server  *mcp.Server
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds the MCP server and registers its tools and resources. m may
// be nil.
func New(backend Backend, m *metrics.Metrics) (*Server, error) {
	if backend == nil {
		return nil, ErrMissingBackend
	}
	s := &Server{
		backend: backend,
		server:  mcp.NewServer(&mcp.Implementation{Name: "docsearch", Version: Version}, nil),
		metrics: m,
		logger:  slog.Default().With("component", "mcp-server"),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves one client over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over t. It is used by tests and embedders.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Handler returns the streamable HTTP endpoint for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}
