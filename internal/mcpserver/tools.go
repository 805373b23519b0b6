package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
)

const (
	toolSearch      = "search_docs"
	toolGetDocument = "get_document"
	indexURI        = "docsearch://index"
)

type SearchInput struct {
	Query string `json:"query" jsonschema:"words to search the documentation for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results; the server default applies when omitted"`
}

type SearchOutput struct {
	Query        string      `json:"query"`
	TotalHits    int         `json:"total_hits"`
	Results      []ResultRef `json:"results"`
	IndexVersion string      `json:"index_version"`
}

// ResultRef is one ranked section. Teaser is plain text with the matched
// words wrapped in <em>.
type ResultRef struct {
	Ref         string  `json:"ref"`
	Title       string  `json:"title"`
	Breadcrumbs string  `json:"breadcrumbs"`
	URL         string  `json:"url"`
	Teaser      string  `json:"teaser"`
	Score       float64 `json:"score"`
}

type DocumentInput struct {
	Ref string `json:"ref" jsonschema:"document ref as returned by search_docs"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSearch,
		Description: "Search the documentation book and return ranked sections with teasers and links",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolGetDocument,
		Description: "Fetch the full text of one documentation section by ref",
	}, s.handleGetDocument)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.search(ctx, input)
	s.metrics.ObserveToolCall(toolSearch, err)
	return nil, out, err
}

func (s *Server) search(ctx context.Context, input SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return SearchOutput{}, errors.New("query is required")
	}
	if input.Limit < 0 {
		return SearchOutput{}, errors.New("limit must not be negative")
	}
	result, _, err := s.backend.Search(ctx, input.Query, input.Limit, analytics.SourceMCP)
	if err != nil {
		return SearchOutput{}, fmt.Errorf("search failed: %w", err)
	}
	out := SearchOutput{
		Query:        result.Query,
		TotalHits:    result.TotalHits,
		Results:      make([]ResultRef, 0, len(result.Results)),
		IndexVersion: result.IndexVersion,
	}
	for _, h := range result.Results {
		out.Results = append(out.Results, ResultRef{
			Ref:         h.Ref,
			Title:       h.Title,
			Breadcrumbs: h.Breadcrumbs,
			URL:         h.URL,
			Teaser:      h.Teaser,
			Score:       h.Score,
		})
	}
	return out, nil
}

func (s *Server) handleGetDocument(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, service.DocumentView, error) {
	if input.Ref == "" {
		err := errors.New("ref is required")
		s.metrics.ObserveToolCall(toolGetDocument, err)
		return nil, service.DocumentView{}, err
	}
	doc, err := s.backend.Document(input.Ref)
	s.metrics.ObserveToolCall(toolGetDocument, err)
	if err != nil {
		return nil, service.DocumentView{}, err
	}
	return nil, *doc, nil
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         indexURI,
		Name:        "index",
		Description: "Summary of the loaded search index: fields, document count, options and version",
		MIMEType:    "application/json",
	}, s.handleIndexResource)
}

func (s *Server) handleIndexResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	summary, err := s.backend.Summary()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding index summary: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
