package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zeno-search/zeno/internal/doc"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/pkg/version"
)

// Service is what the MCP server needs from ingest.Service.
type Service interface {
	IndexURL(ctx context.Context, req ingest.IndexURLRequest) (doc.Document, error)
	Search(ctx context.Context, query string, limit uint) ([]store.Hit, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
	Stats(ctx context.Context) (ingest.Stats, error)
}

var _ Service = (*ingest.Service)(nil)

// Options configures the MCP server.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	Logger       *slog.Logger
}

// Server is the MCP server for zeno.
type Server struct {
	mcp    *mcp.Server
	svc    Service
	opts   Options
	logger *slog.Logger
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query; supports field syntax such as title:neural"`
	Limit *int   `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []store.Hit `json:"results" jsonschema:"matching documents, best first"`
}

// IndexURLInput defines the input schema for the index_url tool.
type IndexURLInput struct {
	URL         string `json:"url" jsonschema:"http or https URL of an HTML page or PDF"`
	Title       string `json:"title,omitempty" jsonschema:"title to use instead of the extracted one"`
	Description string `json:"description,omitempty" jsonschema:"description to use instead of the extracted one"`
}

// IndexURLOutput defines the output schema for the index_url tool.
type IndexURLOutput struct {
	ID    doc.ID `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// IndexStatsInput defines the input schema for the index_stats tool (no parameters).
type IndexStatsInput struct{}

// IndexStatsOutput defines the output schema for the index_stats tool.
type IndexStatsOutput struct {
	Documents  uint64 `json:"documents" jsonschema:"documents in the search index"`
	Registered int    `json:"registered" jsonschema:"documents in the registry"`
	Version    string `json:"version"`
}

// NewServer creates an MCP server with zeno's tools registered.
func NewServer(svc Service, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("ingest service is required")
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{svc: svc, opts: opts, logger: opts.Logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "zeno", Version: version.Version},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer exposes the underlying SDK server, mainly for tests.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search over every page and PDF indexed by zeno. Returns titles, URLs and relevance scores.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_url",
		Description: "Fetch a web page or PDF and add it to the index so later searches can find it.",
	}, s.indexURLHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report how many documents the index holds.",
	}, s.indexStatsHandler)

	s.logger.Debug("mcp tools registered", slog.Int("count", 3))
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	limit := s.opts.DefaultLimit
	if input.Limit != nil {
		limit = clampLimit(*input.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	}

	hits, err := s.svc.Search(ctx, query, uint(limit))
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	if hits == nil {
		hits = []store.Hit{}
	}

	s.logger.Debug("mcp_search", slog.String("query", query), slog.Int("results", len(hits)))

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(query, hits)}},
	}
	return result, SearchOutput{Results: hits}, nil
}

func (s *Server) indexURLHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexURLInput) (
	*mcp.CallToolResult,
	IndexURLOutput,
	error,
) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, IndexURLOutput{}, NewInvalidParamsError("url parameter is required")
	}

	d, err := s.svc.IndexURL(ctx, ingest.IndexURLRequest{
		URL:         strings.TrimSpace(input.URL),
		Title:       input.Title,
		Description: input.Description,
	})
	if err != nil {
		return nil, IndexURLOutput{}, MapError(err)
	}

	out := IndexURLOutput{ID: d.ID, URL: d.URL, Title: d.Title.String(), Type: d.Type.String()}
	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Indexed %q as %s", out.Title, out.ID)}},
	}
	return result, out, nil
}

func (s *Server) indexStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatsInput) (
	*mcp.CallToolResult,
	IndexStatsOutput,
	error,
) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, IndexStatsOutput{}, MapError(err)
	}
	return nil, IndexStatsOutput{
		Documents:  stats.Documents,
		Registered: stats.Registered,
		Version:    version.Short(),
	}, nil
}

// Serve runs the server over stdio until ctx is done or the client hangs up.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}
