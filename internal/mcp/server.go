package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cra-hub/cra-sync/internal/docsync"
	"github.com/cra-hub/cra-sync/internal/elasticsearch"
	"github.com/cra-hub/cra-sync/internal/news"
	"github.com/cra-hub/cra-sync/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name         string
	Version      string
	FeedPath     string
	DocumentsDir string

	// ESEnabled switches search_news and get_article to the news index.
	ESEnabled   bool
	ESAddresses []string
	ESIndex     string
	ESUsername  string
	ESPassword  string
}

// Server exposes the sync outputs as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	esClient  *elasticsearch.Client
	config    Config
}

// NewServer creates a new MCP server with news and document tools.
func NewServer(config Config) (*Server, error) {
	s := &Server{config: config}

	if config.ESEnabled {
		esClient, err := elasticsearch.New(elasticsearch.Config{
			Addresses: config.ESAddresses,
			Index:     config.ESIndex,
			Username:  config.ESUsername,
			Password:  config.ESPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		s.esClient = esClient
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)
	s.mcpServer = mcpServer

	latestTool := mcp.NewTool("latest_news",
		mcp.WithDescription("List the most recent Cyber Resilience Act news articles, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of articles to return (default: 10)"),
		),
		mcp.WithString("source",
			mcp.Description("Only return articles from this source label, e.g. \"ENISA\""),
		),
	)
	mcpServer.AddTool(latestTool, s.latestNewsHandler)

	searchTool := mcp.NewTool("search_news",
		mcp.WithDescription("Search collected news articles by title and summary."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchNewsHandler)

	getTool := mcp.NewTool("get_article",
		mcp.WithDescription("Get a news article by ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Article ID to retrieve"),
		),
	)
	mcpServer.AddTool(getTool, s.getArticleHandler)

	manifestTool := mcp.NewTool("document_manifest",
		mcp.WithDescription("Return the manifest of the official CRA documents: status, hash and size of every document from the last sync."),
	)
	mcpServer.AddTool(manifestTool, s.manifestHandler)

	return s, nil
}

// latestNewsHandler handles the latest_news tool call.
func (s *Server) latestNewsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	source := req.GetString("source", "")

	articles, err := s.handleLatest(ctx, source, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("latest news failed: %v", err)), nil
	}
	return jsonResult(articles)
}

// searchNewsHandler handles the search_news tool call.
func (s *Server) searchNewsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", 10)

	articles, err := s.handleSearch(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(articles)
}

// getArticleHandler handles the get_article tool call.
func (s *Server) getArticleHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	article, err := s.handleGetArticle(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get article failed: %v", err)), nil
	}
	if article == nil {
		return mcp.NewToolResultError(fmt.Sprintf("article not found: %s", id)), nil
	}
	return jsonResult(article)
}

// manifestHandler handles the document_manifest tool call.
func (s *Server) manifestHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manifest, err := docsync.LoadManifest(s.config.DocumentsDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load manifest failed: %v", err)), nil
	}
	return jsonResult(manifest)
}

// handleLatest returns the newest articles from the index, or from the feed file without one.
func (s *Server) handleLatest(ctx context.Context, source string, limit int) ([]models.NewsArticle, error) {
	if s.esClient != nil {
		return s.esClient.Latest(ctx, source, limit)
	}

	feed, err := news.LoadFeed(s.config.FeedPath)
	if err != nil {
		return nil, err
	}

	var out []models.NewsArticle
	for _, a := range feed.Articles {
		if source != "" && !strings.EqualFold(a.Source, source) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// handleSearch searches the index, or matches the query as a phrase against the feed file.
func (s *Server) handleSearch(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if s.esClient != nil {
		return s.esClient.Search(ctx, query, limit)
	}

	feed, err := news.LoadFeed(s.config.FeedPath)
	if err != nil {
		return nil, err
	}

	filter := news.NewFilter([]string{query})
	var out []models.NewsArticle
	for _, a := range feed.Articles {
		if !filter.Matches(a.Title + "\n" + a.Summary) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// handleGetArticle retrieves an article by ID.
func (s *Server) handleGetArticle(ctx context.Context, id string) (*models.NewsArticle, error) {
	if s.esClient != nil {
		return s.esClient.GetArticle(ctx, id)
	}

	feed, err := news.LoadFeed(s.config.FeedPath)
	if err != nil {
		return nil, err
	}
	for _, a := range feed.Articles {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
