package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client wraps the Elasticsearch client with news-index operations.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the ES index mapping for news articles.
var indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"title": { "type": "text", "analyzer": "english" },
			"link": { "type": "keyword" },
			"published": { "type": "date" },
			"date": { "type": "keyword" },
			"date_known": { "type": "boolean" },
			"summary": { "type": "text", "analyzer": "english" },
			"source": { "type": "keyword" }
		}
	}
}`

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexArticle indexes a single article under its ID, replacing any earlier version.
func (c *Client) IndexArticle(ctx context.Context, article models.NewsArticle) error {
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(article.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index article: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing article (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// IndexArticles indexes articles one by one and returns how many succeeded.
// It stops at the first error.
func (c *Client) IndexArticles(ctx context.Context, articles []models.NewsArticle) (int, error) {
	for i, a := range articles {
		if err := c.IndexArticle(ctx, a); err != nil {
			return i, err
		}
	}
	return len(articles), nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.NewsArticle `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search performs a BM25 text search on article titles and summaries.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	return c.search(ctx, map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^2", "summary"},
			},
		},
		"size": limit,
	})
}

// Latest returns the most recently published articles, optionally limited to one source.
func (c *Client) Latest(ctx context.Context, source string, limit int) ([]models.NewsArticle, error) {
	query := map[string]any{"match_all": map[string]any{}}
	if source != "" {
		query = map[string]any{"term": map[string]any{"source": source}}
	}

	return c.search(ctx, map[string]any{
		"query": query,
		"sort":  []map[string]any{{"published": map[string]any{"order": "desc"}}},
		"size":  limit,
	})
}

func (c *Client) search(ctx context.Context, body map[string]any) ([]models.NewsArticle, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]models.NewsArticle, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		articles[i] = hit.Source
	}

	return articles, nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool               `json:"found"`
	Source models.NewsArticle `json:"_source"`
}

// GetArticle retrieves an article by ID. It returns nil when the article does not exist.
func (c *Client) GetArticle(ctx context.Context, id string) (*models.NewsArticle, error) {
	res, err := c.es.Get(
		c.index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}
