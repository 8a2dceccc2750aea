package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cra-hub/cra-sync/internal/events"
	"github.com/cra-hub/cra-sync/internal/news"
	"github.com/cra-hub/cra-sync/internal/storage"
	"github.com/cra-hub/cra-sync/pkg/models"
)

// ErrNoRuns is returned when no mirrored news run exists and no prefix was given.
var ErrNoRuns = errors.New("no mirrored news runs found")

// Source reads mirrored news runs from object storage.
type Source interface {
	GetJSON(ctx context.Context, prefix, name string, v any) error
	LatestRun(ctx context.Context, root string) (string, error)
}

// Indexer stores single articles in a search index.
type Indexer interface {
	CreateIndex(ctx context.Context) error
	IndexArticle(ctx context.Context, article models.NewsArticle) error
	Refresh(ctx context.Context) error
}

// Result holds ingestion execution results.
type Result struct {
	Prefix      string
	DocsIndexed int
	Duration    time.Duration
	Errors      []string
}

// Engine reads a mirrored news feed from S3 and indexes it to Elasticsearch.
type Engine struct {
	source  Source
	indexer Indexer
	sink    events.Sink
}

// New creates a new ingestion engine. sink may be nil.
func New(source Source, indexer Indexer, sink events.Sink) *Engine {
	return &Engine{
		source:  source,
		indexer: indexer,
		sink:    sink,
	}
}

// Ingest indexes every article of the feed stored under prefix. An empty
// prefix selects the most recent news run.
func (e *Engine) Ingest(ctx context.Context, prefix string) (*Result, error) {
	start := time.Now()
	result, err := e.ingest(ctx, prefix)
	if result == nil {
		result = &Result{Prefix: prefix}
	}
	result.Duration = time.Since(start)

	if e.sink != nil {
		e.sink.RunComplete(events.RunCompleteEvent{
			Job:       events.JobIngest,
			Prefix:    result.Prefix,
			Units:     result.DocsIndexed + len(result.Errors),
			Succeeded: result.DocsIndexed,
			Failed:    len(result.Errors),
			Duration:  result.Duration,
			Timestamp: time.Now(),
			Err:       err,
		})
	}
	if err != nil {
		return nil, err
	}

	slog.Info("ingestion complete",
		"prefix", result.Prefix,
		"docs_indexed", result.DocsIndexed,
		"duration", result.Duration,
		"errors", len(result.Errors))
	return result, nil
}

func (e *Engine) ingest(ctx context.Context, prefix string) (*Result, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		latest, err := e.source.LatestRun(ctx, storage.NewsRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to find latest news run: %w", err)
		}
		if latest == "" {
			return nil, ErrNoRuns
		}
		prefix = latest
	}
	result := &Result{Prefix: prefix}

	slog.Info("starting ingestion", "prefix", prefix)

	// Ensure ES index exists
	if err := e.indexer.CreateIndex(ctx); err != nil {
		return result, err
	}

	var feed news.Feed
	if err := e.source.GetJSON(ctx, prefix, storage.NewsFeedObject, &feed); err != nil {
		return result, fmt.Errorf("failed to read feed: %w", err)
	}

	slog.Info("found articles to ingest", "count", len(feed.Articles))

	for _, article := range feed.Articles {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}
		if article.ID == "" {
			article = models.NewArticle(article.Title, article.Link, article.Published, article.DateKnown, article.Summary, article.Source)
		}

		slog.Debug("indexing article", "id", article.ID, "link", article.Link)
		if err := e.indexer.IndexArticle(ctx, article); err != nil {
			slog.Error("failed to index article", "id", article.ID, "error", err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.DocsIndexed++
	}

	// Refresh index to make articles searchable immediately
	if err := e.indexer.Refresh(ctx); err != nil {
		slog.Debug("index refresh failed", "error", err)
	}
	return result, nil
}
