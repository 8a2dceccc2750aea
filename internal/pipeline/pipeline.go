// Package pipeline runs the news job end to end: collect, render, index, mirror and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cra-hub/cra-sync/internal/events"
	"github.com/cra-hub/cra-sync/internal/news"
	"github.com/cra-hub/cra-sync/internal/storage"
	"github.com/cra-hub/cra-sync/internal/wiki"
	"github.com/cra-hub/cra-sync/pkg/models"
)

// Collector gathers articles from the configured sources.
type Collector interface {
	Collect(ctx context.Context) (*news.Collection, error)
}

// Indexer stores articles in a search index.
type Indexer interface {
	CreateIndex(ctx context.Context) error
	IndexArticles(ctx context.Context, articles []models.NewsArticle) (int, error)
	Refresh(ctx context.Context) error
}

// Mirror stores rendered outputs in object storage.
type Mirror interface {
	Put(ctx context.Context, prefix, name string, data []byte, contentType string) error
}

// Publisher writes a wiki page.
type Publisher interface {
	Publish(ctx context.Context, page models.WikiPage) wiki.Outcome
}

// Config holds pipeline configuration.
type Config struct {
	Output   news.Output
	WikiPage string // default: "Latest-News"
}

// Result holds pipeline execution results.
type Result struct {
	RunID       string
	Collection  *news.Collection
	Rendered    *news.Rendered
	DocsIndexed int
	Prefix      string       // S3 prefix, empty when not mirrored
	Wiki        *wiki.Outcome // nil when not published
	Duration    time.Duration
	Errors      []error // non-fatal sink failures
}

// Pipeline orchestrates the news job.
type Pipeline struct {
	config    Config
	collector Collector
	indexer   Indexer   // nil if indexing disabled
	mirror    Mirror    // nil if mirroring disabled
	publisher Publisher // nil if publishing disabled
	sink      events.Sink
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIndexer enables Elasticsearch indexing.
func WithIndexer(i Indexer) Option {
	return func(p *Pipeline) { p.indexer = i }
}

// WithMirror enables the S3 mirror.
func WithMirror(m Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

// WithPublisher enables publishing the digest to the wiki.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithEvents sets the sink that receives the run-complete event.
func WithEvents(s events.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a new Pipeline.
func New(collector Collector, config Config, opts ...Option) *Pipeline {
	if config.WikiPage == "" {
		config.WikiPage = "Latest-News"
	}
	p := &Pipeline{
		config:    config,
		collector: collector,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WikiMessage is the commit message for an automated news page update.
func WikiMessage(t time.Time) string {
	return "Auto-update: Latest CRA news " + t.Format("2006-01-02")
}

// Run executes the pipeline once. Collection and local output failures are
// fatal; indexing, mirroring and publishing failures are recorded in Result.Errors.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	result := &Result{RunID: uuid.NewString()}

	err := p.run(ctx, start, result)
	result.Duration = p.now().Sub(start)
	p.emit(start, result, err)
	if err != nil {
		return nil, err
	}

	slog.Info("news pipeline complete",
		"run_id", result.RunID,
		"articles", len(result.Collection.Articles),
		"indexed", result.DocsIndexed,
		"prefix", result.Prefix,
		"duration", result.Duration,
		"errors", len(result.Errors))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, start time.Time, result *Result) error {
	collection, err := p.collector.Collect(ctx)
	if err != nil {
		return err
	}
	result.Collection = collection

	rendered, err := news.WriteOutputs(collection, start, p.config.Output)
	if err != nil {
		return err
	}
	result.Rendered = rendered

	if p.indexer != nil {
		p.index(ctx, collection.Articles, result)
	}
	if p.mirror != nil {
		p.mirrorOutputs(ctx, start, rendered, result)
	}
	if p.publisher != nil {
		outcome := p.publisher.Publish(ctx, models.WikiPage{
			Name:    p.config.WikiPage,
			Body:    rendered.Digest,
			Message: WikiMessage(start),
		})
		result.Wiki = &outcome
		if outcome.Err != nil {
			result.Errors = append(result.Errors, outcome.Err)
		}
	}
	return nil
}

func (p *Pipeline) index(ctx context.Context, articles []models.NewsArticle, result *Result) {
	if err := p.indexer.CreateIndex(ctx); err != nil {
		slog.Warn("failed to create index", "error", err)
		result.Errors = append(result.Errors, err)
		return
	}

	n, err := p.indexer.IndexArticles(ctx, articles)
	result.DocsIndexed = n
	if err != nil {
		slog.Warn("failed to index articles", "indexed", n, "error", err)
		result.Errors = append(result.Errors, err)
	}

	// Refresh index to make articles searchable immediately
	if err := p.indexer.Refresh(ctx); err != nil {
		slog.Debug("index refresh failed", "error", err)
	}
}

func (p *Pipeline) mirrorOutputs(ctx context.Context, start time.Time, rendered *news.Rendered, result *Result) {
	prefix := storage.RunPrefix(storage.NewsRoot, start, result.RunID)

	objects := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{storage.NewsDigestObject, []byte(rendered.Digest), "text/markdown; charset=utf-8"},
		{storage.NewsFeedObject, rendered.FeedJSON, "application/json"},
	}

	var errs []error
	for _, obj := range objects {
		if err := p.mirror.Put(ctx, prefix, obj.name, obj.data, obj.contentType); err != nil {
			slog.Warn("failed to mirror news output", "prefix", prefix, "object", obj.name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		result.Errors = append(result.Errors, fmt.Errorf("failed to mirror news outputs: %w", errors.Join(errs...)))
		return
	}
	result.Prefix = prefix
}

func (p *Pipeline) emit(start time.Time, result *Result, err error) {
	if p.sink == nil {
		return
	}
	e := events.RunCompleteEvent{
		Job:       events.JobNews,
		RunID:     result.RunID,
		Prefix:    result.Prefix,
		Duration:  result.Duration,
		Timestamp: start.Add(result.Duration),
		Err:       err,
	}
	if result.Collection != nil {
		e.Units = len(result.Collection.Articles)
		e.Succeeded = e.Units
		for _, src := range result.Collection.Sources {
			if src.Err != nil {
				e.Failed++
			}
		}
	}
	if err == nil && result.Wiki != nil && result.Wiki.Status == wiki.StatusFailed {
		e.Err = result.Wiki.Err
	}
	p.sink.RunComplete(e)
}
