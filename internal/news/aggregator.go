// Package news collects CRA-related articles from feeds, web pages and news searches.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/cra-hub/cra-sync/internal/processor"
	"github.com/cra-hub/cra-sync/pkg/models"
)

// Source types.
const (
	SourceRSS    = "rss"
	SourceWeb    = "web"
	SourceSearch = "search"
)

// Undated entry policies.
const (
	UndatedInclude = "include" // keep, dated at collection time
	UndatedExclude = "exclude" // drop
	UndatedFlag    = "flag"    // keep, dated at collection time and marked as undated
)

// Defaults applied by NewAggregator.
const (
	DefaultWindow       = 30 * 24 * time.Hour
	DefaultDigestLimit  = 10
	DefaultFeedLimit    = 20
	DefaultSummaryWidth = 200
	DefaultRSSEntries   = 20
	DefaultSearchHits   = 10
	webElementLimit     = 5
)

// SourceConfig describes one source to aggregate.
type SourceConfig struct {
	Name       string
	Type       string // rss, web or search
	URL        string // feed or page URL; for search, an optional endpoint override
	Label      string // shown as "Source:" in the digest
	Summary    string // web only: summary used when an element has no paragraph
	Keywords   []string
	MaxEntries int
}

// Config holds aggregator configuration.
type Config struct {
	Keywords      []string
	Window        time.Duration
	SummaryWidth  int
	SourceDelay   time.Duration
	Timeout       time.Duration
	UserAgent     string
	UndatedPolicy string
	Sources       []SourceConfig
}

// SourceReport summarizes what one source contributed to a collection.
type SourceReport struct {
	Name    string
	Type    string
	Label   string
	Fetched int
	Matched int
	Err     error
}

// Collection is the filtered, deduplicated and ordered result of one run.
type Collection struct {
	CollectedAt time.Time
	Articles    []models.NewsArticle
	Sources     []SourceReport
}

// entry is a raw item from a source, before filtering.
type entry struct {
	title       string
	link        string
	summaryHTML string
	published   time.Time
	dated       bool
	titleOnly   bool
	source      string
}

// Aggregator fetches every configured source and builds a Collection.
type Aggregator struct {
	cfg        Config
	httpClient *http.Client
	processor  *processor.Processor
	filter     *Filter
	limiter    *rate.Limiter
	now        func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithHTTPClient replaces the default HTTP client used for feeds and searches.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Aggregator) { a.httpClient = c }
}

// WithClock sets the time source used for the date window and undated entries.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates a new Aggregator.
func NewAggregator(cfg Config, opts ...Option) *Aggregator {
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SummaryWidth == 0 {
		cfg.SummaryWidth = DefaultSummaryWidth
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UndatedPolicy == "" {
		cfg.UndatedPolicy = UndatedFlag
	}

	limit := rate.Inf
	if cfg.SourceDelay > 0 {
		limit = rate.Every(cfg.SourceDelay)
	}

	a := &Aggregator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		processor:  processor.New(),
		filter:     NewFilter(cfg.Keywords),
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collect queries every source in order. A failing source is logged and
// contributes no articles; only context cancellation aborts the run.
func (a *Aggregator) Collect(ctx context.Context) (*Collection, error) {
	now := a.now()
	c := &Collection{CollectedAt: now}

	var matched []models.NewsArticle
	for _, src := range a.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report := SourceReport{Name: src.Name, Type: src.Type, Label: label(src)}
		entries, err := a.fetchSource(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("news source failed", "source", src.Name, "error", err)
			report.Err = err
		}

		report.Fetched = len(entries)
		articles := a.keep(entries, now)
		report.Matched = len(articles)
		matched = append(matched, articles...)

		slog.Info("news source processed", "source", src.Name, "fetched", report.Fetched, "matched", report.Matched)
		c.Sources = append(c.Sources, report)
	}

	c.Articles = order(dedupe(matched))
	return c, nil
}

func (a *Aggregator) fetchSource(ctx context.Context, src SourceConfig) ([]entry, error) {
	switch src.Type {
	case SourceRSS:
		return a.fetchRSS(ctx, src.URL, maxEntries(src, DefaultRSSEntries), label(src))
	case SourceWeb:
		return a.fetchWeb(ctx, src)
	case SourceSearch:
		return a.fetchSearch(ctx, src)
	default:
		return nil, models.NewError(models.KindConfig, "source "+src.Name, fmt.Errorf("unknown source type %q", src.Type))
	}
}

// keep applies the keyword filter, the date window and the undated policy.
func (a *Aggregator) keep(entries []entry, now time.Time) []models.NewsArticle {
	cutoff := now.Add(-a.cfg.Window)

	var out []models.NewsArticle
	for _, e := range entries {
		text := e.title
		if !e.titleOnly {
			text += "\n" + a.processor.Text(e.summaryHTML)
		}
		if !a.filter.Matches(text) {
			continue
		}

		published, known := e.published, e.dated
		if !known {
			switch a.cfg.UndatedPolicy {
			case UndatedExclude:
				slog.Debug("dropping undated entry", "title", e.title)
				continue
			case UndatedInclude:
				published, known = now, true
			default:
				published = now
			}
		}
		if !published.After(cutoff) {
			continue
		}

		out = append(out, models.NewArticle(
			e.title,
			e.link,
			published,
			known,
			a.processor.Summarize(e.summaryHTML, a.cfg.SummaryWidth),
			e.source,
		))
	}
	return out
}

// wait spaces outbound requests by the configured source delay.
func (a *Aggregator) wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func dedupe(articles []models.NewsArticle) []models.NewsArticle {
	type key struct{ title, link string }
	seen := make(map[key]bool, len(articles))

	out := make([]models.NewsArticle, 0, len(articles))
	for _, art := range articles {
		k := key{art.Title, art.Link}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, art)
	}
	return out
}

// order sorts newest first, keeping source order for equal dates.
func order(articles []models.NewsArticle) []models.NewsArticle {
	slices.SortStableFunc(articles, func(x, y models.NewsArticle) int {
		return y.Published.Compare(x.Published)
	})
	return articles
}

func label(src SourceConfig) string {
	if src.Label != "" {
		return src.Label
	}
	return src.Name
}

func maxEntries(src SourceConfig, def int) int {
	if src.MaxEntries > 0 {
		return src.MaxEntries
	}
	return def
}
