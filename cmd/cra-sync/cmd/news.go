package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cra-hub/cra-sync/internal/config"
	"github.com/cra-hub/cra-sync/internal/events"
	"github.com/cra-hub/cra-sync/internal/news"
	"github.com/cra-hub/cra-sync/internal/pipeline"
)

var (
	newsPublish       bool
	newsIssueFallback bool
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Aggregate CRA news into the digest and feed",
	Long: `Collect articles from the configured RSS, web and search sources, keep the
ones that mention a keyword within the window, and write the Markdown digest
and JSON feed.

Examples:
  # Refresh docs/news-updates.md and docs/latest-cra-news.json
  cra-sync news

  # Also publish the digest as the Latest-News wiki page
  cra-sync news --publish

  # File an issue with the digest if the wiki push fails
  cra-sync news --publish --issue-fallback`,
	RunE: runNews,
}

func init() {
	rootCmd.AddCommand(newsCmd)

	newsCmd.Flags().BoolVar(&newsPublish, "publish", false, "Publish the digest to the wiki")
	newsCmd.Flags().BoolVar(&newsIssueFallback, "issue-fallback", false, "File a GitHub issue when the wiki publish fails")
}

func runNews(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	slog.Debug("news command starting", "sources", len(cfg.News.Sources), "publish", newsPublish)

	result, err := collectNews(ctx, cfg, newsPublish, newsIssueFallback, newEventSink(cfg))
	if err != nil {
		return err
	}
	printNews(cmd.OutOrStdout(), cfg, result)
	return nil
}

// collectNews runs the news pipeline once with the sinks the configuration enables.
func collectNews(ctx context.Context, cfg config.Config, publish, issueFallback bool, sink events.Sink) (*pipeline.Result, error) {
	opts := []pipeline.Option{pipeline.WithEvents(sink)}

	if cfg.Elasticsearch.Enabled {
		es, err := newES(cfg)
		switch {
		case err != nil:
			slog.Warn("news indexing disabled", "error", err)
		case !es.Ping(ctx):
			slog.Warn("news indexing disabled", "error", "elasticsearch not reachable")
		default:
			opts = append(opts, pipeline.WithIndexer(es))
		}
	}

	if cfg.StorageEnabled() {
		store, err := newStorage(ctx, cfg)
		if err != nil {
			slog.Warn("news mirror disabled", "error", err)
		} else {
			opts = append(opts, pipeline.WithMirror(store))
		}
	}

	if publish {
		if hasWikiCredentials(cfg) {
			opts = append(opts, pipeline.WithPublisher(newPublisher(cfg, issueFallback)))
		} else {
			slog.Warn("skipping wiki publish", "reason", errMissingToken)
		}
	}

	p := pipeline.New(news.NewAggregator(newsConfig(cfg)), pipeline.Config{
		Output:   newsOutput(cfg),
		WikiPage: cfg.Wiki.NewsPage,
	}, opts...)

	result, err := p.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("news aggregation failed: %w", err)
	}
	return result, nil
}

func printNews(w io.Writer, cfg config.Config, r *pipeline.Result) {
	t := newTable(w, "News sources")
	t.AppendHeader(table.Row{"Source", "Type", "Fetched", "Matched", "Error"})
	for _, s := range r.Collection.Sources {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		t.AppendRow(table.Row{s.Label, s.Type, s.Fetched, s.Matched, errText})
	}
	t.AppendFooter(table.Row{"", "", "", len(r.Collection.Articles), ""})
	t.Render()

	fmt.Fprintf(w, "Digest: %s\n", cfg.News.MarkdownPath)
	fmt.Fprintf(w, "Feed:   %s (%d articles)\n", cfg.News.JSONPath, len(r.Rendered.Feed.Articles))
	if cfg.Elasticsearch.Enabled {
		fmt.Fprintf(w, "Indexed: %d\n", r.DocsIndexed)
	}
	if r.Prefix != "" {
		fmt.Fprintf(w, "Mirrored to: %s\n", r.Prefix)
	}
	if r.Wiki != nil {
		fmt.Fprintf(w, "Wiki page %s: %s (%s)\n", r.Wiki.Page, r.Wiki.Status, cfg.Wiki.PageURL(r.Wiki.Page))
		if r.Wiki.IssueURL != "" {
			fmt.Fprintf(w, "  Filed as issue: %s\n", r.Wiki.IssueURL)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "Warnings: %d\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %v\n", e)
		}
	}
}
