package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/cra-hub/cra-sync/internal/config"
	"github.com/cra-hub/cra-sync/internal/elasticsearch"
	"github.com/cra-hub/cra-sync/internal/events"
	"github.com/cra-hub/cra-sync/internal/metrics"
	"github.com/cra-hub/cra-sync/internal/news"
	"github.com/cra-hub/cra-sync/internal/storage"
	"github.com/cra-hub/cra-sync/internal/wiki"
	"github.com/cra-hub/cra-sync/pkg/models"
)

var errMissingToken = errors.New("GITHUB_TOKEN (or wiki.token) is required to publish to the wiki")

func newStorage(ctx context.Context, cfg config.Config) (*storage.Client, error) {
	client, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return client, nil
}

func newES(cfg config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return client, nil
}

// newEventSink logs every run event and pushes it to the Pushgateway when configured.
func newEventSink(cfg config.Config) events.Sink {
	pusher := metrics.NewPusher(metrics.Config{
		URL: cfg.Metrics.PushgatewayURL,
		Job: cfg.Metrics.Job,
	})
	logger := events.SinkFunc(func(e events.RunCompleteEvent) {
		if !e.OK() {
			slog.Error("run failed", "job", e.Job, "run_id", e.RunID, "duration", e.Duration, "error", e.Err)
			return
		}
		slog.Info("run complete", "job", e.Job, "run_id", e.RunID,
			"units", e.Units, "succeeded", e.Succeeded, "failed", e.Failed, "duration", e.Duration)
	})
	return events.Multi(logger, pusher)
}

func newsConfig(cfg config.Config) news.Config {
	sources := make([]news.SourceConfig, 0, len(cfg.News.Sources))
	for _, s := range cfg.News.Sources {
		sources = append(sources, news.SourceConfig{
			Name:       s.Name,
			Type:       s.Type,
			URL:        s.URL,
			Label:      s.Label,
			Summary:    s.Summary,
			Keywords:   s.Keywords,
			MaxEntries: s.MaxEntries,
		})
	}
	return news.Config{
		Keywords:      cfg.News.Keywords,
		Window:        cfg.News.Window,
		SummaryWidth:  cfg.News.SummaryWidth,
		SourceDelay:   cfg.News.SourceDelay,
		Timeout:       cfg.News.Timeout,
		UserAgent:     cfg.News.UserAgent,
		UndatedPolicy: cfg.News.UndatedPolicy,
		Sources:       sources,
	}
}

func newsOutput(cfg config.Config) news.Output {
	return news.Output{
		MarkdownPath: cfg.News.MarkdownPath,
		JSONPath:     cfg.News.JSONPath,
		DigestLimit:  cfg.News.DigestLimit,
		FeedLimit:    cfg.News.FeedLimit,
	}
}

// hasWikiCredentials reports whether the wiki remote can be written to.
// An explicit remote URL carries its own credentials.
func hasWikiCredentials(cfg config.Config) bool {
	return cfg.Wiki.Token != "" || cfg.Wiki.RemoteURL != ""
}

// useIssueFallback reports whether failed pushes can be filed as issues.
// Opening an issue needs an API token, which a bare remote_url does not carry.
func useIssueFallback(cfg config.Config, requested bool) bool {
	if !requested {
		return false
	}
	if cfg.Wiki.Token == "" {
		slog.Warn("skipping issue fallback", "reason", "wiki.token is empty")
		return false
	}
	return true
}

func newPublisher(cfg config.Config, issueFallback bool) *wiki.Publisher {
	var opts []wiki.Option
	if useIssueFallback(cfg, issueFallback) {
		opts = append(opts, wiki.WithFallback(wiki.NewIssueSink(wiki.IssueConfig{
			APIURL: cfg.Wiki.APIURL,
			Owner:  cfg.Wiki.Owner,
			Repo:   cfg.Wiki.Repo,
			Token:  cfg.Wiki.Token,
			Labels: []string{"wiki-sync"},
		})))
	}
	return wiki.NewPublisher(wiki.NewGitRepository(), wiki.Config{
		Remote: cfg.Wiki.WikiRemote(),
		Author: wiki.Author{Name: cfg.Wiki.AuthorName, Email: cfg.Wiki.AuthorEmail},
	}, opts...)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	return string(models.KindOf(err))
}
