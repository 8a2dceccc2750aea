package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cra-hub/cra-sync/internal/config"
	"github.com/cra-hub/cra-sync/internal/events"
	"github.com/cra-hub/cra-sync/internal/wiki"
	"github.com/cra-hub/cra-sync/pkg/models"
)

var (
	publishDir           string
	publishFile          string
	publishPage          string
	publishMessage       string
	publishIssueFallback bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish Markdown pages to the GitHub wiki",
	Long: `Publish Markdown pages to the repository wiki. Each page is committed and
pushed only when its content changed.

Pages come from the wiki pages directory (one page per *.md file, with
optional "page" and "message" front matter) or from a single --file.

Examples:
  # Publish every page in the configured pages directory
  cra-sync publish

  # Publish one file under an explicit page name
  cra-sync publish --file docs/news-updates.md --page Latest-News

  # File an issue for every page that could not be pushed
  cra-sync publish --issue-fallback`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishDir, "dir", "", "Directory of pages to publish (default: wiki.pages_dir)")
	publishCmd.Flags().StringVar(&publishFile, "file", "", "Publish a single Markdown file")
	publishCmd.Flags().StringVar(&publishPage, "page", "", "Page name for --file (default: from front matter or file name)")
	publishCmd.Flags().StringVar(&publishMessage, "message", "", "Commit message for --file")
	publishCmd.Flags().BoolVar(&publishIssueFallback, "issue-fallback", false, "File a GitHub issue for pages that fail to publish")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !hasWikiCredentials(cfg) {
		return models.NewError(models.KindConfig, "publish", errMissingToken)
	}

	pages, err := loadPublishPages(cfg.Wiki.PagesDir)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pages to publish.")
		return nil
	}
	slog.Debug("publish command starting", "pages", len(pages))

	start := time.Now()
	outcomes := newPublisher(cfg, publishIssueFallback).PublishAll(ctx, pages)
	published, unchanged, failed, filed := wiki.Counts(outcomes)

	var runErr error
	if failed > 0 {
		runErr = fmt.Errorf("%d of %d pages failed to publish", failed, len(outcomes))
	}
	newEventSink(cfg).RunComplete(events.RunCompleteEvent{
		Job:       events.JobPublish,
		Units:     len(outcomes),
		Succeeded: published + unchanged,
		Failed:    failed,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
		Err:       runErr,
	})

	printOutcomes(cmd.OutOrStdout(), cfg.Wiki, outcomes, published, unchanged, failed, filed)
	return runErr
}

func loadPublishPages(defaultDir string) ([]models.WikiPage, error) {
	if publishFile != "" {
		page, err := wiki.LoadPage(publishFile)
		if err != nil {
			return nil, err
		}
		if publishPage != "" {
			if err := wiki.CheckPageName(publishPage); err != nil {
				return nil, err
			}
			page.Name = publishPage
		}
		if publishMessage != "" {
			page.Message = publishMessage
		}
		return []models.WikiPage{page}, nil
	}

	dir := publishDir
	if dir == "" {
		dir = defaultDir
	}
	return wiki.LoadPages(dir)
}

func printOutcomes(w io.Writer, wc config.Wiki, outcomes []wiki.Outcome, published, unchanged, failed, filed int) {
	t := newTable(w, "Wiki pages")
	t.AppendHeader(table.Row{"Page", "Status", "Kind", "Detail"})
	for _, o := range outcomes {
		detail := ""
		if o.Status == wiki.StatusPublished {
			detail = wc.PageURL(o.Page)
		}
		if o.Err != nil {
			detail = o.Err.Error()
		}
		if o.IssueURL != "" {
			detail = "filed: " + o.IssueURL
		}
		t.AppendRow(table.Row{o.Page, o.Status, errorKind(o.Err), detail})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d pages", len(outcomes)),
		fmt.Sprintf("%d published, %d unchanged, %d failed", published, unchanged, failed),
		"",
		fmt.Sprintf("%d filed", filed),
	})
	t.Render()
}
