package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/cra-hub/cra-sync/internal/config"
	"github.com/cra-hub/cra-sync/internal/events"
)

var (
	schedulePublish       bool
	scheduleIssueFallback bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the document and news jobs on cron schedules",
	Long: `Run the docs and news jobs inside one long-lived process using the cron
expressions in schedule.documents and schedule.news. An empty expression
disables that job. A run that is still in progress when its next tick fires
is skipped.

Examples:
  # Daily documents at 03:00, news at 06:00 (defaults)
  cra-sync schedule

  # Publish the digest to the wiki after every news run
  cra-sync schedule --publish`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&schedulePublish, "publish", false, "Publish the news digest to the wiki after each run")
	scheduleCmd.Flags().BoolVar(&scheduleIssueFallback, "issue-fallback", false, "File a GitHub issue when the wiki publish fails")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c, err := newScheduler(ctx, cfg, newEventSink(cfg))
	if err != nil {
		return err
	}
	if len(c.Entries()) == 0 {
		return fmt.Errorf("no jobs scheduled - set schedule.documents or schedule.news")
	}

	c.Start()
	fmt.Fprintf(cmd.ErrOrStderr(), "Scheduler started with %d jobs\n", len(c.Entries()))

	<-ctx.Done()
	slog.Info("stopping scheduler")
	<-c.Stop().Done()
	return nil
}

// newScheduler registers the configured jobs. Jobs share ctx so a signal
// cancels a run in progress.
func newScheduler(ctx context.Context, cfg config.Config, sink events.Sink) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	if cfg.Schedule.Documents != "" {
		_, err := c.AddFunc(cfg.Schedule.Documents, func() {
			if _, err := syncDocuments(ctx, cfg, sink); err != nil {
				slog.Error("scheduled document sync failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid schedule.documents %q: %w", cfg.Schedule.Documents, err)
		}
	}

	if cfg.Schedule.News != "" {
		_, err := c.AddFunc(cfg.Schedule.News, func() {
			if _, err := collectNews(ctx, cfg, schedulePublish, scheduleIssueFallback, sink); err != nil {
				slog.Error("scheduled news run failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid schedule.news %q: %w", cfg.Schedule.News, err)
		}
	}

	return c, nil
}
