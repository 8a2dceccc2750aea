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
	"github.com/cra-hub/cra-sync/internal/docsync"
	"github.com/cra-hub/cra-sync/internal/events"
	"github.com/cra-hub/cra-sync/internal/storage"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Download official CRA documents",
	Long: `Download every configured official document, detect changes by content hash,
and rebuild index.json and README.md in the documents directory.

When storage is configured, every written file is mirrored to
documents/<timestamp>-<run id>/ in the bucket.

Examples:
  cra-sync docs
  cra-sync docs --config ./config/config.yaml -v`,
	RunE: runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	slog.Debug("docs command starting", "dir", cfg.Documents.Dir, "documents", len(cfg.Documents.Items))

	manifest, err := syncDocuments(ctx, cfg, newEventSink(cfg))
	if err != nil {
		return err
	}
	printManifest(cmd.OutOrStdout(), manifest)
	return nil
}

// syncDocuments runs the document synchronizer once and reports the run to sink.
func syncDocuments(ctx context.Context, cfg config.Config, sink events.Sink) (*docsync.Manifest, error) {
	opts := []docsync.Option{}
	if cfg.StorageEnabled() {
		store, err := newStorage(ctx, cfg)
		if err != nil {
			slog.Warn("document mirror disabled", "error", err)
		} else {
			opts = append(opts, docsync.WithMirror(store, func(startedAt time.Time, runID string) string {
				return storage.RunPrefix(storage.DocumentsRoot, startedAt, runID)
			}))
		}
	}

	syncer := docsync.New(docsync.Config{
		Dir:       cfg.Documents.Dir,
		Timeout:   cfg.Documents.Timeout,
		UserAgent: cfg.Documents.UserAgent,
		Documents: cfg.Documents.Items,
	}, opts...)

	start := time.Now()
	manifest, err := syncer.Run(ctx)

	e := events.RunCompleteEvent{
		Job:       events.JobDocuments,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
		Err:       err,
	}
	if manifest != nil {
		downloaded, unchanged, failed := manifest.Counts()
		e.RunID = manifest.RunID
		e.Units = len(manifest.Documents)
		e.Succeeded = downloaded + unchanged
		e.Failed = failed
	}
	sink.RunComplete(e)

	if err != nil {
		return nil, fmt.Errorf("document sync failed: %w", err)
	}
	return manifest, nil
}

func printManifest(w io.Writer, m *docsync.Manifest) {
	t := newTable(w, "Official documents")
	t.AppendHeader(table.Row{"Document", "Status", "Size", "Error"})
	for _, d := range m.Documents {
		errText := d.Error
		if d.ErrorKind != "" {
			errText = fmt.Sprintf("[%s] %s", d.ErrorKind, d.Error)
		}
		t.AppendRow(table.Row{d.Filename, d.Status, fmt.Sprintf("%.2f MB", float64(d.Size)/(1024*1024)), errText})
	}

	downloaded, unchanged, failed := m.Counts()
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d documents", m.TotalDocuments),
		fmt.Sprintf("%d new, %d unchanged, %d failed", downloaded, unchanged, failed),
		fmt.Sprintf("%.2f MB", float64(m.TotalSizeBytes)/(1024*1024)),
		"",
	})
	t.Render()
	fmt.Fprintf(w, "Run ID: %s\n", m.RunID)
}
