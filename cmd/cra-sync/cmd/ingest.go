package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cra-hub/cra-sync/internal/ingestion"
)

var (
	ingestPrefix   string
	ingestRecreate bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a mirrored news feed from S3 into Elasticsearch",
	Long: `Re-index the news feed of a mirrored run from S3 into Elasticsearch.

Use this command to rebuild the news index, or to index runs that were
collected while Elasticsearch was disabled. Without --prefix the most recent
news run is used.

Examples:
  # Ingest the latest mirrored news run
  cra-sync ingest

  # Rebuild the index from the latest run
  cra-sync ingest --recreate

  # Ingest a specific run by prefix
  cra-sync ingest --prefix news/2025-03-15T06-00-00-4b1f0c9e-2d7a-4c1e-9f3a-2b8d5e6f7a10`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestPrefix, "prefix", "", "S3 prefix to ingest (default: latest news run)")
	ingestCmd.Flags().BoolVar(&ingestRecreate, "recreate", false, "Delete the news index before ingesting")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("ingest command starting", "prefix", ingestPrefix)

	if !cfg.StorageEnabled() {
		return fmt.Errorf("storage not configured - check config file")
	}

	storageClient, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	esClient, err := newES(cfg)
	if err != nil {
		return err
	}

	if ingestRecreate {
		slog.Info("deleting news index", "index", cfg.Elasticsearch.Index)
		if err := esClient.DeleteIndex(ctx); err != nil {
			return fmt.Errorf("failed to delete index: %w", err)
		}
	}

	engine := ingestion.New(storageClient, esClient, newEventSink(cfg))

	if ingestPrefix != "" {
		fmt.Printf("Ingesting: %s\n", ingestPrefix)
	} else {
		fmt.Println("Ingesting latest news run")
	}

	result, err := engine.Ingest(ctx, ingestPrefix)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Source: s3://%s/%s\n", storageClient.Bucket(), result.Prefix)
	fmt.Printf("  Articles indexed: %d\n", result.DocsIndexed)
	fmt.Printf("  Duration: %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("  Warnings: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	return nil
}
