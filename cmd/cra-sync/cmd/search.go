package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	searchLimit  int
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed news articles",
	Long: `Search the news articles indexed in Elasticsearch.

Examples:
  # Basic search
  cra-sync search "vulnerability reporting"

  # Limit results
  cra-sync search "harmonised standards" --limit 5

  # JSON output for scripting
  cra-sync search "ENISA" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]
	cfg := GetConfig()

	esClient, err := newES(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	articles, err := esClient.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(articles) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(articles, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(articles))
	for i, a := range articles {
		fmt.Printf("─── Result %d ───\n", i+1)
		fmt.Printf("Title:   %s\n", a.Title)
		fmt.Printf("Link:    %s\n", a.Link)
		fmt.Printf("Date:    %s\n", a.Date)
		fmt.Printf("Source:  %s\n", a.Source)
		fmt.Printf("ID:      %s\n", a.ID)
		if a.Summary != "" {
			fmt.Printf("Summary:\n%s\n", a.Summary)
		}
		fmt.Println()
	}

	return nil
}
