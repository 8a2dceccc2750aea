package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cra-hub/cra-sync/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "cra-sync",
	Short: "CRA-Sync: keeps the Cyber Resilience Act hub up to date",
	Long: `CRA-Sync downloads the official Cyber Resilience Act documents, aggregates
CRA news into a Markdown digest and JSON feed, and publishes pages to the
GitHub wiki.

Commands:
  docs      Download official documents and rebuild the manifest
  news      Aggregate news into the digest and feed
  publish   Publish Markdown pages to the wiki
  ingest    Re-index a mirrored news feed from S3 into Elasticsearch
  search    Search the news index
  serve     Start the MCP server
  schedule  Run docs and news on cron schedules`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// .env.local wins over .env; neither overrides the real environment
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	loaded, err := loadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		slog.Warn("failed to parse config", "error", err)
	}
	cfg = loaded
}

// loadConfig merges the config file and environment into Defaults(). Lists
// given in the file or environment replace the default lists as a whole.
func loadConfig(v *viper.Viper, file string) (config.Config, error) {
	// Start with defaults
	c := config.Defaults()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cra-sync")
		v.AddConfigPath(".")
	}

	// Environment variable overrides
	// CRASYNC_WIKI_OWNER -> wiki.owner
	v.SetEnvPrefix("CRASYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested env vars
	v.BindEnv("wiki.token", "CRASYNC_WIKI_TOKEN", "GITHUB_TOKEN")
	v.BindEnv("wiki.owner", "CRASYNC_WIKI_OWNER")
	v.BindEnv("wiki.repo", "CRASYNC_WIKI_REPO")
	v.BindEnv("wiki.remote_url", "CRASYNC_WIKI_REMOTE_URL")
	v.BindEnv("wiki.pages_dir", "CRASYNC_WIKI_PAGES_DIR")
	v.BindEnv("documents.dir", "CRASYNC_DOCUMENTS_DIR")
	v.BindEnv("documents.timeout", "CRASYNC_DOCUMENTS_TIMEOUT")
	v.BindEnv("news.markdown_path", "CRASYNC_NEWS_MARKDOWN_PATH")
	v.BindEnv("news.json_path", "CRASYNC_NEWS_JSON_PATH")
	v.BindEnv("news.window", "CRASYNC_NEWS_WINDOW")
	v.BindEnv("news.undated_policy", "CRASYNC_NEWS_UNDATED_POLICY")
	v.BindEnv("storage.endpoint", "CRASYNC_STORAGE_ENDPOINT")
	v.BindEnv("storage.bucket", "CRASYNC_STORAGE_BUCKET")
	v.BindEnv("storage.access_key_id", "CRASYNC_STORAGE_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_access_key", "CRASYNC_STORAGE_SECRET_ACCESS_KEY")
	v.BindEnv("storage.use_ssl", "CRASYNC_STORAGE_USE_SSL")
	v.BindEnv("elasticsearch.enabled", "CRASYNC_ELASTICSEARCH_ENABLED")
	v.BindEnv("elasticsearch.index", "CRASYNC_ELASTICSEARCH_INDEX")
	v.BindEnv("elasticsearch.username", "CRASYNC_ELASTICSEARCH_USERNAME")
	v.BindEnv("elasticsearch.password", "CRASYNC_ELASTICSEARCH_PASSWORD")
	v.BindEnv("metrics.pushgateway_url", "CRASYNC_METRICS_PUSHGATEWAY_URL")
	v.BindEnv("metrics.job", "CRASYNC_METRICS_JOB")
	v.BindEnv("schedule.documents", "CRASYNC_SCHEDULE_DOCUMENTS")
	v.BindEnv("schedule.news", "CRASYNC_SCHEDULE_NEWS")
	v.BindEnv("mcp.name", "CRASYNC_MCP_NAME")
	v.BindEnv("mcp.version", "CRASYNC_MCP_VERSION")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults). ZeroFields
	// rebuilds slices instead of decoding file entries over default entries.
	err := v.Unmarshal(&c, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	})

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("CRASYNC_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		c.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}

	return c, err
}
