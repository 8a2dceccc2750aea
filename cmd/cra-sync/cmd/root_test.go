package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/cra-hub/cra-sync/internal/config"
	"github.com/cra-hub/cra-sync/internal/news"
)

func findSource(t *testing.T, cfg config.Config, name string) config.NewsSource {
	t.Helper()
	for _, s := range cfg.News.Sources {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("source %q not loaded", name)
	return config.NewsSource{}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := loadConfig(viper.New(), filepath.Join("..", "..", "..", "config", "config.example.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if len(cfg.News.Sources) != 3 {
		t.Fatalf("expected 3 sources from the file, got %d", len(cfg.News.Sources))
	}

	gnews := findSource(t, cfg, "gnews")
	if gnews.Type != config.SourceSearch {
		t.Errorf("gnews type = %q", gnews.Type)
	}
	if gnews.URL != "" {
		t.Errorf("gnews url = %q, want empty (default search endpoint)", gnews.URL)
	}
	if gnews.MaxEntries != 10 {
		t.Errorf("gnews max_entries = %d, want 10", gnews.MaxEntries)
	}
	if got := news.SearchURL(gnews.URL, "CRA"); got != news.SearchURL("", "CRA") {
		t.Errorf("search url = %q", got)
	}

	rss := findSource(t, cfg, "cybersecurity_news")
	if rss.Summary != "" {
		t.Errorf("rss source summary = %q, want empty", rss.Summary)
	}

	// Lists absent from the file keep the built-in catalog.
	if len(cfg.Documents.Items) != len(config.Defaults().Documents.Items) {
		t.Errorf("documents = %d, want defaults", len(cfg.Documents.Items))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example config does not validate: %v", err)
	}
}

func TestLoadConfig_FileListsReplaceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `documents:
  items:
    - url: https://example.com/cra.pdf
      filename: cra.pdf
news:
  keywords: ["cra"]
  sources:
    - name: only
      type: rss
      url: https://example.com/feed.xml
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(viper.New(), path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if len(cfg.Documents.Items) != 1 {
		t.Fatalf("documents = %d, want 1", len(cfg.Documents.Items))
	}
	item := cfg.Documents.Items[0]
	if item.ID != "" || item.Category != "" || item.Title != "" {
		t.Errorf("document inherited default fields: %+v", item)
	}
	if len(cfg.News.Sources) != 1 || cfg.News.Sources[0].Label != "" || cfg.News.Sources[0].MaxEntries != 0 {
		t.Errorf("sources = %+v", cfg.News.Sources)
	}
	if len(cfg.News.Keywords) != 1 || cfg.News.Keywords[0] != "cra" {
		t.Errorf("keywords = %v, want [cra]", cfg.News.Keywords)
	}

	// Scalars the file leaves out keep their defaults.
	if cfg.News.DigestLimit != 10 || cfg.Wiki.NewsPage != "Latest-News" {
		t.Errorf("defaults lost: digest_limit=%d news_page=%q", cfg.News.DigestLimit, cfg.Wiki.NewsPage)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CRASYNC_WIKI_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "ghs_example")
	t.Setenv("CRASYNC_NEWS_WINDOW", "48h")
	t.Setenv("CRASYNC_STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("CRASYNC_ELASTICSEARCH_ADDRESSES", "http://a:9200,http://b:9200")

	cfg, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Wiki.Token != "ghs_example" {
		t.Errorf("wiki.token = %q, want GITHUB_TOKEN value", cfg.Wiki.Token)
	}
	if cfg.News.Window != 48*time.Hour {
		t.Errorf("news.window = %v, want 48h", cfg.News.Window)
	}
	if !cfg.StorageEnabled() {
		t.Error("storage endpoint from env not applied")
	}
	if len(cfg.Elasticsearch.Addresses) != 2 || cfg.Elasticsearch.Addresses[1] != "http://b:9200" {
		t.Errorf("elasticsearch.addresses = %v", cfg.Elasticsearch.Addresses)
	}
	if len(cfg.News.Sources) != len(config.Defaults().News.Sources) {
		t.Errorf("sources = %d, want defaults", len(cfg.News.Sources))
	}
}
