package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// Configuration validation errors.
var (
	ErrNoDocuments         = errors.New("documents.items must not be empty")
	ErrDocumentMissingURL  = errors.New("document url is required")
	ErrDocumentMissingFile = errors.New("document filename is required")
	ErrDuplicateDocument   = errors.New("document filename must be unique")
	ErrNoNewsSources       = errors.New("news.sources must not be empty")
	ErrInvalidSourceType   = errors.New("news source type must be one of: rss, web, search")
	ErrSourceMissingURL    = errors.New("news source url is required")
	ErrSourceNoKeywords    = errors.New("search news source needs keywords")
	ErrNoKeywords          = errors.New("news.keywords must not be empty")
	ErrInvalidUndated      = errors.New("news.undated_policy must be one of: include, exclude, flag")
	ErrInvalidWindow       = errors.New("news.window must be positive")
	ErrMissingWikiRepo     = errors.New("wiki.owner and wiki.repo (or wiki.remote_url) are required")
)

// News source types.
const (
	SourceRSS    = "rss"
	SourceWeb    = "web"
	SourceSearch = "search"
)

// Undated article policies.
const (
	UndatedInclude = "include"
	UndatedExclude = "exclude"
	UndatedFlag    = "flag"
)

// BrowserUserAgent is sent with every outbound request; some EU sites refuse unknown agents.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Config holds all application configuration.
type Config struct {
	Documents     Documents     `mapstructure:"documents"`
	News          News          `mapstructure:"news"`
	Wiki          Wiki          `mapstructure:"wiki"`
	Storage       Storage       `mapstructure:"storage"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	MCP           MCP           `mapstructure:"mcp"`
	Metrics       Metrics       `mapstructure:"metrics"`
	Schedule      Schedule      `mapstructure:"schedule"`
}

// Documents holds the document synchronizer configuration.
type Documents struct {
	Dir       string                      `mapstructure:"dir"`
	Timeout   time.Duration               `mapstructure:"timeout"`
	UserAgent string                      `mapstructure:"user_agent"`
	Items     []models.DocumentDescriptor `mapstructure:"items"`
}

// News holds the news aggregator configuration.
type News struct {
	MarkdownPath  string        `mapstructure:"markdown_path"`
	JSONPath      string        `mapstructure:"json_path"`
	Keywords      []string      `mapstructure:"keywords"`
	Window        time.Duration `mapstructure:"window"`
	DigestLimit   int           `mapstructure:"digest_limit"`
	FeedLimit     int           `mapstructure:"feed_limit"`
	SummaryWidth  int           `mapstructure:"summary_width"`
	SourceDelay   time.Duration `mapstructure:"source_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	UndatedPolicy string        `mapstructure:"undated_policy"`
	Sources       []NewsSource  `mapstructure:"sources"`
}

// NewsSource is one feed, page or keyword search to aggregate.
type NewsSource struct {
	Name       string   `mapstructure:"name"`
	Type       string   `mapstructure:"type"`
	URL        string   `mapstructure:"url"`
	Label      string   `mapstructure:"label"`
	Summary    string   `mapstructure:"summary"` // fallback summary for web entries
	Keywords   []string `mapstructure:"keywords"`
	MaxEntries int      `mapstructure:"max_entries"`
}

// Wiki holds wiki publishing configuration.
type Wiki struct {
	Owner       string `mapstructure:"owner"`
	Repo        string `mapstructure:"repo"`
	RemoteURL   string `mapstructure:"remote_url"`
	Token       string `mapstructure:"token"`
	PagesDir    string `mapstructure:"pages_dir"`
	NewsPage    string `mapstructure:"news_page"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
	APIURL      string `mapstructure:"api_url"`
}

// Storage holds S3/MinIO mirror configuration. An empty endpoint disables the mirror.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Metrics holds Prometheus Pushgateway configuration. An empty URL disables pushing.
type Metrics struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Schedule holds cron expressions for the schedule command. Empty entries are not scheduled.
type Schedule struct {
	Documents string `mapstructure:"documents"`
	News      string `mapstructure:"news"`
}

// StorageEnabled reports whether the S3 mirror is configured.
func (c Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}

// WikiRemote returns the clone URL of the wiki repository, embedding the token when set.
func (w Wiki) WikiRemote() string {
	if w.RemoteURL != "" {
		return w.RemoteURL
	}
	if w.Token == "" {
		return fmt.Sprintf("https://github.com/%s/%s.wiki.git", w.Owner, w.Repo)
	}
	return fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.wiki.git", w.Token, w.Owner, w.Repo)
}

// PageURL returns the browser URL of a wiki page.
func (w Wiki) PageURL(page string) string {
	return fmt.Sprintf("https://github.com/%s/%s/wiki/%s", w.Owner, w.Repo, page)
}

// Validate checks the configuration for the jobs that read it.
func (c Config) Validate() error {
	if len(c.Documents.Items) == 0 {
		return ErrNoDocuments
	}

	seen := make(map[string]bool, len(c.Documents.Items))
	for i, d := range c.Documents.Items {
		if d.URL == "" {
			return fmt.Errorf("%w: documents.items[%d]", ErrDocumentMissingURL, i)
		}
		if d.Filename == "" {
			return fmt.Errorf("%w: documents.items[%d]", ErrDocumentMissingFile, i)
		}
		key := d.Subfolder() + "/" + d.Filename
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateDocument, key)
		}
		seen[key] = true
	}

	if len(c.News.Sources) == 0 {
		return ErrNoNewsSources
	}
	if len(c.News.Keywords) == 0 {
		return ErrNoKeywords
	}
	if c.News.Window <= 0 {
		return ErrInvalidWindow
	}

	switch c.News.UndatedPolicy {
	case UndatedInclude, UndatedExclude, UndatedFlag:
	default:
		return ErrInvalidUndated
	}

	for i, s := range c.News.Sources {
		switch s.Type {
		case SourceRSS, SourceWeb:
			if s.URL == "" {
				return fmt.Errorf("%w: news.sources[%d]", ErrSourceMissingURL, i)
			}
		case SourceSearch:
			if len(s.Keywords) == 0 {
				return fmt.Errorf("%w: news.sources[%d]", ErrSourceNoKeywords, i)
			}
		default:
			return fmt.Errorf("%w: news.sources[%d] has %q", ErrInvalidSourceType, i, s.Type)
		}
	}

	if c.Wiki.RemoteURL == "" && (c.Wiki.Owner == "" || c.Wiki.Repo == "") {
		return ErrMissingWikiRepo
	}

	return nil
}

// Defaults returns a Config with the sources the project has always tracked.
func Defaults() Config {
	return Config{
		Documents: Documents{
			Dir:       "docs/official-documents",
			Timeout:   30 * time.Second,
			UserAgent: BrowserUserAgent,
			Items: []models.DocumentDescriptor{
				{
					ID:       "cra_regulation",
					URL:      "https://eur-lex.europa.eu/resource.html?uri=cellar:864f472b-34e9-11ed-9c68-01aa75ed71a1.0001.02/DOC_1&format=PDF",
					Filename: "eu-cyber-resilience-act-regulation.pdf",
					Title:    "EU Cyber Resilience Act - Official Regulation Text",
					Category: "regulation",
				},
				{
					ID:       "cra_impact_assessment_1",
					URL:      "https://ec.europa.eu/newsroom/dae/redirection/document/89545",
					Filename: "cra-impact-assessment-main.pdf",
					Title:    "CRA Impact Assessment - Main Document",
					Category: "assessment",
				},
				{
					ID:       "cra_impact_assessment_2",
					URL:      "https://ec.europa.eu/newsroom/dae/redirection/document/89546",
					Filename: "cra-impact-assessment-annex-1.pdf",
					Title:    "CRA Impact Assessment - Annex 1",
					Category: "assessment",
				},
				{
					ID:       "cra_impact_assessment_3",
					URL:      "https://ec.europa.eu/newsroom/dae/redirection/document/89551",
					Filename: "cra-impact-assessment-annex-2.pdf",
					Title:    "CRA Impact Assessment - Annex 2",
					Category: "assessment",
				},
				{
					ID:       "cra_impact_assessment_4",
					URL:      "https://ec.europa.eu/newsroom/dae/redirection/document/89553",
					Filename: "cra-impact-assessment-annex-3.pdf",
					Title:    "CRA Impact Assessment - Annex 3",
					Category: "assessment",
				},
				{
					ID:       "enisa_guidelines",
					URL:      "https://www.enisa.europa.eu/sites/default/files/publications/ENISA_candidate%20scheme_EUCC.pdf",
					Filename: "enisa-cybersecurity-certification-analysis.pdf",
					Title:    "ENISA Cybersecurity Certification Ecosystem Analysis",
					Category: "guidance",
				},
			},
		},
		News: News{
			MarkdownPath:  "docs/news-updates.md",
			JSONPath:      "docs/latest-cra-news.json",
			Keywords:      []string{"cyber resilience act", "cra", "eu cybersecurity"},
			Window:        30 * 24 * time.Hour,
			DigestLimit:   10,
			FeedLimit:     20,
			SummaryWidth:  200,
			SourceDelay:   1 * time.Second,
			Timeout:       10 * time.Second,
			UserAgent:     BrowserUserAgent,
			UndatedPolicy: UndatedFlag,
			Sources: []NewsSource{
				{
					Name:    "eu_official",
					Type:    SourceWeb,
					URL:     "https://ec.europa.eu/info/law/better-regulation/have-your-say/initiatives/13410-Cyber-resilience-act_en",
					Label:   "EU Official",
					Summary: "Official EU update on Cyber Resilience Act",
				},
				{
					Name:    "enisa_news",
					Type:    SourceWeb,
					URL:     "https://www.enisa.europa.eu/news",
					Label:   "ENISA",
					Summary: "ENISA update on Cyber Resilience Act",
				},
				{
					Name:       "cybersecurity_news",
					Type:       SourceRSS,
					URL:        "https://feeds.feedburner.com/SecurityWeek",
					Label:      "Security Week",
					MaxEntries: 20,
				},
				{
					Name:       "gnews",
					Type:       SourceSearch,
					Label:      "Google News",
					Keywords:   []string{"cyber resilience act", "CRA", "EU cybersecurity", "cyber resilience act EU"},
					MaxEntries: 10,
				},
			},
		},
		Wiki: Wiki{
			Owner:       "seedon198",
			Repo:        "Cyber-Resilience-Act",
			PagesDir:    "wiki",
			NewsPage:    "Latest-News",
			AuthorName:  "GitHub Action",
			AuthorEmail: "action@github.com",
			APIURL:      "https://api.github.com",
		},
		Storage: Storage{
			Bucket: "cra-sync",
		},
		Elasticsearch: Elasticsearch{
			Enabled:   false,
			Addresses: []string{"http://localhost:9200"},
			Index:     "cra-news",
		},
		MCP: MCP{
			Name:    "cra-sync",
			Version: "1.0.0",
		},
		Metrics: Metrics{
			Job: "cra-sync",
		},
		Schedule: Schedule{
			Documents: "0 3 * * *",
			News:      "0 6 * * *",
		},
	}
}
