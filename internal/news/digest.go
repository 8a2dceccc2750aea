package news

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// PlaceholderTitle is rendered when a run found no articles.
const PlaceholderTitle = "No new developments"

// Feed is the JSON document written for programmatic consumers.
type Feed struct {
	LastUpdated   time.Time            `json:"last_updated"`
	Articles      []models.NewsArticle `json:"articles"`
	TotalArticles int                  `json:"total_articles"`
}

// Output configures where and how much of a collection is written.
type Output struct {
	MarkdownPath string
	JSONPath     string
	DigestLimit  int // default: 10
	FeedLimit    int // default: 20
}

// Rendered holds the rendered outputs of one collection.
type Rendered struct {
	Digest   string
	Feed     Feed
	FeedJSON []byte
}

var sourceTypeNames = map[string]string{
	SourceWeb:    "Web Scraping",
	SourceRSS:    "RSS Feed",
	SourceSearch: "News Search",
}

// RenderDigest renders the Markdown digest of the most recent limit articles,
// grouped under a header per calendar month.
func RenderDigest(c *Collection, now time.Time, limit int) string {
	if limit <= 0 {
		limit = DefaultDigestLimit
	}

	var b strings.Builder
	b.WriteString("# Latest CRA News and Updates\n\n")
	fmt.Fprintf(&b, "*Last updated: %s*\n\n", now.UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString("## Recent Developments\n\n")
	b.WriteString("The following section is automatically updated with the latest news and developments related to the EU Cyber Resilience Act.\n\n")
	b.WriteString("### Key Updates This Month\n\n")

	articles := c.Articles
	if len(articles) > limit {
		articles = articles[:limit]
	}

	if len(articles) == 0 {
		fmt.Fprintf(&b, "\n#### %s\n\n", now.Format("January 2006"))
		fmt.Fprintf(&b, "**%s**\n", PlaceholderTitle)
		fmt.Fprintf(&b, "*%s | Source: cra-sync*\n\n", now.Format("2006-01-02"))
		b.WriteString("No new CRA-related articles were found in the monitored sources during this period.\n\n")
		b.WriteString("---\n\n")
	}

	var month string
	for _, art := range articles {
		if m := art.Published.Format("January 2006"); m != month {
			month = m
			fmt.Fprintf(&b, "\n#### %s\n\n", month)
		}

		link := art.Link
		if link == "" {
			link = "#"
		}
		fmt.Fprintf(&b, "**[%s](%s)**\n", art.Title, link)

		date := art.Date
		if !art.DateKnown {
			date += " (undated)"
		}
		fmt.Fprintf(&b, "*%s | Source: %s*\n\n", date, art.Source)

		if art.Summary != "" {
			b.WriteString(art.Summary)
			b.WriteString("\n\n")
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("\n## Monitoring Sources\n\n")
	b.WriteString("This page automatically monitors the following sources for CRA-related updates:\n\n")
	b.WriteString(sourcesTable(c.Sources))
	b.WriteString("\n\n*This content is automatically generated. For manual updates or corrections, please see the Contributing Guidelines.*\n")

	return b.String()
}

func sourcesTable(sources []SourceReport) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Source", "Type", "Update Frequency"})
	for _, s := range sources {
		kind, ok := sourceTypeNames[s.Type]
		if !ok {
			kind = s.Type
		}
		t.AppendRow(table.Row{s.Label, kind, "Daily"})
	}
	return t.RenderMarkdown()
}

// BuildFeed returns the JSON feed of the first limit articles. TotalArticles
// counts every article in the collection.
func BuildFeed(c *Collection, now time.Time, limit int) Feed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	articles := c.Articles
	if len(articles) > limit {
		articles = articles[:limit]
	}

	return Feed{
		LastUpdated:   now,
		Articles:      append(make([]models.NewsArticle, 0, len(articles)), articles...),
		TotalArticles: len(c.Articles),
	}
}

// Render renders the digest and the feed without touching the filesystem.
func Render(c *Collection, now time.Time, out Output) (*Rendered, error) {
	feed := BuildFeed(c, now, out.FeedLimit)

	data, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}

	return &Rendered{
		Digest:   RenderDigest(c, now, out.DigestLimit),
		Feed:     feed,
		FeedJSON: data,
	}, nil
}

// WriteOutputs renders c and writes the digest and the feed, creating parent directories.
func WriteOutputs(c *Collection, now time.Time, out Output) (*Rendered, error) {
	r, err := Render(c, now, out)
	if err != nil {
		return nil, err
	}

	if err := writeFile(out.MarkdownPath, []byte(r.Digest)); err != nil {
		return nil, err
	}
	if err := writeFile(out.JSONPath, r.FeedJSON); err != nil {
		return nil, err
	}
	return r, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.NewError(models.KindIO, "create directory for "+path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.NewError(models.KindIO, "write "+path, err)
	}
	return nil
}

// LoadFeed reads a previously written JSON feed.
func LoadFeed(path string) (*Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewError(models.KindIO, "read feed", err)
	}

	var f Feed
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed: %w", err)
	}
	return &f, nil
}
