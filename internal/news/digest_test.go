package news

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cra-hub/cra-sync/pkg/models"
)

func article(title string, published time.Time) models.NewsArticle {
	return models.NewArticle(title, "https://example.com/"+strings.ToLower(strings.ReplaceAll(title, " ", "-")), published, true, "", "Test")
}

func TestRenderDigest_GroupsByMonthNewestFirst(t *testing.T) {
	c := &Collection{Articles: order([]models.NewsArticle{
		article("January item", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		article("March item", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		article("February item", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	})}

	digest := RenderDigest(c, testNow, 0)

	march := strings.Index(digest, "#### March 2024")
	february := strings.Index(digest, "#### February 2024")
	january := strings.Index(digest, "#### January 2024")
	require.NotEqual(t, -1, march)
	require.NotEqual(t, -1, february)
	require.NotEqual(t, -1, january)
	assert.Less(t, march, february)
	assert.Less(t, february, january)

	assert.Less(t, strings.Index(digest, "March item"), strings.Index(digest, "February item"))
	assert.Contains(t, digest, "**[March item](https://example.com/march-item)**\n*2024-03-01 | Source: Test*")
}

func TestRenderDigest_OneHeaderPerMonth(t *testing.T) {
	c := &Collection{Articles: order([]models.NewsArticle{
		article("CRA one", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		article("CRA two", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)),
	})}

	digest := RenderDigest(c, testNow, 0)
	assert.Equal(t, 1, strings.Count(digest, "#### March 2024"))
	assert.Equal(t, 2, strings.Count(digest, "---\n"))
}

func TestRenderDigest_Limit(t *testing.T) {
	var articles []models.NewsArticle
	for i := range 12 {
		articles = append(articles, article("CRA item "+string(rune('A'+i)), testNow.AddDate(0, 0, -i)))
	}
	c := &Collection{Articles: articles}

	digest := RenderDigest(c, testNow, 0)
	assert.Contains(t, digest, "CRA item J")
	assert.NotContains(t, digest, "CRA item K")

	assert.NotContains(t, RenderDigest(c, testNow, 3), "CRA item D")
}

func TestRenderDigest_UndatedMarker(t *testing.T) {
	undated := models.NewArticle("CRA workshop", "", testNow, false, "", "ENISA")
	digest := RenderDigest(&Collection{Articles: []models.NewsArticle{undated}}, testNow, 0)

	assert.Contains(t, digest, "**[CRA workshop](#)**")
	assert.Contains(t, digest, "*2024-03-15 (undated) | Source: ENISA*")
}

func TestRenderDigest_Placeholder(t *testing.T) {
	c := &Collection{
		Sources: []SourceReport{
			{Name: "eu_official", Type: SourceWeb, Label: "EU Official"},
			{Name: "cybersecurity_news", Type: SourceRSS, Label: "Security Week"},
		},
	}

	digest := RenderDigest(c, testNow, 0)
	assert.Contains(t, digest, "**"+PlaceholderTitle+"**")
	assert.Contains(t, digest, "#### March 2024")
	assert.Contains(t, digest, "| EU Official | Web Scraping | Daily |")
	assert.Contains(t, digest, "| Security Week | RSS Feed | Daily |")

	feed := BuildFeed(c, testNow, 0)
	assert.Empty(t, feed.Articles)
	assert.NotNil(t, feed.Articles)
	assert.Equal(t, 0, feed.TotalArticles)
}

func TestBuildFeed_CapsArticlesButCountsAll(t *testing.T) {
	var articles []models.NewsArticle
	for i := range 25 {
		articles = append(articles, article("CRA item", testNow.AddDate(0, 0, -i)))
	}

	feed := BuildFeed(&Collection{Articles: articles}, testNow, 0)
	assert.Len(t, feed.Articles, DefaultFeedLimit)
	assert.Equal(t, 25, feed.TotalArticles)
	assert.Equal(t, testNow, feed.LastUpdated)
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	out := Output{
		MarkdownPath: filepath.Join(dir, "docs", "news-updates.md"),
		JSONPath:     filepath.Join(dir, "docs", "latest-cra-news.json"),
	}
	c := &Collection{Articles: []models.NewsArticle{article("CRA enters into force", testNow.AddDate(0, 0, -1))}}

	rendered, err := WriteOutputs(c, testNow, out)
	require.NoError(t, err)

	md, err := os.ReadFile(out.MarkdownPath)
	require.NoError(t, err)
	assert.Equal(t, rendered.Digest, string(md))

	data, err := os.ReadFile(out.JSONPath)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["total_articles"])
	assert.Contains(t, raw, "last_updated")

	feed, err := LoadFeed(out.JSONPath)
	require.NoError(t, err)
	require.Len(t, feed.Articles, 1)
	assert.Equal(t, "CRA enters into force", feed.Articles[0].Title)
}

func TestWriteOutputs_UnwritablePathIsIOError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := WriteOutputs(&Collection{}, testNow, Output{
		MarkdownPath: filepath.Join(blocker, "news.md"),
		JSONPath:     filepath.Join(blocker, "news.json"),
	})
	require.Error(t, err)
	assert.Equal(t, models.KindIO, models.KindOf(err))
}
