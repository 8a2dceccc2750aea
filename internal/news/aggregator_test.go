package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cra-hub/cra-sync/pkg/models"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type rssItem struct {
	title, link, description string
	published                time.Time // zero means no pubDate
}

func rssFeed(items ...rssItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title><link>https://example.com</link><description>test</description>`)
	for _, it := range items {
		b.WriteString("<item>")
		fmt.Fprintf(&b, "<title>%s</title><link>%s</link>", it.title, it.link)
		fmt.Fprintf(&b, "<description><![CDATA[%s]]></description>", it.description)
		if !it.published.IsZero() {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", it.published.Format(time.RFC1123Z))
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(body, "<?xml") {
			w.Header().Set("Content-Type", "application/rss+xml")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAggregator(cfg Config) *Aggregator {
	if cfg.Keywords == nil {
		cfg.Keywords = []string{"cyber resilience act", "cra", "eu cybersecurity"}
	}
	return NewAggregator(cfg, WithClock(func() time.Time { return testNow }))
}

func titles(articles []models.NewsArticle) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}

func TestCollect_KeywordAndDateFilter(t *testing.T) {
	server := serve(t, map[string]string{
		"/feed": rssFeed(
			rssItem{title: "Cyber Resilience Act enters into force", link: "https://example.com/a", published: testNow.AddDate(0, 0, -10)},
			rssItem{title: "Unrelated ransomware story", link: "https://example.com/b", published: testNow.AddDate(0, 0, -2)},
			rssItem{title: "Cyber Resilience Act proposal published", link: "https://example.com/c", published: testNow.AddDate(0, 0, -40)},
		),
	})

	agg := newTestAggregator(Config{
		Sources: []SourceConfig{{Name: "feed", Type: SourceRSS, URL: server.URL + "/feed", Label: "Security Week"}},
	})

	c, err := agg.Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, c.Articles, 1)

	art := c.Articles[0]
	assert.Equal(t, "Cyber Resilience Act enters into force", art.Title)
	assert.Equal(t, "2024-03-05", art.Date)
	assert.True(t, art.DateKnown)
	assert.Equal(t, "Security Week", art.Source)
	assert.Equal(t, models.GenerateDocumentID("https://example.com/a"), art.ID)

	require.Len(t, c.Sources, 1)
	assert.Equal(t, 3, c.Sources[0].Fetched)
	assert.Equal(t, 1, c.Sources[0].Matched)
}

func TestCollect_MatchesSummaryCaseInsensitively(t *testing.T) {
	server := serve(t, map[string]string{
		"/feed": rssFeed(
			rssItem{title: "Weekly roundup", link: "https://example.com/r", description: "<p>New guidance on the <b>EU Cybersecurity</b> framework</p>", published: testNow.AddDate(0, 0, -1)},
		),
	})

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{{Name: "feed", Type: SourceRSS, URL: server.URL + "/feed"}},
	}).Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, c.Articles, 1)
	assert.Equal(t, "New guidance on the **EU Cybersecurity** framework", c.Articles[0].Summary)
	assert.Equal(t, "feed", c.Articles[0].Source)
}

func TestCollect_IgnoresKeywordsInsideMarkup(t *testing.T) {
	server := serve(t, map[string]string{
		"/feed": rssFeed(
			rssItem{title: "Market update", link: "https://example.com/m", description: `<img src="https://cdn.example.com/scrape.png"><a href="https://example.com/cra">Quarterly earnings</a>`, published: testNow.AddDate(0, 0, -1)},
			rssItem{title: "Weekly roundup", link: "https://example.com/w", description: `<p>Vendors prepare for the <a href="https://example.com/x">CRA</a></p>`, published: testNow.AddDate(0, 0, -1)},
		),
	})

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{{Name: "feed", Type: SourceRSS, URL: server.URL + "/feed"}},
	}).Collect(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"Weekly roundup"}, titles(c.Articles))
}

func TestCollect_FailingSourceIsIsolated(t *testing.T) {
	server := serve(t, map[string]string{
		"/one": rssFeed(rssItem{title: "CRA update one", link: "https://example.com/1", published: testNow.AddDate(0, 0, -1)}),
		"/two": rssFeed(rssItem{title: "CRA update two", link: "https://example.com/2", published: testNow.AddDate(0, 0, -2)}),
	})

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{
			{Name: "one", Type: SourceRSS, URL: server.URL + "/one"},
			{Name: "broken", Type: SourceRSS, URL: server.URL + "/missing"},
			{Name: "unreachable", Type: SourceWeb, URL: "http://127.0.0.1:0/nothing"},
			{Name: "two", Type: SourceRSS, URL: server.URL + "/two"},
		},
	}).Collect(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"CRA update one", "CRA update two"}, titles(c.Articles))
	require.Len(t, c.Sources, 4)
	assert.NoError(t, c.Sources[0].Err)
	assert.Error(t, c.Sources[1].Err)
	assert.Equal(t, models.KindFetch, models.KindOf(c.Sources[1].Err))
	assert.Error(t, c.Sources[2].Err)
	assert.NoError(t, c.Sources[3].Err)
}

func TestCollect_DeduplicatesAndOrders(t *testing.T) {
	dup := rssItem{title: "CRA news", link: "https://example.com/same", published: testNow.AddDate(0, 0, -3)}
	server := serve(t, map[string]string{
		"/a": rssFeed(dup, rssItem{title: "Newest CRA news", link: "https://example.com/new", published: testNow.AddDate(0, 0, -1)}),
		"/b": rssFeed(dup, rssItem{title: "Oldest CRA news", link: "https://example.com/old", published: testNow.AddDate(0, 0, -20)}),
	})

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{
			{Name: "a", Type: SourceRSS, URL: server.URL + "/a"},
			{Name: "b", Type: SourceRSS, URL: server.URL + "/b"},
		},
	}).Collect(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"Newest CRA news", "CRA news", "Oldest CRA news"}, titles(c.Articles))
}

func TestCollect_UndatedPolicy(t *testing.T) {
	server := serve(t, map[string]string{
		"/feed": rssFeed(rssItem{title: "CRA guidance without a date", link: "https://example.com/u"}),
	})

	tests := []struct {
		policy    string
		wantCount int
		wantKnown bool
	}{
		{policy: UndatedFlag, wantCount: 1, wantKnown: false},
		{policy: UndatedInclude, wantCount: 1, wantKnown: true},
		{policy: UndatedExclude, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			c, err := newTestAggregator(Config{
				UndatedPolicy: tt.policy,
				Sources:       []SourceConfig{{Name: "feed", Type: SourceRSS, URL: server.URL + "/feed"}},
			}).Collect(t.Context())
			require.NoError(t, err)
			require.Len(t, c.Articles, tt.wantCount)

			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantKnown, c.Articles[0].DateKnown)
				assert.True(t, testNow.Equal(c.Articles[0].Published))
			}
		})
	}
}

func TestCollect_WebSource(t *testing.T) {
	server := serve(t, map[string]string{
		"/news": `<html><body>
			<div class="news">
				<h3>Cyber Resilience Act: reporting obligations clarified</h3>
				<a href="/news/reporting">Read more</a>
				<time datetime="2024-03-10">10 March 2024</time>
				<p>The Commission published new guidance.</p>
			</div>
			<article class="update">
				<h2>Unrelated budget update</h2>
			</article>
			<article class="announcement">
				<h2>CRA workshop announced</h2>
			</article>
			<div class="sidebar"><h2>CRA in the sidebar</h2></div>
		</body></html>`,
	})

	c, err := newTestAggregator(Config{
		UndatedPolicy: UndatedFlag,
		Sources: []SourceConfig{{
			Name:    "enisa_news",
			Type:    SourceWeb,
			URL:     server.URL + "/news",
			Label:   "ENISA",
			Summary: "ENISA update on Cyber Resilience Act",
		}},
	}).Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, c.Articles, 2)
	assert.Equal(t, 3, c.Sources[0].Fetched)

	// The undated entry is dated at collection time, so it sorts first.
	undated := c.Articles[0]
	assert.Equal(t, "CRA workshop announced", undated.Title)
	assert.Equal(t, server.URL+"/news", undated.Link)
	assert.False(t, undated.DateKnown)
	assert.Equal(t, "ENISA update on Cyber Resilience Act", undated.Summary)

	dated := c.Articles[1]
	assert.Equal(t, "Cyber Resilience Act: reporting obligations clarified", dated.Title)
	assert.Equal(t, server.URL+"/news/reporting", dated.Link)
	assert.Equal(t, "2024-03-10", dated.Date)
	assert.True(t, dated.DateKnown)
	assert.Equal(t, "The Commission published new guidance.", dated.Summary)
	assert.Equal(t, "ENISA", dated.Source)
}

func TestCollect_WebSourceCapsElements(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range 8 {
		fmt.Fprintf(&b, `<div class="news"><h2>CRA item %d</h2></div>`, i)
	}
	b.WriteString("</body></html>")
	server := serve(t, map[string]string{"/": b.String()})

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{{Name: "web", Type: SourceWeb, URL: server.URL + "/"}},
	}).Collect(t.Context())
	require.NoError(t, err)
	assert.Len(t, c.Articles, 5)
}

func TestCollect_SearchSource(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()

		_, _ = w.Write([]byte(rssFeed(rssItem{
			title:     "Result for " + q,
			link:      "https://news.example.com/" + strings.ReplaceAll(q, " ", "-"),
			published: testNow.AddDate(0, 0, -1),
		})))
	}))
	defer server.Close()

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{{
			Name:     "gnews",
			Type:     SourceSearch,
			URL:      server.URL + "/rss/search",
			Label:    "Google News",
			Keywords: []string{"cyber resilience act", "CRA"},
		}},
	}).Collect(t.Context())
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"cyber resilience act", "CRA"}, queries)
	mu.Unlock()

	assert.Len(t, c.Articles, 2)
	for _, a := range c.Articles {
		assert.Equal(t, "Google News", a.Source)
	}
}

func TestCollect_TruncatesSummaries(t *testing.T) {
	server := serve(t, map[string]string{
		"/feed": rssFeed(rssItem{
			title:       "CRA deep dive",
			link:        "https://example.com/long",
			description: strings.Repeat("compliance ", 60),
			published:   testNow.AddDate(0, 0, -1),
		}),
	})

	c, err := newTestAggregator(Config{
		Sources: []SourceConfig{{Name: "feed", Type: SourceRSS, URL: server.URL + "/feed"}},
	}).Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, c.Articles, 1)

	summary := c.Articles[0].Summary
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.LessOrEqual(t, len(strings.TrimSuffix(summary, "...")), DefaultSummaryWidth)
}

func TestCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newTestAggregator(Config{
		Sources: []SourceConfig{{Name: "feed", Type: SourceRSS, URL: "http://127.0.0.1:0/feed"}},
	}).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("", "cyber resilience act")
	assert.Equal(t, "https://news.google.com/rss/search?ceid=US%3Aen&gl=US&hl=en-US&q=cyber+resilience+act", got)
}

func TestFilter_Matches(t *testing.T) {
	f := NewFilter([]string{"Cyber Resilience Act", " CRA "})

	assert.True(t, f.Matches("The CYBER RESILIENCE ACT explained"))
	assert.True(t, f.Matches("cra deadlines"))
	assert.False(t, f.Matches("Unrelated news"))
	assert.False(t, NewFilter(nil).Matches("cra"))
}
