package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/cra-hub/cra-sync/pkg/models"
)

const maxFeedBytes = 10 << 20

// fetchRSS downloads a feed and returns its first limit items.
func (a *Aggregator) fetchRSS(ctx context.Context, feedURL string, limit int, source string) ([]entry, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, models.NewError(models.KindFetch, "build request", err)
	}
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, models.NewError(models.KindFetch, "fetch "+feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewError(models.KindFetch, "fetch "+feedURL, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, models.NewError(models.KindFetch, "read "+feedURL, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, models.NewError(models.KindFetch, "parse "+feedURL, err)
	}

	items := feed.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	entries := make([]entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, feedEntry(item, source))
	}
	return entries, nil
}

func feedEntry(item *gofeed.Item, source string) entry {
	e := entry{
		title:       strings.TrimSpace(item.Title),
		link:        strings.TrimSpace(item.Link),
		summaryHTML: item.Description,
		source:      source,
	}
	if e.summaryHTML == "" {
		e.summaryHTML = item.Content
	}

	switch {
	case item.PublishedParsed != nil:
		e.published, e.dated = *item.PublishedParsed, true
	case item.UpdatedParsed != nil:
		e.published, e.dated = *item.UpdatedParsed, true
	}
	return e
}
