package news

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// newsElements selects the candidate news items on a web source.
const newsElements = "article.news, article.update, article.announcement, div.news, div.update, div.announcement"

var webDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// fetchWeb scrapes a single page for news elements. Entries match on title only.
func (a *Aggregator) fetchWeb(ctx context.Context, src SourceConfig) ([]entry, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	var entries []entry

	c := colly.NewCollector(
		colly.UserAgent(a.cfg.UserAgent),
	)
	c.SetRequestTimeout(a.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()

		items := e.DOM.Find(newsElements)
		if items.Length() > webElementLimit {
			items = items.Slice(0, webElementLimit)
		}

		items.Each(func(_ int, s *goquery.Selection) {
			title := strings.TrimSpace(s.Find("h1, h2, h3, h4").First().Text())
			if title == "" {
				return
			}

			link := pageURL
			if href, ok := s.Find("a[href]").First().Attr("href"); ok {
				if abs := e.Request.AbsoluteURL(href); abs != "" {
					link = abs
				}
			}

			summary := strings.TrimSpace(s.Find("p").First().Text())
			if summary == "" {
				summary = src.Summary
			}

			item := entry{
				title:       collapse(title),
				link:        link,
				summaryHTML: summary,
				titleOnly:   true,
				source:      label(src),
			}
			if raw, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
				item.published, item.dated = parseWebDate(raw)
			}
			entries = append(entries, item)
		})
	})

	if err := c.Visit(src.URL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, models.NewError(models.KindFetch, "scrape "+src.URL, err)
	}
	c.Wait()

	return entries, nil
}

func parseWebDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range webDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
