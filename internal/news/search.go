package news

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// GoogleNewsSearchURL is the RSS search endpoint queried by search sources.
const GoogleNewsSearchURL = "https://news.google.com/rss/search"

// SearchURL builds the news search feed URL for one keyword.
func SearchURL(endpoint, keyword string) string {
	if endpoint == "" {
		endpoint = GoogleNewsSearchURL
	}

	q := url.Values{}
	q.Set("q", keyword)
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	return endpoint + "?" + q.Encode()
}

// fetchSearch runs one feed query per keyword. A failing keyword is skipped;
// the source fails only when every keyword failed.
func (a *Aggregator) fetchSearch(ctx context.Context, src SourceConfig) ([]entry, error) {
	var (
		all  []entry
		errs []error
	)
	for _, kw := range src.Keywords {
		entries, err := a.fetchRSS(ctx, SearchURL(src.URL, kw), maxEntries(src, DefaultSearchHits), label(src))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("news search failed", "source", src.Name, "keyword", kw, "error", err)
			errs = append(errs, err)
			continue
		}
		all = append(all, entries...)
	}

	if len(errs) > 0 && len(errs) == len(src.Keywords) {
		return nil, models.NewError(models.KindFetch, "search "+src.Name, errors.Join(errs...))
	}
	return all, nil
}
