// Package wiki publishes Markdown pages to a GitHub wiki repository.
package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// Status is the result of publishing one page.
type Status string

const (
	StatusPublished Status = "published"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// Config holds publisher configuration.
type Config struct {
	Remote  string
	Author  Author
	WorkDir string // parent of the temporary working copies; default: os.TempDir()
}

// Outcome records what happened to one page. IssueURL is set when a failed
// page was filed as an issue instead.
type Outcome struct {
	Page     string
	Status   Status
	Err      error
	IssueURL string
}

// Filer files a page that could not be published somewhere else.
type Filer interface {
	File(ctx context.Context, page models.WikiPage, cause error) (string, error)
}

// Publisher publishes pages through a Repository.
type Publisher struct {
	repo     Repository
	cfg      Config
	fallback Filer
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithFallback files pages that failed to publish with f.
func WithFallback(f Filer) Option {
	return func(p *Publisher) { p.fallback = f }
}

// NewPublisher creates a new Publisher.
func NewPublisher(repo Repository, cfg Config, opts ...Option) *Publisher {
	p := &Publisher{repo: repo, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultMessage is the commit message used when a page has none.
func DefaultMessage(page string) string {
	return fmt.Sprintf("Update %s wiki page", page)
}

// Publish writes page into a fresh clone of the wiki and pushes it when the content changed.
// The working copy is removed on every path.
func (p *Publisher) Publish(ctx context.Context, page models.WikiPage) Outcome {
	if err := CheckPageName(page.Name); err != nil {
		slog.Error("wiki page rejected", "page", page.Name, "error", err)
		return Outcome{Page: page.Name, Status: StatusFailed, Err: err}
	}

	out := p.publish(ctx, page)

	switch out.Status {
	case StatusPublished:
		slog.Info("wiki page published", "page", page.Name)
	case StatusUnchanged:
		slog.Info("wiki page unchanged", "page", page.Name)
	default:
		slog.Error("wiki page publish failed", "page", page.Name, "error", out.Err)
		p.file(ctx, page, &out)
	}
	return out
}

// PublishAll publishes pages in order, continuing after failures.
func (p *Publisher) PublishAll(ctx context.Context, pages []models.WikiPage) []Outcome {
	outcomes := make([]Outcome, 0, len(pages))
	for _, page := range pages {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Page: page.Name, Status: StatusFailed, Err: ctx.Err()})
			continue
		}
		outcomes = append(outcomes, p.Publish(ctx, page))
	}
	return outcomes
}

func (p *Publisher) publish(ctx context.Context, page models.WikiPage) Outcome {
	out := Outcome{Page: page.Name, Status: StatusFailed}

	tmp, err := os.MkdirTemp(p.cfg.WorkDir, "cra-wiki-")
	if err != nil {
		out.Err = models.NewError(models.KindIO, "create working directory", err)
		return out
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			slog.Warn("failed to remove working copy", "dir", tmp, "error", err)
		}
	}()

	// Clone into a child so git sees a non-existent target.
	dir := filepath.Join(tmp, "wiki")

	if err := p.repo.Clone(ctx, p.cfg.Remote, dir); err != nil {
		out.Err = err
		return out
	}
	if err := p.repo.WriteFile(ctx, dir, page.Filename(), page.Body); err != nil {
		out.Err = err
		return out
	}

	changed, err := p.repo.Diff(ctx, dir)
	if err != nil {
		out.Err = err
		return out
	}
	if !changed {
		out.Status = StatusUnchanged
		return out
	}

	message := page.Message
	if message == "" {
		message = DefaultMessage(page.Name)
	}
	if err := p.repo.Commit(ctx, dir, message, p.cfg.Author); err != nil {
		out.Err = err
		return out
	}
	if err := p.repo.Push(ctx, dir); err != nil {
		out.Err = err
		return out
	}

	out.Status = StatusPublished
	return out
}

func (p *Publisher) file(ctx context.Context, page models.WikiPage, out *Outcome) {
	if p.fallback == nil {
		return
	}

	url, err := p.fallback.File(ctx, page, out.Err)
	if err != nil {
		slog.Error("issue fallback failed", "page", page.Name, "error", err)
		return
	}
	slog.Info("filed issue for unpublished page", "page", page.Name, "url", url)
	out.IssueURL = url
}

// Counts returns the number of outcomes per status and how many failures were filed.
func Counts(outcomes []Outcome) (published, unchanged, failed, filed int) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusPublished:
			published++
		case StatusUnchanged:
			unchanged++
		default:
			failed++
			if o.IssueURL != "" {
				filed++
			}
		}
	}
	return published, unchanged, failed, filed
}
