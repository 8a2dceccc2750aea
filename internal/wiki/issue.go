package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// IssueConfig holds the GitHub issue fallback configuration.
type IssueConfig struct {
	APIURL string // default: https://api.github.com
	Owner  string
	Repo   string
	Token  string
	Labels []string
}

// IssueSink files unpublished pages as GitHub issues.
type IssueSink struct {
	cfg        IssueConfig
	httpClient *http.Client
}

// NewIssueSink creates a new IssueSink.
func NewIssueSink(cfg IssueConfig) *IssueSink {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	return &IssueSink{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type issueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type issueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// File opens an issue carrying the page body and returns its URL.
func (s *IssueSink) File(ctx context.Context, page models.WikiPage, cause error) (string, error) {
	body := fmt.Sprintf("The wiki page `%s` could not be published automatically.\n\n", page.Name)
	if cause != nil {
		body += fmt.Sprintf("Error: `%s`\n\n", cause)
	}
	body += "<details><summary>Page content</summary>\n\n" + page.Body + "\n\n</details>\n"

	payload, err := json.Marshal(issueRequest{
		Title:  fmt.Sprintf("Wiki update pending: %s", page.Name),
		Body:   body,
		Labels: s.cfg.Labels,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal issue: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", strings.TrimSuffix(s.cfg.APIURL, "/"), s.cfg.Owner, s.cfg.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", models.NewError(models.KindFetch, "build issue request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", models.NewError(models.KindFetch, "create issue", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", models.NewError(models.KindFetch, "create issue", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var created issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode issue response: %w", err)
	}
	return created.HTMLURL, nil
}
