// Package docsync keeps a local copy of the official CRA documents in step with their sources.
package docsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cra-hub/cra-sync/internal/content"
	"github.com/cra-hub/cra-sync/internal/processor"
	"github.com/cra-hub/cra-sync/pkg/models"
)

// Output files written to the base directory.
const (
	ManifestFile = "index.json"
	ReadmeFile   = "README.md"
)

// maxDocumentBytes caps a single document download.
const maxDocumentBytes = 200 << 20

// Subfolders is the fixed set of category directories created on every run.
var Subfolders = []string{"regulations", "assessments", "guidance", "standards"}

// Config holds synchronizer configuration.
type Config struct {
	Dir       string
	Timeout   time.Duration // default: 30s
	UserAgent string
	Documents []models.DocumentDescriptor
}

// Mirror receives copies of every file the synchronizer writes.
type Mirror interface {
	Put(ctx context.Context, prefix, name string, data []byte, contentType string) error
}

// Manifest is the machine-readable summary written to index.json.
type Manifest struct {
	LastUpdated    time.Time               `json:"last_updated"`
	RunID          string                  `json:"run_id"`
	Documents      []models.DownloadResult `json:"documents"`
	TotalDocuments int                     `json:"total_documents"`
	TotalSizeBytes int64                   `json:"total_size_bytes"`
}

// Counts returns how many results ended in each status.
func (m *Manifest) Counts() (downloaded, unchanged, failed int) {
	for _, r := range m.Documents {
		switch r.Status {
		case models.StatusDownloaded:
			downloaded++
		case models.StatusUnchanged:
			unchanged++
		default:
			failed++
		}
	}
	return downloaded, unchanged, failed
}

// Synchronizer downloads the configured documents and maintains the manifest.
type Synchronizer struct {
	cfg          Config
	httpClient   *http.Client
	mirror       Mirror
	mirrorPrefix func(startedAt time.Time, runID string) string
	processor    *processor.Processor
	now          func() time.Time
	maxBytes     int64
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synchronizer) { s.httpClient = c }
}

// WithMirror uploads every written file under the prefix returned by prefix.
func WithMirror(m Mirror, prefix func(startedAt time.Time, runID string) string) Option {
	return func(s *Synchronizer) {
		s.mirror = m
		s.mirrorPrefix = prefix
	}
}

// WithClock sets the time source used for result and manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// New creates a new Synchronizer.
func New(cfg Config, opts ...Option) *Synchronizer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Synchronizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		processor:  processor.New(),
		now:        time.Now,
		maxBytes:   maxDocumentBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run downloads every document in order, then writes index.json and README.md.
// Per-document failures are recorded in the manifest; only directory and output
// file failures abort the run.
func (s *Synchronizer) Run(ctx context.Context) (*Manifest, error) {
	startedAt := s.now()
	runID := uuid.New().String()

	slog.Info("starting document sync", "run_id", runID, "documents", len(s.cfg.Documents), "dir", s.cfg.Dir)

	if err := s.createDirectories(); err != nil {
		return nil, err
	}

	var prefix string
	if s.mirror != nil {
		prefix = s.mirrorPrefix(startedAt, runID)
	}

	results := make([]models.DownloadResult, 0, len(s.cfg.Documents))
	for _, doc := range s.cfg.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, body := s.syncDocument(ctx, doc)
		results = append(results, result)

		if result.Status == models.StatusDownloaded && s.mirror != nil {
			s.mirrorFile(ctx, prefix, doc.Subfolder()+"/"+doc.Filename, body, "application/octet-stream")
		}
	}

	manifest := BuildManifest(results, startedAt, runID)

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeOutput(filepath.Join(s.cfg.Dir, ManifestFile), manifestData); err != nil {
		return nil, err
	}

	readme := []byte(RenderReadme(manifest))
	if err := writeOutput(filepath.Join(s.cfg.Dir, ReadmeFile), readme); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.mirrorFile(ctx, prefix, ManifestFile, manifestData, "application/json")
		s.mirrorFile(ctx, prefix, ReadmeFile, readme, "text/markdown")
	}

	slog.Info("document sync completed",
		"run_id", runID,
		"successful", manifest.TotalDocuments,
		"total", len(results),
	)

	return manifest, nil
}

// BuildManifest totals the successful results of a run.
func BuildManifest(results []models.DownloadResult, updated time.Time, runID string) *Manifest {
	m := &Manifest{
		LastUpdated: updated,
		RunID:       runID,
		Documents:   results,
	}
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		m.TotalDocuments++
		m.TotalSizeBytes += r.Size
	}
	return m
}

func (s *Synchronizer) createDirectories() error {
	for _, sub := range Subfolders {
		dir := filepath.Join(s.cfg.Dir, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.NewError(models.KindIO, "create directory "+dir, err)
		}
	}
	return nil
}

func (s *Synchronizer) syncDocument(ctx context.Context, doc models.DocumentDescriptor) (models.DownloadResult, []byte) {
	target := filepath.Join(s.cfg.Dir, doc.Subfolder(), doc.Filename)

	result := models.DownloadResult{
		ID:       doc.ID,
		Filename: doc.Filename,
		Path:     target,
		Title:    doc.Title,
		URL:      doc.URL,
		Category: doc.Category,
	}

	body, contentType, err := s.fetch(ctx, doc.URL)
	if err != nil {
		return s.failed(result, err), nil
	}

	result.Hash = models.ContentHash(body)
	result.Size = int64(len(body))
	result.ContentKind = string(content.Sniff(contentType, body))

	if strings.HasSuffix(strings.ToLower(doc.Filename), ".pdf") && result.ContentKind == string(content.KindHTML) {
		slog.Warn("expected a PDF but received HTML",
			"filename", doc.Filename,
			"url", doc.URL,
			"page_title", s.processor.ExtractTitle(string(body)))
	}

	existing, err := os.ReadFile(target)
	if err == nil && models.ContentHash(existing) == result.Hash {
		slog.Debug("document unchanged", "filename", doc.Filename)
		result.Status = models.StatusUnchanged
		result.Timestamp = s.now()
		return result, body
	}

	if err := os.WriteFile(target, body, 0o644); err != nil {
		return s.failed(result, models.NewError(models.KindIO, "write "+target, err)), nil
	}

	slog.Info("document downloaded", "filename", doc.Filename, "bytes", len(body))
	result.Status = models.StatusDownloaded
	result.Timestamp = s.now()
	return result, body
}

func (s *Synchronizer) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", models.NewError(models.KindFetch, "build request", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", models.NewError(models.KindFetch, "fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", models.NewError(models.KindFetch, "fetch "+url, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", models.NewError(models.KindFetch, "read "+url, err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, "", models.NewError(models.KindFetch, "read "+url, fmt.Errorf("document exceeds %d bytes", s.maxBytes))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (s *Synchronizer) failed(result models.DownloadResult, err error) models.DownloadResult {
	slog.Warn("document sync failed", "filename", result.Filename, "error", err)

	result.Status = models.StatusError
	result.Error = err.Error()
	result.ErrorKind = models.KindOf(err)
	if result.ErrorKind == "" {
		result.ErrorKind = models.KindFetch
	}
	result.Hash = ""
	result.Size = 0
	result.Timestamp = s.now()
	return result
}

func (s *Synchronizer) mirrorFile(ctx context.Context, prefix, name string, data []byte, contentType string) {
	if err := s.mirror.Put(ctx, prefix, name, data, contentType); err != nil {
		slog.Warn("failed to mirror file", "name", name, "error", err)
	}
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.NewError(models.KindIO, "write "+path, err)
	}
	return nil
}

// LoadManifest reads a previously written index.json.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no manifest in %s, run the docs command first: %w", dir, err)
		}
		return nil, models.NewError(models.KindIO, "read manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
