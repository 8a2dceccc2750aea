package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DownloadStatus is the outcome of a single document download.
type DownloadStatus string

const (
	StatusDownloaded DownloadStatus = "downloaded"
	StatusUnchanged  DownloadStatus = "unchanged"
	StatusError      DownloadStatus = "error"
)

// DocumentDescriptor identifies one remote document to keep in sync.
type DocumentDescriptor struct {
	ID       string `mapstructure:"id" json:"id"`
	URL      string `mapstructure:"url" json:"url"`
	Filename string `mapstructure:"filename" json:"filename"`
	Title    string `mapstructure:"title" json:"title"`
	Category string `mapstructure:"category" json:"category"`
}

// Subfolder returns the directory a document of this category is stored in.
func (d DocumentDescriptor) Subfolder() string {
	switch d.Category {
	case "regulation":
		return "regulations"
	case "assessment":
		return "assessments"
	case "guidance":
		return "guidance"
	default:
		return "standards"
	}
}

// DownloadResult records what happened to one descriptor during a run.
type DownloadResult struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Path        string         `json:"path,omitempty"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Category    string         `json:"type"`
	Status      DownloadStatus `json:"status"`
	Hash        string         `json:"hash,omitempty"`
	Size        int64          `json:"size"`
	ContentKind string         `json:"content_kind,omitempty"`
	Timestamp   time.Time      `json:"last_updated"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
}

// Succeeded reports whether the document is present on disk after the run.
func (r DownloadResult) Succeeded() bool {
	return r.Status == StatusDownloaded || r.Status == StatusUnchanged
}

// ContentHash returns the hex-encoded SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateDocumentID creates a deterministic ID from a URL or any other key.
// The ID is a SHA-256 hash (first 16 chars) of the key.
func GenerateDocumentID(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])[:16]
}
