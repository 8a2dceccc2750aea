package content

import (
	"bytes"
	"net/http"
	"regexp"
	"strings"
)

// Kind is the sniffed type of a downloaded body.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
	KindOther    Kind = "other"
)

var (
	headerPattern = regexp.MustCompile(`^#{1,6}\s+\S`)
	listPattern   = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	linkPattern   = regexp.MustCompile(`\[.+?\]\(.+?\)`)
)

// Sniff classifies a response body. PDF magic bytes win over the declared content type,
// since the EU document portals answer some expired links with an HTML landing page.
func Sniff(contentType string, body []byte) Kind {
	if bytes.HasPrefix(body, []byte("%PDF-")) {
		return KindPDF
	}

	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	if LooksLikeHTML(string(bytes.TrimSpace(head))) {
		return KindHTML
	}

	if contentType == "" {
		contentType = http.DetectContentType(head)
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return KindPDF
	case strings.HasPrefix(ct, "text/html"):
		return KindHTML
	case IsMarkdownContentType(ct):
		return KindMarkdown
	}

	return KindOther
}

// IsMarkdownContentType checks if the Content-Type header indicates markdown.
func IsMarkdownContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/markdown") ||
		strings.HasPrefix(ct, "text/x-markdown")
}

// IsMarkdownContent uses heuristics to detect if content is markdown.
func IsMarkdownContent(content string) bool {
	if content == "" {
		return false
	}

	trimmed := strings.TrimSpace(content)

	if LooksLikeHTML(trimmed) {
		return false
	}

	return hasMarkdownPatterns(trimmed)
}

// LooksLikeHTML checks if content appears to be an HTML document.
func LooksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body")
}

// hasMarkdownPatterns checks for common markdown syntax.
func hasMarkdownPatterns(content string) bool {
	return headerPattern.MatchString(content) ||
		listPattern.MatchString(content) ||
		linkPattern.MatchString(content)
}
