package processor

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mattn/go-runewidth"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// inlineElements do not separate the words around them.
var inlineElements = map[string]bool{
	"a": true, "abbr": true, "b": true, "code": true, "em": true, "i": true,
	"mark": true, "small": true, "span": true, "strong": true, "sub": true, "sup": true, "u": true,
}

// Processor turns feed and page HTML into Markdown suitable for the digest.
type Processor struct {
	policy *bluemonday.Policy
}

// New creates a new HTML to Markdown processor.
func New() *Processor {
	return &Processor{
		policy: bluemonday.UGCPolicy(),
	}
}

// Convert sanitizes HTML content and transforms it into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(p.policy.Sanitize(htmlContent))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(markdown), nil
}

// Summarize converts an HTML fragment to a single line of Markdown no wider than width
// display columns, followed by "..." when it had to be cut. A width <= 0 disables truncation.
func (p *Processor) Summarize(htmlContent string, width int) string {
	md, err := p.Convert(htmlContent)
	if err != nil {
		// Unconvertible markup still carries useful text.
		md = htmlContent
	}

	md = strings.Join(strings.Fields(md), " ")
	if width <= 0 || runewidth.StringWidth(md) <= width {
		return md
	}

	return strings.TrimSpace(runewidth.Truncate(md, width, "")) + "..."
}

// Text returns the visible text of an HTML fragment on a single line. Markup,
// attribute values and script or style bodies are dropped.
func (p *Processor) Text(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}

	nodes, err := html.ParseFragment(strings.NewReader(htmlContent), &html.Node{
		Type: html.ElementNode,
		Data: "body",
	})
	if err != nil {
		return strings.Join(strings.Fields(htmlContent), " ")
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && !inlineElements[n.Data] {
			b.WriteByte(' ')
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}
