package news

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Filter reports whether text mentions any of a fixed set of keywords, ignoring case.
type Filter struct {
	matcher *ahocorasick.Matcher
	empty   bool
}

// NewFilter builds a Filter for keywords. An empty keyword list matches nothing.
func NewFilter(keywords []string) *Filter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return &Filter{
		matcher: ahocorasick.NewStringMatcher(lowered),
		empty:   len(lowered) == 0,
	}
}

// Matches reports whether text contains at least one keyword as a substring.
func (f *Filter) Matches(text string) bool {
	if f.empty {
		return false
	}
	return f.matcher.Contains([]byte(strings.ToLower(text)))
}
