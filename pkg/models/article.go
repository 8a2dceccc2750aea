package models

import "time"

// NewsArticle is a single news entry that passed the keyword and date filters.
type NewsArticle struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
	Date      string    `json:"date"`      // YYYY-MM-DD, kept for consumers of the old feed format
	DateKnown bool      `json:"date_known"` // false when the source gave no parseable date
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
}

// NewArticle fills the derived fields of an article.
func NewArticle(title, link string, published time.Time, dateKnown bool, summary, source string) NewsArticle {
	key := link
	if key == "" {
		key = title
	}
	return NewsArticle{
		ID:        GenerateDocumentID(key),
		Title:     title,
		Link:      link,
		Published: published,
		Date:      published.Format("2006-01-02"),
		DateKnown: dateKnown,
		Summary:   summary,
		Source:    source,
	}
}

// WikiPage is a Markdown page about to be published to the wiki.
type WikiPage struct {
	Name    string
	Body    string
	Message string
}

// Filename is the file the page is stored under in the wiki repository.
func (p WikiPage) Filename() string {
	return p.Name + ".md"
}
