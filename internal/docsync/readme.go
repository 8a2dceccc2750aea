package docsync

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const readmeIntro = `This directory contains automatically downloaded official documents related to the EU Cyber Resilience Act.

## Document Categories

### Regulations
Official regulatory texts and legal documents.

### Assessments
Impact assessments and analysis documents.

### Guidance
Implementation guidance and best practice documents.

### Standards
Referenced standards and technical specifications.

## Available Documents

`

const readmeNotes = `

## Verification

All documents include SHA256 checksums for integrity verification. See ` + "`index.json`" + ` for detailed metadata.

## Usage Notes

- Documents are automatically updated daily
- Check the status column for the latest download information
- All documents are official sources from EU institutions
- For the most current versions, always verify against official EU sources

## Legal Notice

These documents are reproduced for compliance and educational purposes. All rights remain with the original publishers. For official legal interpretation, always consult the original sources.
`

// RenderReadme renders the human-readable listing of the documents that are present on disk.
func RenderReadme(m *Manifest) string {
	var b strings.Builder

	b.WriteString("# Official CRA Documents\n\n")
	fmt.Fprintf(&b, "*Last updated: %s*\n\n", m.LastUpdated.UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString(readmeIntro)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Document", "Type", "Size", "Last Updated", "Status"})
	for _, r := range m.Documents {
		if !r.Succeeded() {
			continue
		}
		// Links are relative to the README, which lives in the base directory.
		link := filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(r.Path)), r.Filename))
		t.AppendRow(table.Row{
			fmt.Sprintf("[%s](%s)", r.Filename, link),
			r.Category,
			fmt.Sprintf("%.2f MB", float64(r.Size)/(1024*1024)),
			r.Timestamp.Format("2006-01-02"),
			string(r.Status),
		})
	}
	b.WriteString(t.RenderMarkdown())
	b.WriteString(readmeNotes)

	return b.String()
}
