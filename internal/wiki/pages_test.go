package wiki

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cra-hub/cra-sync/pkg/models"
)

func writePage(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadPages(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "Home.md", "# CRA Compliance Hub\n")
	writePage(t, dir, "faq.md", "---\npage: FAQ\nmessage: Refresh FAQ\n---\n# FAQ\n")
	writePage(t, dir, "notes.txt", "ignored")

	pages, err := LoadPages(dir)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "Home", pages[0].Name)
	assert.Equal(t, "# CRA Compliance Hub\n", pages[0].Body)
	assert.Empty(t, pages[0].Message)

	assert.Equal(t, "FAQ", pages[1].Name)
	assert.Equal(t, "Refresh FAQ", pages[1].Message)
	assert.Equal(t, "# FAQ\n", pages[1].Body)
}

func TestLoadPage_RejectsHTML(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "Broken.md", "\n<!DOCTYPE html><html><body>Sign in</body></html>")

	_, err := LoadPage(filepath.Join(dir, "Broken.md"))
	assert.ErrorIs(t, err, ErrHTMLPage)
}

func TestLoadPage_InvalidFrontMatter(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "Bad.md", "---\npage: [unclosed\n---\nbody")

	_, err := LoadPage(filepath.Join(dir, "Bad.md"))
	assert.Error(t, err)
}

func TestLoadPage_HorizontalRuleIsNotFrontMatter(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "Rule.md", "# Title\n\n---\n\ntext\n")

	page, err := LoadPage(filepath.Join(dir, "Rule.md"))
	require.NoError(t, err)
	assert.Equal(t, "Rule", page.Name)
	assert.Equal(t, "# Title\n\n---\n\ntext\n", page.Body)
}

func TestLoadPage_RejectsPathInPageName(t *testing.T) {
	for _, name := range []string{"../../x", "sub/Page", `..\Page`, ".."} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writePage(t, dir, "Escape.md", "---\npage: '"+name+"'\n---\nbody\n")

			_, err := LoadPage(filepath.Join(dir, "Escape.md"))
			assert.ErrorIs(t, err, ErrInvalidPageName)
			assert.Equal(t, models.KindConfig, models.KindOf(err))
		})
	}
}

func TestCheckPageName(t *testing.T) {
	assert.NoError(t, CheckPageName("Latest-News"))
	assert.NoError(t, CheckPageName("CRA..Notes"))
	assert.ErrorIs(t, CheckPageName(""), ErrInvalidPageName)
	assert.ErrorIs(t, CheckPageName("."), ErrInvalidPageName)
	assert.ErrorIs(t, CheckPageName("a/b"), ErrInvalidPageName)
}
