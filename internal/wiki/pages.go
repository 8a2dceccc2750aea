package wiki

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cra-hub/cra-sync/internal/content"
	"github.com/cra-hub/cra-sync/pkg/models"
)

// ErrHTMLPage is returned for page files that contain an HTML document instead of Markdown.
var ErrHTMLPage = errors.New("page file contains HTML, not Markdown")

// ErrInvalidPageName is returned for page names that are not a single file name.
var ErrInvalidPageName = errors.New("invalid page name")

var frontMatterDelim = []byte("---")

// frontMatter is the optional YAML header of a page file.
type frontMatter struct {
	Page    string `yaml:"page"`
	Message string `yaml:"message"`
}

// LoadPages reads every *.md file in dir, sorted by file name. The page name
// defaults to the file name without extension.
func LoadPages(dir string) ([]models.WikiPage, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	sort.Strings(paths)

	pages := make([]models.WikiPage, 0, len(paths))
	for _, path := range paths {
		page, err := LoadPage(path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// LoadPage reads a single page file.
func LoadPage(path string) (models.WikiPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.WikiPage{}, models.NewError(models.KindIO, "read page", err)
	}

	meta, body, err := parseFrontMatter(data)
	if err != nil {
		return models.WikiPage{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if content.LooksLikeHTML(strings.TrimSpace(body)) {
		return models.WikiPage{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrHTMLPage)
	}

	name := meta.Page
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := CheckPageName(name); err != nil {
		return models.WikiPage{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return models.WikiPage{
		Name:    name,
		Body:    body,
		Message: meta.Message,
	}, nil
}

// CheckPageName rejects names that would leave the wiki root once written as
// <name>.md: empty names, path separators and dot segments.
func CheckPageName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return models.NewError(models.KindConfig, "check page name", ErrInvalidPageName)
	case strings.ContainsAny(name, `/\`), name == "." || name == "..":
		return models.NewError(models.KindConfig, "check page name", fmt.Errorf("%w: %q", ErrInvalidPageName, name))
	}
	return nil
}

func parseFrontMatter(data []byte) (frontMatter, string, error) {
	var meta frontMatter

	if !bytes.HasPrefix(data, frontMatterDelim) {
		return meta, string(data), nil
	}

	rest := data[len(frontMatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return meta, string(data), nil
	}

	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, "", fmt.Errorf("failed to parse front matter: %w", err)
	}

	body := rest[end+1+len(frontMatterDelim):]
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))
	return meta, string(body), nil
}
