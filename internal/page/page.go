// Package page reads and writes knowledge-base documents: UTF-8 markdown
// files with an optional leading YAML frontmatter block. Saves always
// replace the whole file via a temp file and rename so an interrupted
// process never leaves a half-edited document behind.
package page

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Page is one document loaded from disk. Frontmatter is kept verbatim so
// a save round-trips byte-for-byte when the body is unchanged.
type Page struct {
	// ID is the path relative to the content root, without extension,
	// using forward slashes. It keys store rows and archive files.
	ID string
	// Path is the absolute file path the page was loaded from.
	Path string
	// Frontmatter is the raw YAML between the --- delimiters, without
	// the delimiters themselves. Empty when the file has none.
	Frontmatter string
	// Body is everything after the frontmatter block.
	Body string
}

// Meta decodes the frontmatter into a generic map. Pages without
// frontmatter yield an empty map.
func (p *Page) Meta() (map[string]any, error) {
	m := map[string]any{}
	if strings.TrimSpace(p.Frontmatter) == "" {
		return m, nil
	}
	if err := yaml.Unmarshal([]byte(p.Frontmatter), &m); err != nil {
		return nil, fmt.Errorf("parse frontmatter for %s: %w", p.ID, err)
	}
	return m, nil
}

// Render produces the full file content: frontmatter block (when present)
// followed by the body.
func (p *Page) Render() string {
	if p.Frontmatter == "" {
		return p.Body
	}
	return "---\n" + strings.TrimRight(p.Frontmatter, "\n") + "\n---\n" + p.Body
}

// Load reads one page from disk. id is derived from path relative to root;
// pass root == "" to use the file name without extension.
func Load(root, path string) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", path, err)
	}
	fm, body := splitFrontmatter(string(raw))
	return &Page{
		ID:          idFor(root, path),
		Path:        path,
		Frontmatter: fm,
		Body:        body,
	}, nil
}

// Save writes the page back to its path atomically: the content is written
// to a temp file in the same directory, then renamed over the original.
func (p *Page) Save() error {
	if p.Path == "" {
		return fmt.Errorf("page %s has no path", p.ID)
	}
	dir := filepath.Dir(p.Path)
	tmp, err := os.CreateTemp(dir, ".page-*.tmp")
	if err != nil {
		return fmt.Errorf("save page %s: %w", p.ID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(p.Render()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save page %s: %w", p.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save page %s: %w", p.ID, err)
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save page %s: %w", p.ID, err)
	}
	return nil
}

// List walks root and returns every markdown page, sorted by ID for
// deterministic batch order.
func List(root string) ([]*Page, error) {
	var pages []*Page
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".md" && ext != ".mdx" {
			return nil
		}
		p, err := Load(root, path)
		if err != nil {
			return err
		}
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pages under %s: %w", root, err)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return pages, nil
}

// splitFrontmatter separates a leading ---...--- block from the body. The
// opening delimiter must be the very first line; anything else means the
// whole input is body.
func splitFrontmatter(content string) (fm, body string) {
	if !strings.HasPrefix(content, "---\n") && content != "---" {
		return "", content
	}
	rest := strings.TrimPrefix(content, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content
	}
	fm = rest[:end]
	body = rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return fm, body
}

func idFor(root, path string) string {
	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	} else {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel)
}
