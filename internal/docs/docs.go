// Package docs walks the documentation directory and builds the ordered
// document tree that reconciliation diffs against the navigation table.
package docs

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// IndexFile is the distinguished document that becomes the index topic body.
const IndexFile = "index.md"

// orderPrefixRe matches an explicit ordering prefix such as "01-" or "3_".
var orderPrefixRe = regexp.MustCompile(`^\d+[-_]`)

// nonAlnumRe collapses anything that is not a letter or digit.
var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// Tree is the scanned local state: the index body plus every document and
// directory grouping in document order.
type Tree struct {
	// IndexContent is the body of the root index.md, empty when absent.
	IndexContent string

	// Docs holds files and directory groupings in document order. The
	// index file is excluded; it is the synthesized root, not a leaf.
	Docs []models.Document
}

// Read scans the docs directory into a Tree. Ordering is lexicographic by
// on-disk path; a numeric "NN-" file or directory prefix pins an explicit
// order and is stripped from identity paths and display titles.
//
// Any unreadable file fails the scan: the diff must be computed against a
// complete tree, so there is no partial result.
func Read(store storage.Provider) (*Tree, error) {
	metas, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("docs: scan: %w", err)
	}

	tree := &Tree{}
	seenPaths := make(map[string]string) // table path -> file path
	seenDirs := make(map[string]bool)

	for _, meta := range metas {
		if meta.Path == IndexFile {
			data, err := store.Read(meta.Path)
			if err != nil {
				return nil, fmt.Errorf("docs: read index: %w", err)
			}
			tree.IndexContent = string(data)
			continue
		}

		parts := strings.Split(meta.Path, "/")

		// Emit a grouping row for every not-yet-seen ancestor directory.
		for i := 1; i < len(parts); i++ {
			dir := path.Join(parts[:i]...)
			if seenDirs[dir] {
				continue
			}
			seenDirs[dir] = true
			tablePath := tablePathFor(parts[:i])
			if prev, ok := seenPaths[tablePath]; ok {
				// A sibling file named after the directory carries the
				// grouping's own content; its row covers the directory.
				if prev == dir+".md" {
					continue
				}
				return nil, fmt.Errorf("docs: %s and %s share table path %q", prev, dir, tablePath)
			}
			seenPaths[tablePath] = dir
			tree.Docs = append(tree.Docs, models.Document{
				TablePath: tablePath,
				Level:     i,
				Title:     titleFromName(parts[i-1]),
			})
		}

		data, err := store.Read(meta.Path)
		if err != nil {
			return nil, fmt.Errorf("docs: read %s: %w", meta.Path, err)
		}
		doc, err := buildDocument(meta.Path, data)
		if err != nil {
			return nil, err
		}
		if prev, ok := seenPaths[doc.TablePath]; ok {
			return nil, fmt.Errorf("docs: %s and %s share table path %q", prev, meta.Path, doc.TablePath)
		}
		seenPaths[doc.TablePath] = meta.Path
		tree.Docs = append(tree.Docs, doc)
	}

	return tree, nil
}

// buildDocument parses one markdown file into a Document.
func buildDocument(filePath string, data []byte) (models.Document, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return models.Document{}, fmt.Errorf("docs: parse %s: %w", filePath, err)
	}

	parts := strings.Split(filePath, "/")
	stem := strings.TrimSuffix(parts[len(parts)-1], ".md")

	title := res.Title
	if title == "" {
		title = titleFromName(stem)
	}

	components := append(append([]string{}, parts[:len(parts)-1]...), stem)
	return models.Document{
		FilePath:  filePath,
		TablePath: tablePathFor(components),
		Level:     len(parts),
		Title:     title,
		Content:   string(data),
		Checksum:  checksum.Fingerprint(string(data)),
	}, nil
}

// tablePathFor joins normalized path components into a table identity key,
// e.g. ["tutorials", "01-getting-started"] -> "tutorials-getting-started".
func tablePathFor(components []string) string {
	out := make([]string, 0, len(components))
	for _, c := range components {
		c = strings.TrimSuffix(c, ".md")
		c = orderPrefixRe.ReplaceAllString(c, "")
		c = strings.ToLower(c)
		c = nonAlnumRe.ReplaceAllString(c, "-")
		c = strings.Trim(c, "-")
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, "-")
}

// titleFromName derives a display title from a file or directory name:
// ordering prefix stripped, separators to spaces, words capitalized.
func titleFromName(name string) string {
	name = strings.TrimSuffix(name, ".md")
	name = orderPrefixRe.ReplaceAllString(name, "")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
