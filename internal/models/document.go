// Package models defines the domain types for Ansuz.
package models

// Document is one node of the local documentation tree in document order:
// a markdown file (leaf) or a directory grouping (no content). The index
// file itself is never a Document; it becomes the body of the index topic.
type Document struct {
	// FilePath is the path relative to the docs root, forward slashes.
	// Empty for directory groupings that have no file of their own.
	FilePath string `json:"file_path,omitempty"`

	// TablePath is the identity key used in the navigation table. Titles
	// are for display only; TablePath disambiguates duplicate titles.
	TablePath string `json:"table_path"`

	// Level is the nesting depth, 1 for entries directly under the root.
	Level int `json:"level"`

	// Title is taken from frontmatter, else the first H1, else the file name.
	Title string `json:"title"`

	// Content is the raw markdown body. Empty for directory groupings.
	Content string `json:"-"`

	// Checksum is the whitespace-normalized content fingerprint.
	Checksum string `json:"checksum,omitempty"`
}

// IsGroup reports whether the document is a directory grouping without
// content of its own. Groupings get a navigation row but no topic.
func (d Document) IsGroup() bool {
	return d.Content == ""
}

// Index is the distinguished root document whose topic carries the
// navigation table.
type Index struct {
	// URL of the existing index topic; empty when none exists yet.
	URL string

	// Title of the index topic, derived from the project name.
	Title string

	// Content is the local index document body (without navigation table).
	Content string

	// ServerContent is the current body of the remote index topic,
	// including its navigation table. Empty when the topic is new.
	ServerContent string
}
