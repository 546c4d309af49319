// Package testutil provides shared test helpers for setting up docs trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/storage"
)

// TestDocs creates a temporary docs directory with a storage.Provider.
func TestDocs(t *testing.T) (string, storage.Provider) {
	t.Helper()
	docsDir := t.TempDir()
	store, err := storage.NewFS(docsDir)
	if err != nil {
		t.Fatal(err)
	}
	return docsDir, store
}

// WriteFile writes content at rel under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteMetadata writes a metadata.yaml naming the project at dir, optionally
// pointing at an existing index topic.
func WriteMetadata(t *testing.T, dir, name, docsURL string) {
	t.Helper()
	content := "name: " + name + "\n"
	if docsURL != "" {
		content += "docs: " + docsURL + "\n"
	}
	WriteFile(t, dir, "metadata.yaml", content)
}
