package metadata

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMetadata(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRead(t *testing.T) {
	dir := writeMetadata(t, "name: my-project\ndocs: https://forum.example.com/t/overview/12\n")
	m, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.Name != "my-project" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Docs != "https://forum.example.com/t/overview/12" {
		t.Errorf("Docs = %q", m.Docs)
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := Read(t.TempDir()); err == nil {
		t.Error("expected error for missing metadata.yaml")
	}
}

func TestRead_MissingName(t *testing.T) {
	dir := writeMetadata(t, "docs: https://forum.example.com/t/overview/12\n")
	if _, err := Read(dir); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestRead_Malformed(t *testing.T) {
	dir := writeMetadata(t, "name: [unclosed\n")
	if _, err := Read(dir); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestIndexTitle(t *testing.T) {
	m := Metadata{Name: "my-project"}
	if got := m.IndexTitle(); got != "My Project Documentation Overview" {
		t.Errorf("IndexTitle = %q", got)
	}
}
