package docs

import (
	"testing"

	"github.com/starford/ansuz/internal/testutil"
)

func scanDocs(t *testing.T, files map[string]string) (*Tree, error) {
	t.Helper()
	dir, store := testutil.TestDocs(t)
	for rel, content := range files {
		testutil.WriteFile(t, dir, rel, content)
	}
	return Read(store)
}

func TestRead_FlatTree(t *testing.T) {
	tree, err := scanDocs(t, map[string]string{
		"index.md":        "# Overview\nWelcome.\n",
		"01-intro.md":     "# Introduction\nHello.\n",
		"02-usage.md":     "usage body without heading\n",
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tree.IndexContent != "# Overview\nWelcome.\n" {
		t.Errorf("IndexContent = %q", tree.IndexContent)
	}
	if len(tree.Docs) != 2 {
		t.Fatalf("len(Docs) = %d, want 2", len(tree.Docs))
	}
	if tree.Docs[0].TablePath != "intro" || tree.Docs[0].Title != "Introduction" {
		t.Errorf("doc 0 = %+v", tree.Docs[0])
	}
	if tree.Docs[1].TablePath != "usage" || tree.Docs[1].Title != "Usage" {
		t.Errorf("doc 1 = %+v", tree.Docs[1])
	}
	if tree.Docs[0].Level != 1 || tree.Docs[1].Level != 1 {
		t.Errorf("levels = %d, %d, want 1, 1", tree.Docs[0].Level, tree.Docs[1].Level)
	}
}

func TestRead_NestedDirectories(t *testing.T) {
	tree, err := scanDocs(t, map[string]string{
		"tutorials/01-getting-started.md": "# Getting Started\n",
		"reference.md":                    "# Reference\n",
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// Document order: reference.md, tutorials (group), tutorials/01-getting-started.md.
	want := []struct {
		tablePath string
		level     int
		group     bool
	}{
		{"reference", 1, false},
		{"tutorials", 1, true},
		{"tutorials-getting-started", 2, false},
	}
	if len(tree.Docs) != len(want) {
		t.Fatalf("len(Docs) = %d, want %d: %+v", len(tree.Docs), len(want), tree.Docs)
	}
	for i, w := range want {
		d := tree.Docs[i]
		if d.TablePath != w.tablePath || d.Level != w.level || d.IsGroup() != w.group {
			t.Errorf("doc %d = %+v, want %+v", i, d, w)
		}
	}
}

func TestRead_DirectoryWithOwnContent(t *testing.T) {
	tree, err := scanDocs(t, map[string]string{
		"guides.md":          "# Guides\nAbout the guides.\n",
		"guides/install.md":  "# Install\n",
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tree.Docs) != 2 {
		t.Fatalf("len(Docs) = %d, want 2: %+v", len(tree.Docs), tree.Docs)
	}
	if tree.Docs[0].TablePath != "guides" || tree.Docs[0].IsGroup() {
		t.Errorf("doc 0 = %+v, want content-carrying guides row", tree.Docs[0])
	}
	if tree.Docs[1].TablePath != "guides-install" || tree.Docs[1].Level != 2 {
		t.Errorf("doc 1 = %+v", tree.Docs[1])
	}
}

func TestRead_DuplicateTablePath(t *testing.T) {
	_, err := scanDocs(t, map[string]string{
		"getting started.md": "# A\n",
		"getting-started.md": "# B\n",
	})
	if err == nil {
		t.Fatal("expected duplicate table path error")
	}
}

func TestRead_StableChecksums(t *testing.T) {
	files := map[string]string{"doc.md": "# Doc\n\nBody.\n"}
	a, err := scanDocs(t, files)
	if err != nil {
		t.Fatal(err)
	}
	b, err := scanDocs(t, map[string]string{"doc.md": "# Doc\r\n\r\nBody.\r\n"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Docs[0].Checksum != b.Docs[0].Checksum {
		t.Error("whitespace-only difference changed the checksum")
	}
}
