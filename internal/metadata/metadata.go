// Package metadata reads the project metadata file that names the
// documentation set and points at an existing index topic.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the base path next to the docs directory.
const FileName = "metadata.yaml"

// Metadata describes the documentation set being published.
type Metadata struct {
	// Name of the project; used to derive the index topic title.
	Name string `yaml:"name"`
	// Docs is the URL of an existing index topic, empty on first publish.
	Docs string `yaml:"docs"`
}

// IndexTitle returns the title for the index topic,
// e.g. "ansuz" -> "Ansuz Documentation Overview".
func (m Metadata) IndexTitle() string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(m.Name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ") + " Documentation Overview"
}

// Read loads and validates metadata.yaml from basePath. A missing file,
// unparsable YAML, or empty name is a fatal input error: without a name the
// index topic cannot be addressed.
func Read(basePath string) (Metadata, error) {
	p := filepath.Join(basePath, FileName)
	data, err := os.ReadFile(p)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: read %s: %w", p, err)
	}

	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("metadata: parse %s: %w", p, err)
	}
	if strings.TrimSpace(m.Name) == "" {
		return Metadata{}, fmt.Errorf("metadata: %s is missing the required name key", p)
	}
	return m, nil
}
