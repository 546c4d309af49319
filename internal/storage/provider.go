// Package storage defines the docs directory file-system abstraction.
package storage

// FileMeta is a lightweight record for one file found under the docs root.
type FileMeta struct {
	// Path relative to the docs root, forward slashes, sorted lexicographically.
	Path string
	// Checksum is the raw (non-normalized) content digest, used to detect
	// on-disk changes between watch cycles.
	Checksum string
}

// Provider is the interface for reading the documentation directory.
type Provider interface {
	// List returns metadata for every .md file under the root in
	// deterministic lexicographic order.
	List() ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Root returns the absolute path of the docs root.
	Root() string
}
