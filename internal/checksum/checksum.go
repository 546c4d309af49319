// Package checksum computes content fingerprints for documents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint returns the hex-encoded SHA-256 digest of content after
// whitespace normalization. Two documents that differ only in line endings,
// trailing spaces, or blank-line runs share a fingerprint, so re-running a
// sync with cosmetically reformatted content never triggers an update.
// Any other change to the content changes the fingerprint.
func Fingerprint(content string) string {
	return Sum([]byte(Normalize(content)))
}

// Normalize collapses whitespace: CRLF to LF, trailing whitespace stripped
// per line, runs of blank lines collapsed to one, and no trailing newline.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
