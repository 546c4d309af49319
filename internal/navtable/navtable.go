// Package navtable parses and serializes the navigation table embedded in
// the body of the index topic. The table is the sole persisted mapping from
// local table paths to remote topic URLs, so its textual form must survive
// a parse/serialize round trip unchanged.
package navtable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// Marker lines delimiting the navigation section inside the index body.
const (
	SectionHeading = "# Navigation"
	tableHeader    = "| Level | Path | Navlink |"
	tableDivider   = "|-------|------|---------|"
)

// Row is one entry of the navigation table. An empty Link marks a row whose
// topic does not exist: directory groupings and not-yet-created documents.
type Row struct {
	Level int    `json:"level"`
	Path  string `json:"path"`
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}

// rowRe matches one serialized table row: | level | path | [title](link) |.
var rowRe = regexp.MustCompile(`^\|\s*(\d+)\s*\|\s*([a-z0-9-]+)\s*\|\s*\[(.*)\]\((.*)\)\s*\|$`)

// Parse extracts the navigation rows from an index topic body.
//
// A body without a navigation section yields (nil, nil): no prior
// documentation exists. A section whose rows cannot be parsed unambiguously
// yields an error wrapping apperr.ErrMalformedTable; callers log it and
// proceed as if no prior navigation existed.
func Parse(body string) ([]Row, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	inSection := false
	inTable := false
	var rows []Row
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == SectionHeading:
			inSection = true
		case inSection && !inTable:
			if strings.HasPrefix(trimmed, "|") {
				if trimmed != tableHeader {
					return nil, fmt.Errorf("navtable: unexpected header %q: %w", trimmed, apperr.ErrMalformedTable)
				}
				inTable = true
			}
		case inTable:
			if !strings.HasPrefix(trimmed, "|") {
				if trimmed == "" {
					continue
				}
				// Table ended; anything after it is regular body text.
				inTable = false
				inSection = false
				continue
			}
			if strings.HasPrefix(trimmed, "|-") {
				continue
			}
			row, err := parseRow(trimmed)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func parseRow(line string) (Row, error) {
	m := rowRe.FindStringSubmatch(line)
	if m == nil {
		return Row{}, fmt.Errorf("navtable: row %q: %w", line, apperr.ErrMalformedTable)
	}
	level, err := strconv.Atoi(m[1])
	if err != nil || level < 1 {
		return Row{}, fmt.Errorf("navtable: level in row %q: %w", line, apperr.ErrMalformedTable)
	}
	return Row{Level: level, Path: m[2], Title: m[3], Link: m[4]}, nil
}

// Serialize renders rows as the canonical navigation section. The output is
// deterministic: serializing the result of Parse reproduces it byte for byte.
func Serialize(rows []Row) string {
	var b strings.Builder
	b.WriteString(SectionHeading)
	b.WriteString("\n\n")
	b.WriteString(tableHeader)
	b.WriteString("\n")
	b.WriteString(tableDivider)
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %d | %s | [%s](%s) |\n", r.Level, r.Path, r.Title, r.Link)
	}
	return b.String()
}
