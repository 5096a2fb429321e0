// Package importer reads Jira CSV exports into issue records.
//
// The format is deliberately narrow: a header line followed by data lines,
// fields separated by a single delimiter character. Quoted fields are not
// understood, so a delimiter inside a cell shifts every column after it.
// Jira's "Issue key"/"Issue id"/"Parent"/"Parent key" columns are located by
// name; all other columns are ignored.
package importer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/steveyegge/jparent/internal/types"
)

// Recognized header labels.
const (
	ColumnIssueKey  = "Issue key"
	ColumnIssueID   = "Issue id"
	ColumnParent    = "Parent"
	ColumnParentKey = "Parent key"
)

// DefaultDelimiter separates fields when Options.Delimiter is zero.
const DefaultDelimiter = ','

// Options contains parse configuration
type Options struct {
	Delimiter rune // Field separator (default ',')

	// OnWarning is called for every dropped row, in input order.
	OnWarning func(w RowWarning)
}

// Result contains the records and warnings from one parse.
type Result struct {
	Records  []types.IssueRecord // Well-formed rows, in input order
	Warnings []RowWarning        // Rows that were dropped
	Columns  Columns             // Where each recognized column was found
}

// Columns records the header index of each recognized column (-1 if absent).
type Columns struct {
	Key       int `json:"key"`
	ID        int `json:"id"`
	Parent    int `json:"parent"`
	ParentKey int `json:"parent_key"`
}

// RowWarning describes a data row that was dropped. It is not an error:
// the parse continues past it.
type RowWarning struct {
	Row    int    `json:"row"` // 1-based line number among non-blank lines (header is row 1)
	Reason string `json:"reason"`
}

func (w RowWarning) String() string {
	return fmt.Sprintf("row %d: %s", w.Row, w.Reason)
}

// Warning reasons
const (
	ReasonMalformed      = "malformed row"
	ReasonMissingKeyOrID = "missing key or id"
)

// SchemaError means the export as a whole cannot be used.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "invalid CSV export: " + e.Reason
}

// ParseFile opens path and parses it.
func ParseFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f, opts)
}

// Parse reads an export from r.
func Parse(r io.Reader, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}

	lines := nonBlankLines(string(data))
	if len(lines) < 2 {
		return nil, &SchemaError{Reason: "must contain at least a header and one data row"}
	}

	cols := locateColumns(splitFields(lines[0], delim))
	if cols.Key == -1 || cols.ID == -1 {
		return nil, &SchemaError{Reason: fmt.Sprintf("must contain %q and %q columns", ColumnIssueKey, ColumnIssueID)}
	}

	result := &Result{
		Records: make([]types.IssueRecord, 0, len(lines)-1),
		Columns: cols,
	}
	required := max(cols.Key, cols.ID)

	warn := func(row int, reason string) {
		w := RowWarning{Row: row, Reason: reason}
		result.Warnings = append(result.Warnings, w)
		if opts.OnWarning != nil {
			opts.OnWarning(w)
		}
	}

	for i := 1; i < len(lines); i++ {
		row := splitFields(lines[i], delim)
		if len(row) <= required {
			warn(i+1, ReasonMalformed)
			continue
		}

		key := trimField(row[cols.Key])
		id := trimField(row[cols.ID])
		if key == "" || id == "" {
			warn(i+1, ReasonMissingKeyOrID)
			continue
		}

		result.Records = append(result.Records,
			types.NewIssueRecord(key, id, optionalField(row, cols.Parent), optionalField(row, cols.ParentKey)))
	}

	return result, nil
}

// nonBlankLines splits on '\n' and drops lines that are empty after trimming.
func nonBlankLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if trimField(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func splitFields(line string, delim rune) []string {
	return strings.Split(line, string(delim))
}

// locateColumns finds the first occurrence of each recognized label.
func locateColumns(header []string) Columns {
	cols := Columns{Key: -1, ID: -1, Parent: -1, ParentKey: -1}
	for i, h := range header {
		label := trimField(h)
		switch {
		case label == ColumnIssueKey && cols.Key == -1:
			cols.Key = i
		case label == ColumnIssueID && cols.ID == -1:
			cols.ID = i
		case label == ColumnParent && cols.Parent == -1:
			cols.Parent = i
		case label == ColumnParentKey && cols.ParentKey == -1:
			cols.ParentKey = i
		}
	}
	return cols
}

// optionalField returns nil when the column is absent from the header or
// beyond the end of this row.
func optionalField(row []string, idx int) *string {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	v := trimField(row[idx])
	return &v
}

// trimField strips whitespace, carriage returns and a UTF-8 BOM.
func trimField(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}

// FilterKeys restricts records to those whose key appears in keys.
// A nil keys list selects every record; an empty non-nil list selects none.
// Input order is preserved.
func FilterKeys(records []types.IssueRecord, keys []string) []types.IssueRecord {
	if keys == nil {
		return records
	}

	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}

	filtered := make([]types.IssueRecord, 0, len(keys))
	for _, r := range records {
		if allowed[r.Key] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
