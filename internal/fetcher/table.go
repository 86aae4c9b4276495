package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is an in-memory tabular file: a header and string rows addressed by
// column name.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable builds a Table, trimming header names. When a column name repeats,
// the first occurrence wins lookups.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: make([]string, len(header)), Rows: rows}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// Has reports whether every named column is present.
func (t *Table) Has(cols ...string) bool {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return false
		}
	}
	return true
}

// Rename renames column from to column to. It is a no-op when from is absent.
// An existing column named to is shadowed by the renamed one.
func (t *Table) Rename(from, to string) {
	i, ok := t.index[from]
	if !ok || from == to {
		return
	}
	if j, exists := t.index[to]; exists {
		t.Header[j] = to + "_orig"
	}
	t.Header[i] = to
	t.reindex()
}

// Value returns the trimmed cell for column col in row i, or "" when the
// column or cell is missing.
func (t *Table) Value(i int, col string) string {
	j, ok := t.index[col]
	if !ok || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][j])
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ReadTable loads a CSV or XLSX file, chosen by extension.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		t, err := ReadCSV(ctx, f, CSVOptions{LazyQuotes: true})
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read %s", path)
		}
		return t, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(path))
	}
}
