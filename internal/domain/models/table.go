package models

import (
	"strings"
)

// Row is a single tabular record keyed by column name.
type Row map[string]any

// Table is tabular input as delivered by a dataset collaborator. Columns keeps
// the column order, which decides ties when several columns match an indicator.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table has a column with that exact name,
// ignoring case, and returns its canonical spelling.
func (t *Table) HasColumn(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// FilterContains returns a table with the rows whose column value contains
// substr (case-insensitive). Rows without a string value are skipped.
func (t *Table) FilterContains(column, substr string) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns, Rows: make([]Row, 0, len(t.Rows))}
	needle := strings.ToLower(substr)
	for _, r := range t.Rows {
		s, ok := r[column].(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s), needle) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}
