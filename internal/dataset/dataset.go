// Package dataset holds the in-memory tabular representation the insight
// pipeline analyzes. A Table is built once by the parser and treated as
// read-only afterwards.
package dataset

import (
	"strings"
)

// ColumnType classifies the inferred type of a column
type ColumnType string

const (
	ColumnNumeric ColumnType = "numeric"
	ColumnText    ColumnType = "text"
)

// Value is a single cell. Missing cells carry Missing=true and are
// excluded from all statistics.
type Value struct {
	Raw     string
	Number  float64
	Missing bool
}

// Column is a named, typed sequence of cells
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value
}

// Table is an immutable in-memory dataset
type Table struct {
	columns []Column
	rows    int
}

// NewTable builds a table from typed columns. All columns must have the
// same length; the caller (the parser) guarantees this.
func NewTable(columns []Column) *Table {
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0].Values)
	}
	return &Table{columns: columns, rows: rows}
}

// RowCount returns the number of data rows
func (t *Table) RowCount() int {
	return t.rows
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// Columns returns the table's columns
func (t *Table) Columns() []Column {
	return t.columns
}

// ColumnNames returns all column names in table order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// TypeCounts returns how many columns exist per inferred type
func (t *Table) TypeCounts() map[ColumnType]int {
	counts := make(map[ColumnType]int)
	for _, c := range t.columns {
		counts[c.Type]++
	}
	return counts
}

// NumericColumns returns the columns inferred as numeric, in table order
func (t *Table) NumericColumns() []Column {
	var numeric []Column
	for _, c := range t.columns {
		if c.Type == ColumnNumeric {
			numeric = append(numeric, c)
		}
	}
	return numeric
}

// NumericValues returns the non-missing values of a numeric column along
// with the row index each value came from.
func (c Column) NumericValues() (values []float64, rowIndices []int) {
	for i, v := range c.Values {
		if v.Missing {
			continue
		}
		values = append(values, v.Number)
		rowIndices = append(rowIndices, i)
	}
	return values, rowIndices
}

// MissingCount returns the number of missing cells in the column
func (c Column) MissingCount() int {
	count := 0
	for _, v := range c.Values {
		if v.Missing {
			count++
		}
	}
	return count
}

// DuplicateRowCount returns the number of rows that are exact duplicates
// of an earlier row, comparing raw cell content across all columns.
func (t *Table) DuplicateRowCount() int {
	if t.rows == 0 || len(t.columns) == 0 {
		return 0
	}

	seen := make(map[string]bool, t.rows)
	duplicates := 0
	var sb strings.Builder
	for row := 0; row < t.rows; row++ {
		sb.Reset()
		for _, c := range t.columns {
			v := c.Values[row]
			if v.Missing {
				sb.WriteString("\x00")
			} else {
				sb.WriteString(v.Raw)
			}
			sb.WriteString("\x1f")
		}
		key := sb.String()
		if seen[key] {
			duplicates++
		} else {
			seen[key] = true
		}
	}
	return duplicates
}
