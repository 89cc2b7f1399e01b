package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseError indicates the file could not be read as a tabular dataset
type ParseError struct {
	Path  string
	Cause error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ParseFile reads a CSV or Excel file into a Table. The first row is
// treated as the header; column types are inferred from the data rows.
func ParseFile(path string) (*Table, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, &ParseError{Path: path, Cause: err}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Cause: fmt.Errorf("file contains no rows")}
	}

	header := rows[0]
	if len(header) == 0 {
		return nil, &ParseError{Path: path, Cause: fmt.Errorf("header row is empty")}
	}
	data := rows[1:]

	columns := buildColumns(header, data)
	return NewTable(columns), nil
}

// Preview returns the header row plus up to maxRows data rows in a
// JSON-friendly shape: numeric cells as float64, missing cells as nil.
func Preview(t *Table, maxRows int) [][]any {
	preview := make([][]any, 0, maxRows+1)

	header := make([]any, t.ColumnCount())
	for i, name := range t.ColumnNames() {
		header[i] = name
	}
	preview = append(preview, header)

	limit := t.RowCount()
	if limit > maxRows {
		limit = maxRows
	}
	cols := t.Columns()
	for row := 0; row < limit; row++ {
		cells := make([]any, len(cols))
		for i, c := range cols {
			v := c.Values[row]
			switch {
			case v.Missing:
				cells[i] = nil
			case c.Type == ColumnNumeric:
				cells[i] = v.Number
			default:
				cells[i] = v.Raw
			}
		}
		preview = append(preview, cells)
	}
	return preview
}

func readRows(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xls", ".xlsx":
		return readExcel(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are padded later

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook contains no sheets")
	}

	// The first sheet holds the dataset
	return f.GetRows(sheets[0])
}

// buildColumns infers a type per column and materializes cells. A column
// is numeric when every non-missing cell parses as a float and at least
// one such cell exists.
func buildColumns(header []string, data [][]string) []Column {
	columns := make([]Column, len(header))
	for col, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", col+1)
		}

		values := make([]Value, len(data))
		numeric := true
		nonMissing := 0
		for row, record := range data {
			raw := ""
			if col < len(record) {
				raw = strings.TrimSpace(record[col])
			}
			if raw == "" {
				values[row] = Value{Missing: true}
				continue
			}
			nonMissing++
			number, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				numeric = false
			}
			values[row] = Value{Raw: raw, Number: number}
		}

		colType := ColumnText
		if numeric && nonMissing > 0 {
			colType = ColumnNumeric
		}
		columns[col] = Column{Name: name, Type: colType, Values: values}
	}
	return columns
}
