package dataset

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrEmptyDataset      = errors.New("dataset has no header or rows")
	ErrColumnNotFound    = errors.New("column not found")
	ErrNotNumeric        = errors.New("column is not numeric")
)

type ColumnType string

const (
	Numeric     ColumnType = "numeric"
	Datetime    ColumnType = "datetime"
	Boolean     ColumnType = "boolean"
	Categorical ColumnType = "categorical"
	Text        ColumnType = "text"
)

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type NumericStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Column is one entry of the typed schema.
type Column struct {
	Name      string          `json:"name"`
	Type      ColumnType      `json:"type"`
	NonNull   int             `json:"nonNull"`
	Missing   int             `json:"missing"`
	Unique    int             `json:"unique"`
	Stats     *NumericStats   `json:"stats,omitempty"`
	TopValues []CategoryCount `json:"topValues,omitempty"`
	Samples   []string        `json:"samples,omitempty"`
}

// Table is a parsed dataset. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []Column
	Rows    [][]string
}

func (t *Table) Index(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) (*Column, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return &t.Columns[idx], nil
}

// Strings returns the raw trimmed cells of a column.
func (t *Table) Strings(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = strings.TrimSpace(row[idx])
	}
	return out, nil
}

// Distinct counts the distinct non-missing cells of a column.
func (t *Table) Distinct(name string) (int, error) {
	values, err := t.Strings(name)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen), nil
}

// NumericColumn parses a numeric column; missing or unparseable cells are NaN.
func (t *Table) NumericColumn(name string) ([]float64, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	if t.Columns[idx].Type != Numeric {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotNumeric, name, t.Columns[idx].Type)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		if v, ok := ParseNumber(row[idx]); ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// Schema copy of the column definitions.
func (t *Table) Schema() []Column {
	out := make([]Column, len(t.Columns))
	copy(out, t.Columns)
	return out
}

const (
	DefaultPreviewRows = 20
	MaxPreviewRows     = 500
)

// Preview returns the first n rows keyed by column name.
func (t *Table) Preview(n int) []map[string]string {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	if n > MaxPreviewRows {
		n = MaxPreviewRows
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]map[string]string, 0, n)
	for _, row := range t.Rows[:n] {
		m := make(map[string]string, len(t.Columns))
		for j, c := range t.Columns {
			m[c.Name] = row[j]
		}
		out = append(out, m)
	}
	return out
}
