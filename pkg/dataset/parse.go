package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// MaxRows caps how many data rows are kept from one upload.
const MaxRows = 200000

var delimiters = []rune{',', ';', '\t', '|'}

// DetectFormat resolves the format from the extension, then from the MIME type.
func DetectFormat(fileName, mimeType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	mt := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch mt {
	case "text/csv", "application/csv", "text/tab-separated-values", "text/plain":
		return FormatCSV, nil
	case "application/json", "text/json":
		return FormatJSON, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: name=%s mime=%s", ErrUnsupportedFormat, fileName, mimeType)
}

// Parse decodes the file body and infers the column types.
func Parse(fileName, mimeType string, data []byte) (*Table, error) {
	format, err := DetectFormat(fileName, mimeType)
	if err != nil {
		return nil, err
	}
	var header []string
	var rows [][]string
	switch format {
	case FormatCSV:
		header, rows, err = parseCSV(data)
	case FormatJSON:
		header, rows, err = parseJSON(data)
	case FormatXLSX:
		header, rows, err = parseXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, ErrEmptyDataset
	}
	return newTable(header, rows), nil
}

func newTable(header []string, rows [][]string) *Table {
	names := normalizeHeader(header)
	t := &Table{Columns: make([]Column, len(names)), Rows: make([][]string, 0, len(rows))}
	for i, n := range names {
		t.Columns[i] = Column{Name: n}
	}
	for _, rec := range rows {
		row := make([]string, len(names))
		copy(row, rec)
		empty := true
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
			if row[j] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		t.Rows = append(t.Rows, row)
		if len(t.Rows) >= MaxRows {
			break
		}
	}
	inferTypes(t)
	return t
}

// blank names become column_N, duplicates get a numeric suffix
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		key := strings.ToLower(name)
		if n, ok := seen[key]; ok {
			base := name
			for {
				n++
				name = base + "_" + strconv.Itoa(n)
				if _, taken := seen[strings.ToLower(name)]; !taken {
					break
				}
			}
			seen[key] = n
		}
		seen[strings.ToLower(name)] = 1
		out[i] = name
	}
	return out
}

func parseCSV(data []byte) ([]string, [][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyDataset
		}
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	rows := make([][]string, 0, 256)
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read csv row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
		if len(rows) > MaxRows {
			break
		}
	}
	return header, rows, nil
}

// sniffDelimiter picks the candidate that splits the leading lines most consistently.
func sniffDelimiter(data []byte) rune {
	lines := make([]string, 0, 10)
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == 10 {
			break
		}
	}
	if len(lines) == 0 {
		return ','
	}
	best, bestScore := ',', 0.0
	for _, d := range delimiters {
		first := countOutsideQuotes(lines[0], d)
		if first == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if countOutsideQuotes(l, d) != first {
				consistent = false
				break
			}
		}
		score := float64(first)
		if consistent {
			score += 1000
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

func parseJSON(data []byte) ([]string, [][]string, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))
	var items []json.RawMessage
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, nil, fmt.Errorf("decode json: %w", err)
		}
		if wrapper.Data == nil {
			return nil, nil, fmt.Errorf("%w: json object without data array", ErrUnsupportedFormat)
		}
		items = wrapper.Data
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, fmt.Errorf("decode json: %w", err)
	}
	if len(items) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	var header []string
	index := make(map[string]int)
	records := make([]map[string]string, 0, len(items))
	for i, raw := range items {
		keys, values, err := decodeObject(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("json row %d: %w", i+1, err)
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
			}
		}
		records = append(records, values)
		if len(records) > MaxRows {
			break
		}
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for k, v := range rec {
			row[index[k]] = v
		}
		rows[i] = row
	}
	return header, rows, nil
}

// decodeObject keeps the key order of a flat json object.
func decodeObject(raw json.RawMessage) ([]string, map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("row is not an object")
	}
	keys := make([]string, 0, 8)
	values := make(map[string]string, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = cellString(v)
	}
	return keys, values, nil
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func parseXLSX(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()
	var header []string
	out := make([][]string, 0, 256)
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, nil, fmt.Errorf("read xlsx row: %w", err)
		}
		if header == nil {
			if isBlank(cols) {
				continue
			}
			header = cols
			continue
		}
		out = append(out, cols)
		if len(out) > MaxRows {
			break
		}
	}
	if header == nil {
		return nil, nil, ErrEmptyDataset
	}
	return header, out, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
