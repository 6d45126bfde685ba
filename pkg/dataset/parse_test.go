package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name, mime string
		want       Format
	}{
		{"sales.csv", "", FormatCSV},
		{"sales.TSV", "", FormatCSV},
		{"rows.json", "", FormatJSON},
		{"book.xlsx", "", FormatXLSX},
		{"upload", "text/csv; charset=utf-8", FormatCSV},
		{"upload", "application/json", FormatJSON},
	}
	for _, c := range cases {
		got, err := DetectFormat(c.name, c.mime)
		assert.Nil(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
	_, err := DetectFormat("model.bin", "application/octet-stream")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseCSV(t *testing.T) {
	t.Run("comma", func(t *testing.T) {
		data := []byte("\ufeffregion,units,price\nnorth,10,2.5\nsouth,\"1,200\",3\n\n")
		table, err := Parse("sales.csv", "text/csv", data)
		require.Nil(t, err)
		assert.Equal(t, 3, len(table.Columns))
		assert.Equal(t, "region", table.Columns[0].Name)
		assert.Equal(t, 2, len(table.Rows))
		assert.Equal(t, Numeric, table.Columns[1].Type)
		units, err := table.NumericColumn("units")
		require.Nil(t, err)
		assert.Equal(t, []float64{10, 1200}, units)
	})
	t.Run("semicolon", func(t *testing.T) {
		data := []byte("a;b;c\n1;2;3\n4;5;6\n")
		table, err := Parse("x.csv", "", data)
		require.Nil(t, err)
		assert.Equal(t, []string{"4", "5", "6"}, table.Rows[1])
	})
	t.Run("tab and pipe", func(t *testing.T) {
		table, err := Parse("x.tsv", "", []byte("a\tb\n1\t2\n"))
		require.Nil(t, err)
		assert.Equal(t, 2, len(table.Columns))
		table, err = Parse("x.csv", "", []byte("a|b|c\nx|y|z\n"))
		require.Nil(t, err)
		assert.Equal(t, 3, len(table.Columns))
	})
	t.Run("ragged rows and header fixups", func(t *testing.T) {
		table, err := Parse("x.csv", "", []byte("id,,id\n1,2\n3,4,5,6\n"))
		require.Nil(t, err)
		assert.Equal(t, "column_2", table.Columns[1].Name)
		assert.Equal(t, "id_2", table.Columns[2].Name)
		assert.Equal(t, []string{"1", "2", ""}, table.Rows[0])
		assert.Equal(t, []string{"3", "4", "5"}, table.Rows[1])
	})
	t.Run("suffix skips taken names", func(t *testing.T) {
		table, err := Parse("x.csv", "", []byte("a_2,a,a,A,,column_5\n1,2,3,4,5,6\n"))
		require.Nil(t, err)
		names := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			names[i] = c.Name
		}
		assert.Equal(t, []string{"a_2", "a", "a_3", "A_4", "column_5", "column_5_2"}, names)
		col, err := table.Column("a_3")
		require.Nil(t, err)
		assert.Equal(t, "a_3", col.Name)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := Parse("x.csv", "", []byte(""))
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})
}

func TestParseJSON(t *testing.T) {
	t.Run("array keeps key order", func(t *testing.T) {
		data := []byte(`[{"name":"a","score":1.5,"ok":true},{"name":"b","extra":null,"score":2}]`)
		table, err := Parse("rows.json", "", data)
		require.Nil(t, err)
		names := make([]string, 0)
		for _, c := range table.Columns {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"name", "score", "ok", "extra"}, names)
		assert.Equal(t, []string{"b", "2", "", ""}, table.Rows[1])
		assert.Equal(t, Numeric, table.Columns[1].Type)
	})
	t.Run("data wrapper", func(t *testing.T) {
		table, err := Parse("rows.json", "", []byte(`{"data":[{"x":1},{"x":2}]}`))
		require.Nil(t, err)
		assert.Equal(t, 2, len(table.Rows))
	})
	t.Run("not rows", func(t *testing.T) {
		_, err := Parse("rows.json", "", []byte(`{"items":[1]}`))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		_, err = Parse("rows.json", "", []byte(`[1,2]`))
		assert.Error(t, err)
		_, err = Parse("rows.json", "", []byte(`[]`))
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.Nil(t, f.SetCellValue(sheet, "A1", "month"))
	require.Nil(t, f.SetCellValue(sheet, "B1", "revenue"))
	require.Nil(t, f.SetCellValue(sheet, "A2", "2024-01"))
	require.Nil(t, f.SetCellValue(sheet, "B2", 100))
	require.Nil(t, f.SetCellValue(sheet, "A3", "2024-02"))
	require.Nil(t, f.SetCellValue(sheet, "B3", 140))
	buf, err := f.WriteToBuffer()
	require.Nil(t, err)

	table, err := Parse("book.xlsx", "", buf.Bytes())
	require.Nil(t, err)
	assert.Equal(t, "month", table.Columns[0].Name)
	assert.Equal(t, Datetime, table.Columns[0].Type)
	assert.Equal(t, Numeric, table.Columns[1].Type)
	rev, err := table.NumericColumn("revenue")
	require.Nil(t, err)
	assert.Equal(t, []float64{100, 140}, rev)
}

func TestParseNumber(t *testing.T) {
	for in, want := range map[string]float64{"12": 12, "-3.5": -3.5, "$1,234.50": 1234.5, "45%": 45, " 7 ": 7} {
		got, ok := ParseNumber(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "abc", "NaN", "inf", "1,2"} {
		_, ok := ParseNumber(in)
		assert.False(t, ok, in)
	}
}
