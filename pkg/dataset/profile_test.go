package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferTypes(t *testing.T) {
	var b strings.Builder
	b.WriteString("num,mostly,date,flag,cat,note\n")
	for i := 0; i < 20; i++ {
		mostly := fmt.Sprint(i)
		if i == 0 {
			mostly = "n/a"
		}
		fmt.Fprintf(&b, "%d,%s,2024-01-%02d,%v,%s,free text number %d\n", i, mostly, i+1, i%2 == 0, []string{"a", "b"}[i%2], i)
	}
	table, err := Parse("t.csv", "", []byte(b.String()))
	require.Nil(t, err)
	want := []ColumnType{Numeric, Numeric, Datetime, Boolean, Categorical, Text}
	for i, c := range table.Columns {
		assert.Equal(t, want[i], c.Type, c.Name)
	}
}

func TestProfile(t *testing.T) {
	table, err := Parse("t.csv", "", []byte("x,label\n1,a\n2,b\n3,a\n,a\n"))
	require.Nil(t, err)
	p := Profile(table)
	assert.Equal(t, 4, p.RowCount)
	assert.Equal(t, 2, p.ColumnCount)

	x := p.Columns[0]
	assert.Equal(t, 3, x.NonNull)
	assert.Equal(t, 1, x.Missing)
	assert.Equal(t, 3, x.Unique)
	require.NotNil(t, x.Stats)
	assert.Equal(t, 1.0, x.Stats.Min)
	assert.Equal(t, 3.0, x.Stats.Max)
	assert.InDelta(t, 2.0, x.Stats.Mean, 1e-9)
	assert.InDelta(t, 1.0, x.Stats.Std, 1e-9)
	assert.Equal(t, []string{"1", "2", "3"}, x.Samples)

	label := p.Columns[1]
	assert.Equal(t, Categorical, label.Type)
	assert.Nil(t, label.Stats)
	assert.Equal(t, CategoryCount{Value: "a", Count: 3}, label.TopValues[0])

	col, err := table.Column("x")
	require.Nil(t, err)
	assert.NotNil(t, col.Stats)
}

func TestColumnAccessors(t *testing.T) {
	table, err := Parse("t.csv", "", []byte("x,label\n1,a\noops,b\n"))
	require.Nil(t, err)
	_, err = table.Column("missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)
	_, err = table.NumericColumn("label")
	assert.ErrorIs(t, err, ErrNotNumeric)
	idx := table.Index("LABEL")
	assert.Equal(t, 1, idx)
}

func TestPreview(t *testing.T) {
	var b strings.Builder
	b.WriteString("id\n")
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	table, err := Parse("t.csv", "", []byte(b.String()))
	require.Nil(t, err)
	assert.Equal(t, DefaultPreviewRows, len(table.Preview(0)))
	assert.Equal(t, MaxPreviewRows, len(table.Preview(10000)))
	assert.Equal(t, "3", table.Preview(5)[3]["id"])
}
