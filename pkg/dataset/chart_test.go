package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartTable(t *testing.T) *Table {
	data := "month,region,sales,units\n" +
		"2024-02,north,10,1\n" +
		"2024-01,south,30,2\n" +
		"2024-01,north,20,3\n" +
		"2024-03,east,5,4\n"
	table, err := Parse("c.csv", "", []byte(data))
	require.Nil(t, err)
	return table
}

func TestBuildChartBar(t *testing.T) {
	table := chartTable(t)
	chart, err := BuildChart(table, ChartRequest{Type: ChartBar, X: "region", Y: "sales"})
	require.Nil(t, err)
	assert.Equal(t, AggSum, chart.Aggregate)
	assert.Equal(t, []string{"north", "south", "east"}, chart.Labels)
	assert.Equal(t, []float64{30, 30, 5}, chart.Series)

	chart, err = BuildChart(table, ChartRequest{Type: ChartPie, X: "region", Aggregate: AggCount, Limit: 1})
	require.Nil(t, err)
	assert.Equal(t, []string{"north"}, chart.Labels)
	assert.Equal(t, []float64{2}, chart.Series)
	assert.True(t, chart.Truncated)
}

func TestBuildChartLine(t *testing.T) {
	table := chartTable(t)
	chart, err := BuildChart(table, ChartRequest{Type: ChartLine, X: "month", Y: "sales", Aggregate: AggAvg})
	require.Nil(t, err)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, chart.Labels)
	assert.Equal(t, []float64{25, 10, 5}, chart.Series)

	chart, err = BuildChart(table, ChartRequest{Type: ChartLine, X: "month", Y: "sales", Aggregate: AggMax})
	require.Nil(t, err)
	assert.Equal(t, []float64{30, 10, 5}, chart.Series)
}

func TestBuildChartScatter(t *testing.T) {
	table := chartTable(t)
	chart, err := BuildChart(table, ChartRequest{Type: ChartScatter, X: "units", Y: "sales"})
	require.Nil(t, err)
	assert.Equal(t, 4, len(chart.Points))
	assert.Equal(t, Point{X: 1, Y: 10}, chart.Points[0])

	_, err = BuildChart(table, ChartRequest{Type: ChartScatter, X: "region", Y: "sales"})
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestBuildChartInvalid(t *testing.T) {
	table := chartTable(t)
	_, err := BuildChart(table, ChartRequest{Type: "radar", X: "region"})
	assert.ErrorIs(t, err, ErrInvalidChart)
	_, err = BuildChart(table, ChartRequest{Type: ChartBar, X: "nope"})
	assert.ErrorIs(t, err, ErrColumnNotFound)
	_, err = BuildChart(table, ChartRequest{Type: ChartBar, X: "region", Aggregate: AggSum})
	assert.ErrorIs(t, err, ErrInvalidChart)
	_, err = BuildChart(table, ChartRequest{Type: ChartBar, X: "region", Y: "region"})
	assert.ErrorIs(t, err, ErrNotNumeric)
}
