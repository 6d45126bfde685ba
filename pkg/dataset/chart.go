package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartScatter ChartType = "scatter"
	ChartPie     ChartType = "pie"
)

type Aggregate string

const (
	AggSum   Aggregate = "sum"
	AggAvg   Aggregate = "avg"
	AggCount Aggregate = "count"
	AggMin   Aggregate = "min"
	AggMax   Aggregate = "max"
)

const (
	DefaultChartLimit   = 50
	DefaultScatterLimit = 1000
	MaxChartLimit       = 5000
)

var ErrInvalidChart = errors.New("invalid chart request")

type ChartRequest struct {
	Type      ChartType `json:"type"`
	X         string    `json:"x"`
	Y         string    `json:"y,omitempty"`
	Aggregate Aggregate `json:"aggregate,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Chart struct {
	Type      ChartType `json:"type"`
	X         string    `json:"x"`
	Y         string    `json:"y,omitempty"`
	Aggregate Aggregate `json:"aggregate,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	Series    []float64 `json:"series,omitempty"`
	Points    []Point   `json:"points,omitempty"`
	Truncated bool      `json:"truncated"`
}

type bucket struct {
	label string
	sum   float64
	count int
	min   float64
	max   float64
}

func (b *bucket) value(agg Aggregate) float64 {
	switch agg {
	case AggCount:
		return float64(b.count)
	case AggAvg:
		if b.count == 0 {
			return 0
		}
		return b.sum / float64(b.count)
	case AggMin:
		return b.min
	case AggMax:
		return b.max
	}
	return b.sum
}

// BuildChart groups rows by X and aggregates Y, or returns raw pairs for scatter.
func BuildChart(t *Table, req ChartRequest) (*Chart, error) {
	if req.X == "" {
		return nil, fmt.Errorf("%w: x is required", ErrInvalidChart)
	}
	xIdx := t.Index(req.X)
	if xIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, req.X)
	}
	switch req.Type {
	case ChartScatter:
		return scatter(t, req)
	case ChartBar, ChartLine, ChartPie:
	default:
		return nil, fmt.Errorf("%w: type %q", ErrInvalidChart, req.Type)
	}
	agg := req.Aggregate
	if agg == "" {
		agg = AggSum
		if req.Y == "" {
			agg = AggCount
		}
	}
	switch agg {
	case AggSum, AggAvg, AggCount, AggMin, AggMax:
	default:
		return nil, fmt.Errorf("%w: aggregate %q", ErrInvalidChart, agg)
	}
	var ys []float64
	if agg != AggCount {
		if req.Y == "" {
			return nil, fmt.Errorf("%w: aggregate %s needs y", ErrInvalidChart, agg)
		}
		var err error
		if ys, err = t.NumericColumn(req.Y); err != nil {
			return nil, err
		}
	}
	limit := chartLimit(req.Limit, DefaultChartLimit)

	buckets := make(map[string]*bucket)
	for i, row := range t.Rows {
		label := row[xIdx]
		if label == "" {
			continue
		}
		b, ok := buckets[label]
		if !ok {
			b = &bucket{label: label, min: math.Inf(1), max: math.Inf(-1)}
			buckets[label] = b
		}
		if agg == AggCount {
			b.count++
			continue
		}
		y := ys[i]
		if math.IsNaN(y) {
			continue
		}
		b.count++
		b.sum += y
		b.min = math.Min(b.min, y)
		b.max = math.Max(b.max, y)
	}
	list := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		list = append(list, b)
	}
	if req.Type == ChartLine {
		sortByLabel(list, t.Columns[xIdx].Type)
	} else {
		sort.Slice(list, func(i, j int) bool {
			vi, vj := list[i].value(agg), list[j].value(agg)
			if vi == vj {
				return list[i].label < list[j].label
			}
			return vi > vj
		})
	}
	chart := &Chart{Type: req.Type, X: t.Columns[xIdx].Name, Y: req.Y, Aggregate: agg}
	if len(list) > limit {
		list = list[:limit]
		chart.Truncated = true
	}
	chart.Labels = make([]string, len(list))
	chart.Series = make([]float64, len(list))
	for i, b := range list {
		chart.Labels[i] = b.label
		chart.Series[i] = b.value(agg)
	}
	return chart, nil
}

func scatter(t *Table, req ChartRequest) (*Chart, error) {
	if req.Y == "" {
		return nil, fmt.Errorf("%w: scatter needs y", ErrInvalidChart)
	}
	xs, err := t.NumericColumn(req.X)
	if err != nil {
		return nil, err
	}
	ys, err := t.NumericColumn(req.Y)
	if err != nil {
		return nil, err
	}
	limit := chartLimit(req.Limit, DefaultScatterLimit)
	chart := &Chart{Type: ChartScatter, X: req.X, Y: req.Y, Points: make([]Point, 0, len(xs))}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		if len(chart.Points) == limit {
			chart.Truncated = true
			break
		}
		chart.Points = append(chart.Points, Point{X: xs[i], Y: ys[i]})
	}
	return chart, nil
}

func chartLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxChartLimit {
		return MaxChartLimit
	}
	return limit
}

func sortByLabel(list []*bucket, typ ColumnType) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].label, list[j].label
		switch typ {
		case Numeric:
			x, _ := ParseNumber(a)
			y, _ := ParseNumber(b)
			if x != y {
				return x < y
			}
		case Datetime:
			x, _ := ParseTime(a)
			y, _ := ParseTime(b)
			if !x.Equal(y) {
				return x.Before(y)
			}
		}
		return a < b
	})
}
