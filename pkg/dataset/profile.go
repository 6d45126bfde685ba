package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	typeThreshold  = 0.9
	maxSamples     = 5
	maxTopValues   = 8
	maxCategories  = 50
	maxCategoryLen = 64
)

// DataProfile is the summary persisted with a processed dataset.
type DataProfile struct {
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
	Columns     []Column `json:"columns"`
}

// inferTypes assigns a type when at least 90% of the non-empty cells parse as it.
func inferTypes(t *Table) {
	for j := range t.Columns {
		var nonNull, num, dt, boolean int
		uniq := make(map[string]struct{})
		longest := 0
		for _, row := range t.Rows {
			v := row[j]
			if v == "" {
				continue
			}
			nonNull++
			if len(uniq) <= maxCategories*4 {
				uniq[v] = struct{}{}
			}
			if len(v) > longest {
				longest = len(v)
			}
			if _, ok := ParseNumber(v); ok {
				num++
				continue
			}
			if _, ok := ParseBool(v); ok {
				boolean++
				continue
			}
			if _, ok := ParseTime(v); ok {
				dt++
			}
		}
		t.Columns[j].Type = decideType(nonNull, num, dt, boolean, len(uniq), longest)
	}
}

func decideType(nonNull, num, dt, boolean, unique, longest int) ColumnType {
	if nonNull == 0 {
		return Text
	}
	n := float64(nonNull)
	switch {
	case float64(num)/n >= typeThreshold:
		return Numeric
	case float64(dt)/n >= typeThreshold:
		return Datetime
	case float64(boolean)/n >= typeThreshold:
		return Boolean
	case longest <= maxCategoryLen && unique <= maxCategories*4 && float64(unique)/n <= 0.5:
		return Categorical
	case longest <= maxCategoryLen && unique <= 10 && unique < nonNull:
		return Categorical
	}
	return Text
}

// Profile computes per-column statistics over the whole table.
func Profile(t *Table) *DataProfile {
	p := &DataProfile{
		RowCount:    len(t.Rows),
		ColumnCount: len(t.Columns),
		Columns:     make([]Column, len(t.Columns)),
	}
	for j, c := range t.Columns {
		col := Column{Name: c.Name, Type: c.Type}
		counts := make(map[string]int)
		nums := make([]float64, 0, len(t.Rows))
		for _, row := range t.Rows {
			v := row[j]
			if v == "" {
				col.Missing++
				continue
			}
			col.NonNull++
			counts[v]++
			if len(col.Samples) < maxSamples && counts[v] == 1 {
				col.Samples = append(col.Samples, v)
			}
			if c.Type == Numeric {
				if x, ok := ParseNumber(v); ok {
					nums = append(nums, x)
				}
			}
		}
		col.Unique = len(counts)
		if c.Type == Numeric && len(nums) > 0 {
			col.Stats = numericStats(nums)
		}
		if c.Type == Categorical || c.Type == Boolean {
			col.TopValues = topValues(counts, maxTopValues)
		}
		p.Columns[j] = col
	}
	// keep the table schema in sync so later lookups see the stats
	copy(t.Columns, p.Columns)
	return p
}

func numericStats(xs []float64) *NumericStats {
	s := &NumericStats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, x := range xs {
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
	}
	if len(xs) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(xs, nil)
	} else {
		s.Mean = xs[0]
	}
	return s
}

func topValues(counts map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

// FromSchema rebuilds an empty table carrying a stored schema, used to validate configurations.
func FromSchema(cols []Column) *Table {
	t := &Table{Columns: make([]Column, len(cols))}
	copy(t.Columns, cols)
	return t
}
