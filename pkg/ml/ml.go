// Package ml holds the deterministic statistical routines behind model training.
// Every routine validates its input and returns an error instead of NaN metrics.
package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotEnoughData = errors.New("not enough data")
	ErrInvalidInput  = errors.New("invalid input")
)

const DefaultTestRatio = 0.2

// Split holds row indices of the train and test partitions.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles 0..n-1 with a seeded source and keeps at least one row on each side.
func TrainTestSplit(n int, testRatio float64, seed int64) (Split, error) {
	if n < 2 {
		return Split{}, ErrNotEnoughData
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = DefaultTestRatio
	}
	idx := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Round(float64(n) * testRatio))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	return Split{Train: idx[nTest:], Test: idx[:nTest]}, nil
}

// Scaler standardises columns to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func FitScaler(x [][]float64) Scaler {
	if len(x) == 0 {
		return Scaler{}
	}
	p := len(x[0])
	s := Scaler{Mean: make([]float64, p), Std: make([]float64, p)}
	col := make([]float64, len(x))
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		if len(col) > 1 {
			s.Mean[j], s.Std[j] = stat.MeanStdDev(col, nil)
		} else {
			s.Mean[j] = col[0]
		}
		if s.Std[j] == 0 || math.IsNaN(s.Std[j]) {
			s.Std[j] = 1
		}
	}
	return s
}

func (s Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

func (s Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i := range x {
		out[i] = s.Transform(x[i])
	}
	return out
}

func (s Scaler) Inverse(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v*s.Std[j] + s.Mean[j]
	}
	return out
}

func pick(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, k := range idx {
		out[i] = x[k]
	}
	return out
}

func pickFloat(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = y[k]
	}
	return out
}

func pickInt(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, k := range idx {
		out[i] = y[k]
	}
	return out
}

// normalize scales non-negative weights to sum to one.
func normalize(names []string, w []float64) map[string]float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	out := make(map[string]float64, len(names))
	for j, n := range names {
		if total > 0 {
			out[n] = w[j] / total
		} else {
			out[n] = 0
		}
	}
	return out
}

func checkMatrix(x [][]float64, p int) error {
	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrInvalidInput, i, len(row), p)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d holds NaN or Inf", ErrInvalidInput, i)
			}
		}
	}
	return nil
}
