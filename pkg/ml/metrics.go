package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func RMSE(y, yhat []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	diff := make([]float64, len(y))
	floats.SubTo(diff, y, yhat)
	return math.Sqrt(floats.Dot(diff, diff) / float64(len(y)))
}

func MAE(y, yhat []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	diff := make([]float64, len(y))
	floats.SubTo(diff, y, yhat)
	return floats.Norm(diff, 1) / float64(len(y))
}

// R2 is the coefficient of determination. A constant target has no
// explainable variance and reports 0, whether or not the predictions miss it.
func R2(y, yhat []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := range y {
		ssRes += (y[i] - yhat[i]) * (y[i] - yhat[i])
		ssTot += (y[i] - mean) * (y[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// MAPE in percent, skipping zero actuals.
func MAPE(y, yhat []float64) float64 {
	var sum float64
	var n int
	for i := range y {
		if y[i] == 0 {
			continue
		}
		sum += math.Abs((y[i] - yhat[i]) / y[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return 100 * sum / float64(n)
}

type ClassMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	// Confusion[i][j] counts rows of actual class i predicted as class j.
	Confusion [][]int `json:"confusionMatrix"`
}

// Classify computes accuracy and macro averaged precision, recall and F1.
func Classify(k int, actual, predicted []int) ClassMetrics {
	m := ClassMetrics{Confusion: make([][]int, k)}
	for i := range m.Confusion {
		m.Confusion[i] = make([]int, k)
	}
	if len(actual) == 0 {
		return m
	}
	correct := 0
	for i := range actual {
		m.Confusion[actual[i]][predicted[i]]++
		if actual[i] == predicted[i] {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(len(actual))
	var p, r, f float64
	for c := 0; c < k; c++ {
		tp := float64(m.Confusion[c][c])
		var colSum, rowSum float64
		for j := 0; j < k; j++ {
			colSum += float64(m.Confusion[j][c])
			rowSum += float64(m.Confusion[c][j])
		}
		var pc, rc, fc float64
		if colSum > 0 {
			pc = tp / colSum
		}
		if rowSum > 0 {
			rc = tp / rowSum
		}
		if pc+rc > 0 {
			fc = 2 * pc * rc / (pc + rc)
		}
		p += pc
		r += rc
		f += fc
	}
	m.Precision = p / float64(k)
	m.Recall = r / float64(k)
	m.F1 = f / float64(k)
	return m
}
