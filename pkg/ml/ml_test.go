package ml

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTestSplit(t *testing.T) {
	s, err := TrainTestSplit(10, 0.2, 7)
	require.Nil(t, err)
	assert.Equal(t, 2, len(s.Test))
	assert.Equal(t, 8, len(s.Train))
	seen := map[int]bool{}
	for _, i := range append(append([]int{}, s.Train...), s.Test...) {
		seen[i] = true
	}
	assert.Equal(t, 10, len(seen))

	again, _ := TrainTestSplit(10, 0.2, 7)
	assert.Equal(t, s, again)

	tiny, err := TrainTestSplit(2, 0.01, 1)
	require.Nil(t, err)
	assert.Equal(t, 1, len(tiny.Test))
	assert.Equal(t, 1, len(tiny.Train))

	_, err = TrainTestSplit(1, 0.2, 1)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestMetrics(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, RMSE(y, y))
	assert.Equal(t, 1.0, R2(y, y))
	assert.InDelta(t, 1.0, MAE(y, []float64{2, 3, 4, 5}), 1e-12)
	assert.InDelta(t, 1.0, RMSE(y, []float64{2, 3, 4, 5}), 1e-12)
	// constant target
	assert.Equal(t, 0.0, R2([]float64{5, 5, 5}, []float64{5, 5, 5}))
	assert.Equal(t, 0.0, R2([]float64{5, 5, 5}, []float64{4, 6, 9}))
	assert.InDelta(t, 50.0, MAPE([]float64{0, 2}, []float64{1, 1}), 1e-12)

	cm := Classify(2, []int{0, 0, 1, 1}, []int{0, 1, 1, 1})
	assert.Equal(t, 0.75, cm.Accuracy)
	assert.Equal(t, [][]int{{1, 1}, {0, 2}}, cm.Confusion)
	// class0 p=1 r=.5, class1 p=2/3 r=1
	assert.InDelta(t, (1+2.0/3)/2, cm.Precision, 1e-12)
	assert.InDelta(t, 0.75, cm.Recall, 1e-12)
}

func TestTrainRegression(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := make([][]float64, 200)
	y := make([]float64, 200)
	for i := range x {
		a, b := rng.Float64()*10, rng.Float64()*5
		x[i] = []float64{a, b}
		y[i] = 3 + 2*a - 4*b + rng.NormFloat64()*0.01
	}
	model, res, err := TrainRegression(x, y, []string{"a", "b"}, "y", 0.2, 42)
	require.Nil(t, err)
	assert.InDelta(t, 3, model.Intercept, 0.05)
	assert.InDelta(t, 2, res.Coefficients["a"], 0.01)
	assert.InDelta(t, -4, res.Coefficients["b"], 0.01)
	assert.Greater(t, res.R2, 0.99)
	assert.Equal(t, 40, res.TestSize)
	assert.InDelta(t, 1.0, res.FeatureImportance["a"]+res.FeatureImportance["b"], 1e-9)

	v, err := model.Predict([]float64{1, 1})
	require.Nil(t, err)
	assert.InDelta(t, 1, v, 0.05)
	_, err = model.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFitLinearErrors(t *testing.T) {
	_, err := FitLinear([][]float64{{1}, {2}}, []float64{1, 2}, []string{"a"}, "y")
	assert.ErrorIs(t, err, ErrNotEnoughData)

	x := [][]float64{{1, 2}, {2, 4}, {3, 6}, {4, 8}, {5, 10}}
	_, err = FitLinear(x, []float64{1, 2, 3, 4, 5}, []string{"a", "b"}, "y")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FitLinear([][]float64{{1}, {math.NaN()}, {3}}, []float64{1, 2, 3}, []string{"a"}, "y")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrainClassifier(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := make([][]float64, 300)
	labels := make([]string, 300)
	centers := map[string][2]float64{"red": {0, 0}, "green": {5, 5}, "blue": {0, 8}}
	names := []string{"red", "green", "blue"}
	for i := range x {
		c := centers[names[i%3]]
		x[i] = []float64{c[0] + rng.NormFloat64()*0.5, c[1] + rng.NormFloat64()*0.5}
		labels[i] = names[i%3]
	}
	model, res, err := TrainClassifier(x, labels, []string{"f1", "f2"}, "color", 0.2, 9, ClassifierParams{})
	require.Nil(t, err)
	assert.Equal(t, []string{"blue", "green", "red"}, res.Classes)
	assert.Greater(t, res.Accuracy, 0.95)
	assert.Equal(t, 3, len(res.ConfusionMatrix))
	total := 0
	for _, row := range res.ConfusionMatrix {
		for _, v := range row {
			total += v
		}
	}
	assert.Equal(t, res.TestSize, total)

	label, probs, err := model.Predict([]float64{5, 5})
	require.Nil(t, err)
	assert.Equal(t, "green", label)
	assert.InDelta(t, 1.0, probs["red"]+probs["green"]+probs["blue"], 1e-9)

	_, _, err = TrainClassifier(x[:10], make([]string, 10), []string{"f1", "f2"}, "color", 0.2, 9, ClassifierParams{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestKMeans(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var x [][]float64
	for _, c := range [][2]float64{{0, 0}, {10, 10}, {0, 10}} {
		for i := 0; i < 50; i++ {
			x = append(x, []float64{c[0] + rng.NormFloat64()*0.3, c[1] + rng.NormFloat64()*0.3})
		}
	}
	model, res, err := KMeans(x, []string{"a", "b"}, KMeansParams{K: 3, Seed: 11})
	require.Nil(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, []int{50, 50, 50}, sortedCopy(res.Sizes))
	assert.Greater(t, res.Silhouette, 0.8)
	assert.Equal(t, 150, len(res.Assignments))

	c1, err := model.Predict([]float64{10, 10})
	require.Nil(t, err)
	c2, _ := model.Predict([]float64{9.8, 10.1})
	assert.Equal(t, c1, c2)
	assert.InDelta(t, 10, res.Centroids[c1][0], 0.3)

	_, again, err := KMeans(x, []string{"a", "b"}, KMeansParams{K: 3, Seed: 11})
	require.Nil(t, err)
	assert.Equal(t, res.Assignments, again.Assignments)

	_, _, err = KMeans(x[:2], []string{"a", "b"}, KMeansParams{K: 3})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func sortedCopy(v []int) []int {
	out := append([]int(nil), v...)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func TestTrainRecommender(t *testing.T) {
	ratings := []Rating{
		{"ann", "matrix", 5}, {"ann", "alien", 4}, {"ann", "up", 1},
		{"bob", "matrix", 5}, {"bob", "alien", 5}, {"bob", "blade", 4}, {"bob", "up", 1},
		{"cid", "up", 5}, {"cid", "cars", 5}, {"cid", "matrix", 1},
		{"dee", "up", 4}, {"dee", "cars", 4}, {"dee", "frozen", 5},
	}
	model, res, err := TrainRecommender(ratings, RecommendParams{TopN: 2, Seed: 1})
	require.Nil(t, err)
	assert.Equal(t, 4, res.Users)
	assert.Equal(t, 6, res.Items)
	assert.Equal(t, 13, res.Ratings)
	assert.InDelta(t, 1-13.0/24, res.Sparsity, 1e-12)
	assert.Greater(t, res.Evaluated, 0)

	// frozen and cars come from neighbours rating them higher than bob rates blade
	recs := model.Recommend("ann", 2)
	require.Equal(t, 2, len(recs))
	assert.Equal(t, "frozen", recs[0].Item)
	assert.Equal(t, "cars", recs[1].Item)
	assert.Equal(t, 5.0, recs[0].Score)
	for _, r := range recs {
		_, seen := model.Ratings["ann"][r.Item]
		assert.False(t, seen)
	}
	assert.NotEmpty(t, model.Recommend("stranger", 3))

	_, _, err = TrainRecommender(ratings[:2], RecommendParams{})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestForecast(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var dates []time.Time
	var values []float64
	weekly := []float64{0, 1, 2, 3, 2, 1, -9}
	for i := 0; i < 56; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
		values = append(values, 100+0.5*float64(i)+weekly[i%7])
	}
	// shuffled input still orders by date
	dates[0], dates[10] = dates[10], dates[0]
	values[0], values[10] = values[10], values[0]

	model, res, err := Forecast(dates, values, ForecastParams{Horizon: 7})
	require.Nil(t, err)
	assert.Equal(t, "daily", res.Frequency)
	assert.Equal(t, 7, res.SeasonLength)
	assert.InDelta(t, 0.5, res.TrendSlope, 0.05)
	assert.Less(t, res.MAPE, 1.0)
	require.Equal(t, 7, len(res.Forecast))
	assert.Equal(t, "2024-02-26", res.Forecast[0].Date)
	for i, p := range res.Forecast {
		assert.LessOrEqual(t, p.Lower, p.Value)
		assert.GreaterOrEqual(t, p.Upper, p.Value)
		if i > 0 {
			prev := res.Forecast[i-1]
			assert.Greater(t, p.Upper-p.Lower, prev.Upper-prev.Lower-1e-9)
		}
	}
	assert.Equal(t, res.Forecast, model.Predict(7))

	_, res, err = Forecast(nil, []float64{1, 2, 3, 4}, ForecastParams{Horizon: 2})
	require.Nil(t, err)
	assert.Equal(t, "index", res.Frequency)
	assert.Equal(t, 0, res.SeasonLength)
	assert.InDelta(t, 5, res.Forecast[0].Value, 1e-9)
	assert.Equal(t, "", res.Forecast[0].Date)

	_, _, err = Forecast(nil, []float64{1, 2}, ForecastParams{})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}
