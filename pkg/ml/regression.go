package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const maxSamplePredictions = 100

// LinearModel is an ordinary least squares fit with intercept.
type LinearModel struct {
	Target       string    `json:"target"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

type Prediction struct {
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

type RegressionResult struct {
	Target            string             `json:"target"`
	Features          []string           `json:"features"`
	Coefficients      map[string]float64 `json:"coefficients"`
	Intercept         float64            `json:"intercept"`
	R2                float64            `json:"r2"`
	TrainR2           float64            `json:"trainR2"`
	RMSE              float64            `json:"rmse"`
	MAE               float64            `json:"mae"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	TrainSize         int                `json:"trainSize"`
	TestSize          int                `json:"testSize"`
	Samples           []Prediction       `json:"samples"`
}

func (r *RegressionResult) Metrics() map[string]float64 {
	return map[string]float64{"r2": r.R2, "trainR2": r.TrainR2, "rmse": r.RMSE, "mae": r.MAE}
}

// FitLinear solves min ||Xb - y|| with a QR factorisation.
func FitLinear(x [][]float64, y []float64, features []string, target string) (*LinearModel, error) {
	n, p := len(x), len(features)
	if p == 0 {
		return nil, fmt.Errorf("%w: no feature columns", ErrInvalidInput)
	}
	if n < p+2 || len(y) != n {
		return nil, fmt.Errorf("%w: %d rows for %d features", ErrNotEnoughData, n, p)
	}
	if err := checkMatrix(x, p); err != nil {
		return nil, err
	}
	design := mat.NewDense(n, p+1, nil)
	for i, row := range x {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	var qr mat.QR
	qr.Factorize(design)
	var r mat.Dense
	qr.RTo(&r)
	maxDiag := 0.0
	for j := 0; j <= p; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(j, j)))
	}
	for j := 0; j <= p; j++ {
		if math.Abs(r.At(j, j)) <= 1e-10*maxDiag {
			return nil, fmt.Errorf("%w: features are constant or collinear", ErrInvalidInput)
		}
	}
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, mat.NewDense(n, 1, append([]float64(nil), y...))); err != nil {
		return nil, fmt.Errorf("%w: features are constant or collinear: %v", ErrInvalidInput, err)
	}
	m := &LinearModel{
		Target:       target,
		Features:     append([]string(nil), features...),
		Coefficients: make([]float64, p),
		Intercept:    beta.At(0, 0),
	}
	for j := 0; j < p; j++ {
		m.Coefficients[j] = beta.At(j+1, 0)
	}
	return m, nil
}

func (m *LinearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrInvalidInput, len(x), len(m.Coefficients))
	}
	v := m.Intercept
	for j, c := range m.Coefficients {
		v += c * x[j]
	}
	return v, nil
}

func (m *LinearModel) predictAll(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i], _ = m.Predict(x[i])
	}
	return out
}

// TrainRegression fits on the train split and scores on the held-out rows.
func TrainRegression(x [][]float64, y []float64, features []string, target string,
	testRatio float64, seed int64) (*LinearModel, *RegressionResult, error) {
	split, err := TrainTestSplit(len(x), testRatio, seed)
	if err != nil {
		return nil, nil, err
	}
	xTrain, yTrain := pick(x, split.Train), pickFloat(y, split.Train)
	xTest, yTest := pick(x, split.Test), pickFloat(y, split.Test)
	model, err := FitLinear(xTrain, yTrain, features, target)
	if err != nil {
		return nil, nil, err
	}
	trainPred := model.predictAll(xTrain)
	testPred := model.predictAll(xTest)

	res := &RegressionResult{
		Target:       target,
		Features:     model.Features,
		Coefficients: make(map[string]float64, len(features)),
		Intercept:    model.Intercept,
		R2:           R2(yTest, testPred),
		TrainR2:      R2(yTrain, trainPred),
		RMSE:         RMSE(yTest, testPred),
		MAE:          MAE(yTest, testPred),
		TrainSize:    len(xTrain),
		TestSize:     len(xTest),
	}
	scaler := FitScaler(xTrain)
	importance := make([]float64, len(features))
	for j, f := range features {
		res.Coefficients[f] = model.Coefficients[j]
		importance[j] = math.Abs(model.Coefficients[j] * scaler.Std[j])
	}
	res.FeatureImportance = normalize(features, importance)
	for i := 0; i < len(yTest) && i < maxSamplePredictions; i++ {
		res.Samples = append(res.Samples, Prediction{Actual: yTest[i], Predicted: testPred[i]})
	}
	return model, res, nil
}
