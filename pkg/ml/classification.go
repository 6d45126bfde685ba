package ml

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

type ClassifierParams struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

func (p *ClassifierParams) defaults() {
	if p.LearningRate <= 0 {
		p.LearningRate = 0.5
	}
	if p.Epochs <= 0 {
		p.Epochs = 300
	}
	if p.L2 < 0 {
		p.L2 = 0
	}
}

// LogisticModel is a multinomial logistic regression on standardised features.
// Weights[k] holds the bias followed by one weight per feature for class k.
type LogisticModel struct {
	Target   string      `json:"target"`
	Features []string    `json:"features"`
	Classes  []string    `json:"classes"`
	Weights  [][]float64 `json:"weights"`
	Scaler   Scaler      `json:"scaler"`
}

type ClassificationResult struct {
	Target            string             `json:"target"`
	Features          []string           `json:"features"`
	Classes           []string           `json:"classes"`
	Accuracy          float64            `json:"accuracy"`
	Precision         float64            `json:"precision"`
	Recall            float64            `json:"recall"`
	F1                float64            `json:"f1"`
	ConfusionMatrix   [][]int            `json:"confusionMatrix"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	TrainSize         int                `json:"trainSize"`
	TestSize          int                `json:"testSize"`
	Epochs            int                `json:"epochs"`
}

func (r *ClassificationResult) Metrics() map[string]float64 {
	return map[string]float64{"accuracy": r.Accuracy, "precision": r.Precision, "recall": r.Recall, "f1": r.F1}
}

func softmax(z []float64) []float64 {
	maxZ := floats.Max(z)
	out := make([]float64, len(z))
	var sum float64
	for k, v := range z {
		out[k] = math.Exp(v - maxZ)
		sum += out[k]
	}
	floats.Scale(1/sum, out)
	return out
}

// scores for an already standardised row
func (m *LogisticModel) scores(xs []float64) []float64 {
	z := make([]float64, len(m.Classes))
	for k, w := range m.Weights {
		z[k] = w[0] + floats.Dot(w[1:], xs)
	}
	return softmax(z)
}

// Probabilities per class for a raw feature row.
func (m *LogisticModel) Probabilities(x []float64) ([]float64, error) {
	if len(x) != len(m.Features) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrInvalidInput, len(x), len(m.Features))
	}
	return m.scores(m.Scaler.Transform(x)), nil
}

func (m *LogisticModel) Predict(x []float64) (string, map[string]float64, error) {
	probs, err := m.Probabilities(x)
	if err != nil {
		return "", nil, err
	}
	out := make(map[string]float64, len(probs))
	for k, p := range probs {
		out[m.Classes[k]] = p
	}
	return m.Classes[floats.MaxIdx(probs)], out, nil
}

// FitLogistic runs batch gradient descent from zero weights, so the fit is deterministic.
func FitLogistic(x [][]float64, labels []int, classes []string, features []string, target string,
	params ClassifierParams) (*LogisticModel, int, error) {
	params.defaults()
	n, p, k := len(x), len(features), len(classes)
	if k < 2 {
		return nil, 0, fmt.Errorf("%w: target needs at least two classes", ErrInvalidInput)
	}
	if p == 0 {
		return nil, 0, fmt.Errorf("%w: no feature columns", ErrInvalidInput)
	}
	if n < k || len(labels) != n {
		return nil, 0, fmt.Errorf("%w: %d rows for %d classes", ErrNotEnoughData, n, k)
	}
	if err := checkMatrix(x, p); err != nil {
		return nil, 0, err
	}
	scaler := FitScaler(x)
	xs := scaler.TransformAll(x)
	m := &LogisticModel{
		Target:   target,
		Features: append([]string(nil), features...),
		Classes:  append([]string(nil), classes...),
		Weights:  make([][]float64, k),
		Scaler:   scaler,
	}
	grad := make([][]float64, k)
	for c := range m.Weights {
		m.Weights[c] = make([]float64, p+1)
		grad[c] = make([]float64, p+1)
	}
	epochs := 0
	for epochs < params.Epochs {
		epochs++
		for c := range grad {
			for j := range grad[c] {
				grad[c][j] = 0
			}
		}
		for i, row := range xs {
			probs := m.scores(row)
			for c := 0; c < k; c++ {
				d := probs[c]
				if labels[i] == c {
					d -= 1
				}
				grad[c][0] += d
				floats.AddScaled(grad[c][1:], d, row)
			}
		}
		maxGrad := 0.0
		for c := 0; c < k; c++ {
			for j := range grad[c] {
				g := grad[c][j] / float64(n)
				if j > 0 {
					g += params.L2 * m.Weights[c][j]
				}
				m.Weights[c][j] -= params.LearningRate * g
				maxGrad = math.Max(maxGrad, math.Abs(g))
			}
		}
		if maxGrad < 1e-6 {
			break
		}
	}
	return m, epochs, nil
}

// TrainClassifier encodes the labels, fits on the train split and scores on held-out rows.
func TrainClassifier(x [][]float64, labels []string, features []string, target string,
	testRatio float64, seed int64, params ClassifierParams) (*LogisticModel, *ClassificationResult, error) {
	if len(labels) != len(x) {
		return nil, nil, fmt.Errorf("%w: %d labels for %d rows", ErrInvalidInput, len(labels), len(x))
	}
	classes, encoded := encodeLabels(labels)
	split, err := TrainTestSplit(len(x), testRatio, seed)
	if err != nil {
		return nil, nil, err
	}
	model, epochs, err := FitLogistic(pick(x, split.Train), pickInt(encoded, split.Train), classes, features, target, params)
	if err != nil {
		return nil, nil, err
	}
	actual := pickInt(encoded, split.Test)
	predicted := make([]int, len(actual))
	for i, row := range pick(x, split.Test) {
		probs, _ := model.Probabilities(row)
		predicted[i] = floats.MaxIdx(probs)
	}
	cm := Classify(len(classes), actual, predicted)
	importance := make([]float64, len(features))
	for j := range features {
		for c := range classes {
			importance[j] += math.Abs(model.Weights[c][j+1])
		}
		importance[j] /= float64(len(classes))
	}
	return model, &ClassificationResult{
		Target:            target,
		Features:          model.Features,
		Classes:           classes,
		Accuracy:          cm.Accuracy,
		Precision:         cm.Precision,
		Recall:            cm.Recall,
		F1:                cm.F1,
		ConfusionMatrix:   cm.Confusion,
		FeatureImportance: normalize(features, importance),
		TrainSize:         len(split.Train),
		TestSize:          len(split.Test),
		Epochs:            epochs,
	}, nil
}

// encodeLabels maps labels to indices of the sorted distinct values.
func encodeLabels(labels []string) ([]string, []int) {
	set := make(map[string]struct{})
	for _, l := range labels {
		set[l] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = index[l]
	}
	return classes, out
}
