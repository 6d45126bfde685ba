package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
)

var (
	ErrInvalidConfig  = errors.New("invalid model configuration")
	ErrUnsupported    = errors.New("unsupported problem type")
	ErrNoArtifact     = errors.New("model has no trained artifact")
	ErrInvalidPredict = errors.New("invalid prediction input")
)

const (
	maxClasses      = 50
	defaultK        = 3
	defaultHorizon  = 12
	maxHorizon      = 365
	defaultTopN     = 5
	maxPredictRows  = 1000
	maxPredictUsers = 100
)

// Outcome is what a finished training run persists.
type Outcome struct {
	Results  interface{}
	Metrics  map[string]float64
	Artifact interface{}
	Insight  string
}

// Trainer implements one problem type.
type Trainer interface {
	// Validate checks cfg against the dataset schema and fills in defaults.
	Validate(cfg *models.ModelConfig, t *dataset.Table) error
	Train(ctx context.Context, t *dataset.Table, cfg *models.ModelConfig) (*Outcome, error)
	Predict(artifact json.RawMessage, req *models.PredictRequest) ([]interface{}, error)
}

// Trainers returns the registry keyed by problem type.
func Trainers() map[string]Trainer {
	return map[string]Trainer{
		config.REGRESSION:     regressionTrainer{},
		config.CLASSIFICATION: classificationTrainer{},
		config.CLUSTERING:     clusteringTrainer{},
		config.FORECASTING:    forecastTrainer{},
		config.RECOMMENDATION: recommendTrainer{},
	}
}

func invalid(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, a...))
}

func isFeatureType(t dataset.ColumnType) bool {
	return t == dataset.Numeric || t == dataset.Boolean
}

// resolveFeatures defaults to every numeric or boolean column except the excluded ones
// and rejects listed columns of any other type.
func resolveFeatures(t *dataset.Table, features []string, exclude ...string) ([]string, error) {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	if len(features) == 0 {
		for _, c := range t.Columns {
			if !skip[c.Name] && isFeatureType(c.Type) {
				features = append(features, c.Name)
			}
		}
		if len(features) == 0 {
			return nil, invalid("dataset has no numeric feature columns")
		}
		return features, nil
	}
	out := make([]string, 0, len(features))
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		col, err := t.Column(f)
		if err != nil {
			return nil, invalid("feature %s not found", f)
		}
		if skip[col.Name] {
			return nil, invalid("column %s cannot be both target and feature", col.Name)
		}
		if !isFeatureType(col.Type) {
			return nil, invalid("feature %s is %s, need numeric or boolean", col.Name, col.Type)
		}
		if !seen[col.Name] {
			seen[col.Name] = true
			out = append(out, col.Name)
		}
	}
	return out, nil
}

func checkTestRatio(r float64) error {
	if r < 0 || r >= 1 {
		return invalid("testRatio must be in [0, 1)")
	}
	return nil
}

func cellValue(typ dataset.ColumnType, s string) (float64, bool) {
	if typ == dataset.Boolean {
		b, ok := dataset.ParseBool(s)
		if !ok {
			return 0, false
		}
		if b {
			return 1, true
		}
		return 0, true
	}
	return dataset.ParseNumber(s)
}

// featureMatrix returns the feature rows and their source row indices.
// Rows with a missing or unparseable feature are dropped.
func featureMatrix(t *dataset.Table, features []string) ([][]float64, []int, error) {
	idx := make([]int, len(features))
	for j, f := range features {
		idx[j] = t.Index(f)
		if idx[j] < 0 {
			return nil, nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, f)
		}
	}
	x := make([][]float64, 0, len(t.Rows))
	kept := make([]int, 0, len(t.Rows))
rows:
	for i, row := range t.Rows {
		xs := make([]float64, len(idx))
		for j, c := range idx {
			v, ok := cellValue(t.Columns[c].Type, row[c])
			if !ok {
				continue rows
			}
			xs[j] = v
		}
		x = append(x, xs)
		kept = append(kept, i)
	}
	return x, kept, nil
}

// inputValue converts one JSON prediction input to a feature value.
func inputValue(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if f, ok := dataset.ParseNumber(x); ok {
			return f, true
		}
		if b, ok := dataset.ParseBool(x); ok {
			return inputValue(b)
		}
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// inputRows builds feature rows from the request in feature order.
func inputRows(req *models.PredictRequest, features []string) ([][]float64, error) {
	if len(req.Rows) == 0 {
		return nil, fmt.Errorf("%w: rows is empty", ErrInvalidPredict)
	}
	if len(req.Rows) > maxPredictRows {
		return nil, fmt.Errorf("%w: at most %d rows", ErrInvalidPredict, maxPredictRows)
	}
	out := make([][]float64, len(req.Rows))
	for i, row := range req.Rows {
		xs := make([]float64, len(features))
		for j, f := range features {
			raw, ok := row[f]
			if !ok {
				return nil, fmt.Errorf("%w: row %d: missing feature %s", ErrInvalidPredict, i, f)
			}
			if xs[j], ok = inputValue(raw); !ok {
				return nil, fmt.Errorf("%w: row %d: feature %s is not numeric: %v", ErrInvalidPredict, i, f, raw)
			}
		}
		out[i] = xs
	}
	return out, nil
}

func loadArtifact(artifact json.RawMessage, dst interface{}) error {
	if len(artifact) == 0 || string(artifact) == "null" {
		return ErrNoArtifact
	}
	if err := json.Unmarshal(artifact, dst); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}
