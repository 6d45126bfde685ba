package training

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/ml"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
)

type ValuePrediction struct {
	Value float64 `json:"value"`
}

type LabelPrediction struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

type ClusterPrediction struct {
	Cluster int `json:"cluster"`
}

type UserRecommendations struct {
	User  string              `json:"user"`
	Items []ml.Recommendation `json:"items"`
}

// targetRows keeps the feature rows whose target cell is present.
func targetRows(x [][]float64, kept []int, present func(i int) bool) ([][]float64, []int) {
	xs := make([][]float64, 0, len(x))
	idx := make([]int, 0, len(x))
	for k, i := range kept {
		if present(i) {
			xs = append(xs, x[k])
			idx = append(idx, i)
		}
	}
	return xs, idx
}

type regressionTrainer struct{}

func (regressionTrainer) Validate(cfg *models.ModelConfig, t *dataset.Table) error {
	if cfg.TargetColumn == "" {
		return invalid("targetColumn is required")
	}
	col, err := t.Column(cfg.TargetColumn)
	if err != nil {
		return invalid("target %s not found", cfg.TargetColumn)
	}
	if col.Type != dataset.Numeric {
		return invalid("regression target %s is %s, need numeric", col.Name, col.Type)
	}
	cfg.TargetColumn = col.Name
	if cfg.FeatureColumns, err = resolveFeatures(t, cfg.FeatureColumns, col.Name); err != nil {
		return err
	}
	return checkTestRatio(cfg.TestRatio)
}

func (regressionTrainer) Train(ctx context.Context, t *dataset.Table, cfg *models.ModelConfig) (*Outcome, error) {
	x, kept, err := featureMatrix(t, cfg.FeatureColumns)
	if err != nil {
		return nil, err
	}
	target, err := t.NumericColumn(cfg.TargetColumn)
	if err != nil {
		return nil, err
	}
	x, idx := targetRows(x, kept, func(i int) bool { return !math.IsNaN(target[i]) })
	y := make([]float64, len(idx))
	for k, i := range idx {
		y[k] = target[i]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, res, err := ml.TrainRegression(x, y, cfg.FeatureColumns, cfg.TargetColumn, cfg.TestRatio, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return &Outcome{Results: res, Metrics: res.Metrics(), Artifact: model}, nil
}

func (regressionTrainer) Predict(artifact json.RawMessage, req *models.PredictRequest) ([]interface{}, error) {
	var m ml.LinearModel
	if err := loadArtifact(artifact, &m); err != nil {
		return nil, err
	}
	rows, err := inputRows(req, m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(rows))
	for _, x := range rows {
		v, err := m.Predict(x)
		if err != nil {
			return nil, err
		}
		out = append(out, ValuePrediction{Value: v})
	}
	return out, nil
}

type classificationTrainer struct{}

func (classificationTrainer) Validate(cfg *models.ModelConfig, t *dataset.Table) error {
	if cfg.TargetColumn == "" {
		return invalid("targetColumn is required")
	}
	col, err := t.Column(cfg.TargetColumn)
	if err != nil {
		return invalid("target %s not found", cfg.TargetColumn)
	}
	if col.Type == dataset.Text || col.Type == dataset.Datetime {
		return invalid("classification target %s is %s", col.Name, col.Type)
	}
	classes, err := t.Distinct(col.Name)
	if err != nil {
		return invalid("target %s not found", cfg.TargetColumn)
	}
	if classes < 2 {
		return invalid("target %s has a single class", col.Name)
	}
	if classes > maxClasses {
		return invalid("target %s has %d classes, at most %d", col.Name, classes, maxClasses)
	}
	if cfg.LearningRate < 0 || cfg.Epochs < 0 || cfg.L2 < 0 {
		return invalid("learningRate, epochs and l2 must not be negative")
	}
	cfg.TargetColumn = col.Name
	if cfg.FeatureColumns, err = resolveFeatures(t, cfg.FeatureColumns, col.Name); err != nil {
		return err
	}
	return checkTestRatio(cfg.TestRatio)
}

func (classificationTrainer) Train(ctx context.Context, t *dataset.Table, cfg *models.ModelConfig) (*Outcome, error) {
	x, kept, err := featureMatrix(t, cfg.FeatureColumns)
	if err != nil {
		return nil, err
	}
	target, err := t.Strings(cfg.TargetColumn)
	if err != nil {
		return nil, err
	}
	x, idx := targetRows(x, kept, func(i int) bool { return target[i] != "" })
	labels := make([]string, len(idx))
	for k, i := range idx {
		labels[k] = target[i]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, res, err := ml.TrainClassifier(x, labels, cfg.FeatureColumns, cfg.TargetColumn, cfg.TestRatio, cfg.Seed,
		ml.ClassifierParams{LearningRate: cfg.LearningRate, Epochs: cfg.Epochs, L2: cfg.L2})
	if err != nil {
		return nil, err
	}
	return &Outcome{Results: res, Metrics: res.Metrics(), Artifact: model}, nil
}

func (classificationTrainer) Predict(artifact json.RawMessage, req *models.PredictRequest) ([]interface{}, error) {
	var m ml.LogisticModel
	if err := loadArtifact(artifact, &m); err != nil {
		return nil, err
	}
	rows, err := inputRows(req, m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(rows))
	for _, x := range rows {
		label, probs, err := m.Predict(x)
		if err != nil {
			return nil, err
		}
		out = append(out, LabelPrediction{Label: label, Probabilities: probs})
	}
	return out, nil
}

type clusteringTrainer struct{}

func (clusteringTrainer) Validate(cfg *models.ModelConfig, t *dataset.Table) error {
	var err error
	if cfg.FeatureColumns, err = resolveFeatures(t, cfg.FeatureColumns); err != nil {
		return err
	}
	if cfg.K == 0 {
		cfg.K = defaultK
	}
	if cfg.K < 2 || cfg.K > maxClasses {
		return invalid("k must be in [2, %d]", maxClasses)
	}
	if cfg.MaxIterations < 0 {
		return invalid("maxIterations must not be negative")
	}
	return nil
}

func (clusteringTrainer) Train(ctx context.Context, t *dataset.Table, cfg *models.ModelConfig) (*Outcome, error) {
	x, _, err := featureMatrix(t, cfg.FeatureColumns)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, res, err := ml.KMeans(x, cfg.FeatureColumns, ml.KMeansParams{
		K:             cfg.K,
		MaxIterations: cfg.MaxIterations,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Results: res, Metrics: res.Metrics(), Artifact: model}, nil
}

func (clusteringTrainer) Predict(artifact json.RawMessage, req *models.PredictRequest) ([]interface{}, error) {
	var m ml.KMeansModel
	if err := loadArtifact(artifact, &m); err != nil {
		return nil, err
	}
	rows, err := inputRows(req, m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(rows))
	for _, x := range rows {
		c, err := m.Predict(x)
		if err != nil {
			return nil, err
		}
		out = append(out, ClusterPrediction{Cluster: c})
	}
	return out, nil
}

type forecastTrainer struct{}

func firstOfType(t *dataset.Table, typ dataset.ColumnType) string {
	for _, c := range t.Columns {
		if c.Type == typ {
			return c.Name
		}
	}
	return ""
}

func (forecastTrainer) Validate(cfg *models.ModelConfig, t *dataset.Table) error {
	if cfg.ValueColumn == "" {
		cfg.ValueColumn = firstOfType(t, dataset.Numeric)
		if cfg.ValueColumn == "" {
			return invalid("dataset has no numeric column to forecast")
		}
	}
	col, err := t.Column(cfg.ValueColumn)
	if err != nil {
		return invalid("value column %s not found", cfg.ValueColumn)
	}
	if col.Type != dataset.Numeric {
		return invalid("value column %s is %s, need numeric", col.Name, col.Type)
	}
	cfg.ValueColumn = col.Name
	if cfg.DateColumn == "" {
		cfg.DateColumn = firstOfType(t, dataset.Datetime)
	} else {
		dc, err := t.Column(cfg.DateColumn)
		if err != nil {
			return invalid("date column %s not found", cfg.DateColumn)
		}
		if dc.Type != dataset.Datetime {
			return invalid("date column %s is %s, need datetime", dc.Name, dc.Type)
		}
		cfg.DateColumn = dc.Name
	}
	if cfg.Horizon == 0 {
		cfg.Horizon = defaultHorizon
	}
	if cfg.Horizon < 1 || cfg.Horizon > maxHorizon {
		return invalid("horizon must be in [1, %d]", maxHorizon)
	}
	if cfg.SeasonLength > maxHorizon {
		return invalid("seasonLength must be at most %d", maxHorizon)
	}
	return nil
}

func (forecastTrainer) Train(ctx context.Context, t *dataset.Table, cfg *models.ModelConfig) (*Outcome, error) {
	values, err := t.NumericColumn(cfg.ValueColumn)
	if err != nil {
		return nil, err
	}
	var dates []time.Time
	if cfg.DateColumn != "" {
		raw, err := t.Strings(cfg.DateColumn)
		if err != nil {
			return nil, err
		}
		dates = make([]time.Time, len(raw))
		for i, s := range raw {
			// unparseable dates stay zero and switch the series to row order
			dates[i], _ = dataset.ParseTime(s)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, res, err := ml.Forecast(dates, values, ml.ForecastParams{Horizon: cfg.Horizon, SeasonLength: cfg.SeasonLength})
	if err != nil {
		return nil, err
	}
	return &Outcome{Results: res, Metrics: res.Metrics(), Artifact: model}, nil
}

func (forecastTrainer) Predict(artifact json.RawMessage, req *models.PredictRequest) ([]interface{}, error) {
	var m ml.ForecastModel
	if err := loadArtifact(artifact, &m); err != nil {
		return nil, err
	}
	h := req.Horizon
	if h == 0 {
		h = defaultHorizon
	}
	if h < 1 || h > maxHorizon {
		return nil, fmt.Errorf("%w: horizon must be in [1, %d]", ErrInvalidPredict, maxHorizon)
	}
	points := m.Predict(h)
	out := make([]interface{}, len(points))
	for i := range points {
		out[i] = points[i]
	}
	return out, nil
}

type recommendTrainer struct{}

func (recommendTrainer) Validate(cfg *models.ModelConfig, t *dataset.Table) error {
	if cfg.UserColumn == "" || cfg.ItemColumn == "" {
		return invalid("userColumn and itemColumn are required")
	}
	uc, err := t.Column(cfg.UserColumn)
	if err != nil {
		return invalid("user column %s not found", cfg.UserColumn)
	}
	ic, err := t.Column(cfg.ItemColumn)
	if err != nil {
		return invalid("item column %s not found", cfg.ItemColumn)
	}
	if uc.Name == ic.Name {
		return invalid("userColumn and itemColumn must differ")
	}
	cfg.UserColumn, cfg.ItemColumn = uc.Name, ic.Name
	if cfg.RatingColumn != "" {
		rc, err := t.Column(cfg.RatingColumn)
		if err != nil {
			return invalid("rating column %s not found", cfg.RatingColumn)
		}
		if rc.Type != dataset.Numeric {
			return invalid("rating column %s is %s, need numeric", rc.Name, rc.Type)
		}
		cfg.RatingColumn = rc.Name
	}
	if cfg.TopN == 0 {
		cfg.TopN = defaultTopN
	}
	if cfg.TopN < 1 || cfg.TopN > maxPredictUsers {
		return invalid("topN must be in [1, %d]", maxPredictUsers)
	}
	if cfg.Neighbors < 0 {
		return invalid("neighbors must not be negative")
	}
	return nil
}

func (recommendTrainer) Train(ctx context.Context, t *dataset.Table, cfg *models.ModelConfig) (*Outcome, error) {
	users, err := t.Strings(cfg.UserColumn)
	if err != nil {
		return nil, err
	}
	items, err := t.Strings(cfg.ItemColumn)
	if err != nil {
		return nil, err
	}
	var values []float64
	if cfg.RatingColumn != "" {
		if values, err = t.NumericColumn(cfg.RatingColumn); err != nil {
			return nil, err
		}
	}
	ratings := make([]ml.Rating, len(users))
	for i := range users {
		// without a rating column every interaction counts as 1
		v := 1.0
		if values != nil {
			v = values[i]
		}
		ratings[i] = ml.Rating{User: users[i], Item: items[i], Value: v}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, res, err := ml.TrainRecommender(ratings, ml.RecommendParams{
		TopN:      cfg.TopN,
		Neighbors: cfg.Neighbors,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Results: res, Metrics: res.Metrics(), Artifact: model}, nil
}

func (recommendTrainer) Predict(artifact json.RawMessage, req *models.PredictRequest) ([]interface{}, error) {
	var m ml.RecommenderModel
	if err := loadArtifact(artifact, &m); err != nil {
		return nil, err
	}
	if len(req.Users) == 0 {
		return nil, fmt.Errorf("%w: users is empty", ErrInvalidPredict)
	}
	if len(req.Users) > maxPredictUsers {
		return nil, fmt.Errorf("%w: at most %d users", ErrInvalidPredict, maxPredictUsers)
	}
	n := req.TopN
	if n <= 0 {
		n = defaultTopN
	}
	if n > maxPredictUsers {
		n = maxPredictUsers
	}
	out := make([]interface{}, 0, len(req.Users))
	for _, u := range req.Users {
		out = append(out, UserRecommendations{User: u, Items: m.Recommend(u, n)})
	}
	return out, nil
}
