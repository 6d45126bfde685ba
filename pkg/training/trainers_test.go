package training

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/ml"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, csv string) *dataset.Table {
	table, err := dataset.Parse("data.csv", "text/csv", []byte(csv))
	require.NoError(t, err)
	return table
}

// train validates, trains and round trips the artifact through JSON like the model row does
func train(t *testing.T, problemType string, table *dataset.Table, cfg *models.ModelConfig) (*Outcome, json.RawMessage) {
	tr := Trainers()[problemType]
	require.NotNil(t, tr)
	require.NoError(t, tr.Validate(cfg, table))
	out, err := tr.Train(context.Background(), table, cfg)
	require.NoError(t, err)
	artifact, err := json.Marshal(out.Artifact)
	require.NoError(t, err)
	return out, artifact
}

func TestClassificationTrainer(t *testing.T) {
	var b strings.Builder
	b.WriteString("height,weight,member,label\n")
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "%d,%d,yes,small\n", 100+i%10, 20+i%7)
		} else {
			fmt.Fprintf(&b, "%d,%d,no,large\n", 180+i%10, 80+i%7)
		}
	}
	// a row without a label is skipped
	b.WriteString("150,50,yes,\n")
	table := parse(t, b.String())

	cfg := &models.ModelConfig{TargetColumn: "label", Seed: 3}
	out, artifact := train(t, config.CLASSIFICATION, table, cfg)
	assert.Equal(t, []string{"height", "weight", "member"}, cfg.FeatureColumns)
	res := out.Results.(*ml.ClassificationResult)
	assert.Equal(t, []string{"large", "small"}, res.Classes)
	assert.Equal(t, 60, res.TrainSize+res.TestSize)
	assert.GreaterOrEqual(t, out.Metrics["accuracy"], 0.9)

	preds, err := classificationTrainer{}.Predict(artifact, &models.PredictRequest{Rows: []map[string]interface{}{
		{"height": 102.0, "weight": 21.0, "member": true},
		{"height": 185.0, "weight": "83", "member": "no"},
	}})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "small", preds[0].(LabelPrediction).Label)
	assert.Equal(t, "large", preds[1].(LabelPrediction).Label)
	assert.InDelta(t, 1.0, preds[0].(LabelPrediction).Probabilities["small"]+preds[0].(LabelPrediction).Probabilities["large"], 1e-9)

	_, err = classificationTrainer{}.Predict(artifact, &models.PredictRequest{Rows: []map[string]interface{}{{"height": 1.0}}})
	assert.ErrorIs(t, err, ErrInvalidPredict)
}

func TestClassificationValidate(t *testing.T) {
	table := parse(t, "a,b,note\n1,2,x\n3,4,x\n5,6,x\n")
	err := classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "note"}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "a", FeatureColumns: []string{"a"}}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "a", Epochs: -1}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "a", TestRatio: 1}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClassificationValidateCountsClasses(t *testing.T) {
	var b strings.Builder
	b.WriteString("x,label\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i)
	}
	table := parse(t, b.String())
	err := classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "label"}, table)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "60 classes")

	table = parse(t, "x,label\n1,a\n2,a\n3,\n")
	err = classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "label"}, table)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "single class")

	table = parse(t, "x,label\n1,a\n2,b\n3,a\n4,b\n")
	assert.NoError(t, classificationTrainer{}.Validate(&models.ModelConfig{TargetColumn: "label"}, table))
}

func TestClusteringTrainer(t *testing.T) {
	var b strings.Builder
	b.WriteString("x,y,name\n")
	centers := [][2]float64{{0, 0}, {50, 50}, {100, 0}}
	for i := 0; i < 90; i++ {
		c := centers[i%3]
		fmt.Fprintf(&b, "%.2f,%.2f,p%d\n", c[0]+float64(i%5)*0.3, c[1]+float64(i%4)*0.3, i)
	}
	b.WriteString(",7,broken\n")
	table := parse(t, b.String())

	cfg := &models.ModelConfig{Seed: 1}
	out, artifact := train(t, config.CLUSTERING, table, cfg)
	assert.Equal(t, defaultK, cfg.K)
	assert.Equal(t, []string{"x", "y"}, cfg.FeatureColumns)
	res := out.Results.(*ml.ClusteringResult)
	assert.Equal(t, 3, res.K)
	assert.Len(t, res.Assignments, 90)
	assert.Greater(t, out.Metrics["silhouette"], 0.8)

	preds, err := clusteringTrainer{}.Predict(artifact, &models.PredictRequest{Rows: []map[string]interface{}{
		{"x": 0.5, "y": 0.5}, {"x": 0.1, "y": 0.2}, {"x": 99.0, "y": 1.0},
	}})
	require.NoError(t, err)
	first := preds[0].(ClusterPrediction).Cluster
	assert.Equal(t, first, preds[1].(ClusterPrediction).Cluster)
	assert.NotEqual(t, first, preds[2].(ClusterPrediction).Cluster)

	err = clusteringTrainer{}.Validate(&models.ModelConfig{K: 1}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestForecastTrainer(t *testing.T) {
	var b strings.Builder
	b.WriteString("month,sales\n")
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	// rows are written newest first; the series is ordered by date
	for i := 35; i >= 0; i-- {
		season := []float64{0, 5, 10, 5, 0, -5, -10, -5, 0, 5, 10, 5}[i%12]
		fmt.Fprintf(&b, "%s,%.1f\n", start.AddDate(0, i, 0).Format("2006-01-02"), 100+2*float64(i)+season)
	}
	table := parse(t, b.String())

	cfg := &models.ModelConfig{Horizon: 6}
	out, artifact := train(t, config.FORECASTING, table, cfg)
	assert.Equal(t, "sales", cfg.ValueColumn)
	assert.Equal(t, "month", cfg.DateColumn)
	res := out.Results.(*ml.ForecastResult)
	assert.Len(t, res.Forecast, 6)
	assert.InDelta(t, 2.0, res.TrendSlope, 0.2)

	preds, err := forecastTrainer{}.Predict(artifact, &models.PredictRequest{Horizon: 3})
	require.NoError(t, err)
	require.Len(t, preds, 3)
	p := preds[0].(ml.ForecastPoint)
	assert.Equal(t, "2025-01-01", p.Date)
	assert.LessOrEqual(t, p.Lower, p.Value)
	assert.GreaterOrEqual(t, p.Upper, p.Value)

	_, err = forecastTrainer{}.Predict(artifact, &models.PredictRequest{Horizon: maxHorizon + 1})
	assert.ErrorIs(t, err, ErrInvalidPredict)
	err = forecastTrainer{}.Validate(&models.ModelConfig{DateColumn: "sales"}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRecommendTrainer(t *testing.T) {
	csv := strings.Join([]string{
		"user,item,rating",
		"ann,matrix,5", "ann,alien,4", "ann,heat,1",
		"bob,matrix,5", "bob,alien,5", "bob,blade,5",
		"cid,heat,5", "cid,notebook,5", "cid,matrix,1",
		"dee,notebook,4", "dee,heat,4", "dee,titanic,5",
	}, "\n")
	table := parse(t, csv)

	cfg := &models.ModelConfig{UserColumn: "user", ItemColumn: "item", RatingColumn: "rating"}
	out, artifact := train(t, config.RECOMMENDATION, table, cfg)
	assert.Equal(t, defaultTopN, cfg.TopN)
	res := out.Results.(*ml.RecommendationResult)
	assert.Equal(t, 4, res.Users)
	assert.Equal(t, 6, res.Items)

	preds, err := recommendTrainer{}.Predict(artifact, &models.PredictRequest{Users: []string{"ann", "zed"}, TopN: 2})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	ann := preds[0].(UserRecommendations)
	require.NotEmpty(t, ann.Items)
	assert.Equal(t, "blade", ann.Items[0].Item)
	assert.Len(t, preds[1].(UserRecommendations).Items, 2)

	_, err = recommendTrainer{}.Predict(artifact, &models.PredictRequest{})
	assert.ErrorIs(t, err, ErrInvalidPredict)
	err = recommendTrainer{}.Validate(&models.ModelConfig{UserColumn: "user", ItemColumn: "user"}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = recommendTrainer{}.Validate(&models.ModelConfig{UserColumn: "user", ItemColumn: "item", RatingColumn: "item"}, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPredictWithoutArtifact(t *testing.T) {
	for name, tr := range Trainers() {
		_, err := tr.Predict(nil, &models.PredictRequest{})
		assert.ErrorIs(t, err, ErrNoArtifact, name)
	}
}
