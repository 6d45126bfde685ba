package datastore

import (
	"encoding/json"
	"testing"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemTable(t *testing.T, tableName string) Datastore {
	cfg := NewSQLiteConfig(tableName)
	cfg.DBName = ":memory:"
	ds, err := NewSQLiteDatastore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestProfileStore(t *testing.T) {
	store := NewProfileStore(newMemTable(t, KProfileTableName))

	_, err := store.Get("u1")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := store.Upsert("u1", &models.UpdateProfileRequest{Name: utils.String("Ada"), Company: utils.String("ACME")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	created := p.CreatedAt

	p, err = store.Upsert("u1", &models.UpdateProfileRequest{Company: utils.String("Initech")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "Initech", p.Company)
	assert.Equal(t, created, p.CreatedAt)

	got, err := store.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
}

func TestDatasetStore(t *testing.T) {
	store := NewDatasetStore(newMemTable(t, KDatasetTableName))

	d := &models.Dataset{Id: "d1", UserId: "u1", Name: "sales", FileName: "sales.csv", FileSize: 42,
		MimeType: "text/csv", StoragePath: "datasets/u1/d1/sales.csv"}
	require.NoError(t, store.Create(d))
	require.NoError(t, store.Create(&models.Dataset{Id: "d2", UserId: "u2", Name: "other"}))

	got, err := store.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, config.DATASET_UPLOADED, got.Status)
	assert.Equal(t, int64(42), got.FileSize)
	assert.Nil(t, got.DataProfile)

	require.NoError(t, store.StartProcessing("d1"))
	got, err = store.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, config.DATASET_PROCESSING, got.Status)
	assert.ErrorIs(t, store.StartProcessing("d1"), ErrConditionFailed)
	assert.ErrorIs(t, store.StartProcessing("missing"), ErrConditionFailed)
	require.NoError(t, store.UpdateStatus("d1", config.DATASET_PROCESSING, ""))
	profile := &dataset.DataProfile{RowCount: 3, ColumnCount: 1, Columns: []dataset.Column{
		{Name: "amount", Type: dataset.Numeric, NonNull: 3, Unique: 3},
	}}
	require.NoError(t, store.SetProfile("d1", profile))

	got, err = store.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, config.DATASET_PROCESSED, got.Status)
	assert.Equal(t, int64(3), got.RowCount)
	assert.Equal(t, int64(1), got.ColumnCount)
	require.NotNil(t, got.DataProfile)
	assert.Equal(t, "amount", got.DataProfile.Columns[0].Name)

	list, err := store.ListByUser("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "d1", list[0].Id)

	assert.ErrorIs(t, store.UpdateStatus("missing", config.DATASET_ERROR, "x"), ErrNotFound)

	require.NoError(t, store.Delete("d1"))
	_, err = store.Get("d1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newModel(t *testing.T, store *ModelStore, id string) *models.MLModel {
	m := &models.MLModel{Id: id, UserId: "u1", DatasetId: "d1", Name: id, ProblemType: config.REGRESSION,
		Configuration: models.ModelConfig{TargetColumn: "y", FeatureColumns: []string{"x"}}}
	require.NoError(t, store.Create(m))
	got, err := store.Get(id)
	require.NoError(t, err)
	return got
}

func TestModelStoreClaimIsExclusive(t *testing.T) {
	store := NewModelStore(newMemTable(t, KModelTableName))
	m := newModel(t, store, "m1")
	assert.Equal(t, config.MODEL_CREATED, m.Status)
	assert.Equal(t, []string{"x"}, m.Configuration.FeatureColumns)

	runId, ok, err := store.Claim(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, runId)

	// a second claim from the same observed state loses
	_, ok, err = store.Claim(m)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, config.MODEL_TRAINING, got.Status)
	assert.Equal(t, runId, got.RunId)
	assert.Equal(t, int64(1), got.Attempt)
	assert.Equal(t, int64(0), got.TrainingProgress)
}

func TestModelStoreProgressIsMonotonicAndRunScoped(t *testing.T) {
	store := NewModelStore(newMemTable(t, KModelTableName))
	m := newModel(t, store, "m1")
	runId, ok, err := store.Claim(m)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.UpdateProgress("m1", runId, 30))
	require.NoError(t, store.UpdateProgress("m1", runId, 15))
	got, err := store.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.TrainingProgress)

	assert.ErrorIs(t, store.UpdateProgress("m1", "other-run", 90), ErrConditionFailed)
	assert.ErrorIs(t, store.Heartbeat("m1", "other-run"), ErrConditionFailed)
	assert.ErrorIs(t, store.Fail("m1", "other-run", "boom"), ErrConditionFailed)

	metrics := map[string]float64{"r2": 0.9}
	require.NoError(t, store.Complete("m1", runId, map[string]interface{}{"r2": 0.9}, metrics, "looks good",
		map[string]interface{}{"intercept": 1.0}))
	got, err = store.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, config.MODEL_COMPLETED, got.Status)
	assert.Equal(t, int64(100), got.TrainingProgress)
	assert.Equal(t, metrics, got.Metrics)
	assert.Equal(t, "looks good", got.Insight)
	assert.NotEmpty(t, got.CompletedAt)
	var artifact map[string]float64
	require.NoError(t, json.Unmarshal(got.Artifact, &artifact))
	assert.Equal(t, 1.0, artifact["intercept"])

	// the finished run can no longer write
	assert.ErrorIs(t, store.UpdateProgress("m1", runId, 50), ErrConditionFailed)

	require.NoError(t, store.Deploy("m1"))
	assert.ErrorIs(t, store.Deploy("m1"), ErrConditionFailed)
}

func TestModelStoreCancel(t *testing.T) {
	store := NewModelStore(newMemTable(t, KModelTableName))
	m := newModel(t, store, "m1")

	ok, err := store.RequestCancel("m1")
	require.NoError(t, err)
	assert.False(t, ok)

	runId, _, err := store.Claim(m)
	require.NoError(t, err)
	cancelled, err := store.CancelRequested("m1", runId)
	require.NoError(t, err)
	assert.False(t, cancelled)

	ok, err = store.RequestCancel("m1")
	require.NoError(t, err)
	assert.True(t, ok)
	cancelled, err = store.CancelRequested("m1", runId)
	require.NoError(t, err)
	assert.True(t, cancelled)

	_, err = store.CancelRequested("m1", "other")
	assert.ErrorIs(t, err, ErrConditionFailed)

	require.NoError(t, store.Fail("m1", runId, config.TRAINCANCEL))
	got, err := store.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, config.MODEL_ERROR, got.Status)
	assert.Equal(t, config.TRAINCANCEL, got.ErrorMessage)
}

func TestModelStoreStaleAndReclaim(t *testing.T) {
	store := NewModelStore(newMemTable(t, KModelTableName))
	m := newModel(t, store, "m1")
	newModel(t, store, "m2")
	runId, _, err := store.Claim(m)
	require.NoError(t, err)

	running, err := store.ListRunning()
	require.NoError(t, err)
	require.Len(t, running, 1)

	stale, err := store.ListStale(utils.TimestampS() + 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, runId, stale[0].RunId)

	stale, err = store.ListStale(0)
	require.NoError(t, err)
	assert.Empty(t, stale)

	running[0].Heartbeat = running[0].Heartbeat - 1
	_, ok, err := store.Reclaim(running[0])
	require.NoError(t, err)
	assert.False(t, ok, "heartbeat moved on")

	m, err = store.Get("m1")
	require.NoError(t, err)
	newRun, ok, err := store.Reclaim(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, runId, newRun)

	got, err := store.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Attempt)
	assert.Equal(t, newRun, got.RunId)
	assert.ErrorIs(t, store.Heartbeat("m1", runId), ErrConditionFailed)

	list, err := store.ListByUser("u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestResultStore(t *testing.T) {
	store := NewResultStore(newMemTable(t, KResultTableName))
	require.NoError(t, store.Append(&models.ModelResult{Id: "r1", UserId: "u1", ModelId: "m1", RunId: "a",
		Metrics: map[string]float64{"accuracy": 0.8}, Results: json.RawMessage(`{"accuracy":0.8}`),
		CreatedAt: "2024-01-01T00:00:00.000Z"}))
	require.NoError(t, store.Append(&models.ModelResult{Id: "r2", UserId: "u1", ModelId: "m1", RunId: "b",
		Metrics: map[string]float64{"accuracy": 0.9}, CreatedAt: "2024-01-02T00:00:00.000Z"}))
	require.NoError(t, store.Append(&models.ModelResult{Id: "r3", UserId: "u2", ModelId: "m2", RunId: "c"}))

	byModel, err := store.ListByModel("m1")
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "r2", byModel[0].Id)
	assert.Equal(t, 0.8, byModel[1].Metrics["accuracy"])
	assert.JSONEq(t, `{"accuracy":0.8}`, string(byModel[1].Results))

	byUser, err := store.ListByUser("u2")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	require.NoError(t, store.DeleteByModel("m1"))
	byModel, err = store.ListByModel("m1")
	require.NoError(t, err)
	assert.Empty(t, byModel)
}
