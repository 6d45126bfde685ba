package datastore

import (
	"fmt"
	"sort"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
)

// progress writes race with heartbeats and cancel requests; a lost CAS is retried this often
const casRetry = 5

var modelColumns = []string{KModelUser, KModelDataset, KModelName, KModelProblemType, KModelProblemSubtype,
	KModelConfiguration, KModelStatus, KModelProgress, KModelRunId, KModelAttempt, KModelCancel, KModelHeartbeat,
	KModelError, KModelResults, KModelMetrics, KModelInsight, KModelArtifact, KModelCreateTime, KModelModifyTime,
	KModelCompleteTime, KModelDeployTime}

// ModelStore keeps the MLModel rows. Every write made on behalf of a training run
// is conditional on the run id, so a superseded run can no longer touch the row.
type ModelStore struct {
	table Datastore
}

func NewModelStore(table Datastore) *ModelStore {
	return &ModelStore{table: table}
}

func (s *ModelStore) Create(m *models.MLModel) error {
	conf, err := toJSON(m.Configuration)
	if err != nil {
		return err
	}
	m.Status = config.MODEL_CREATED
	m.TrainingProgress = 0
	m.RunId = ""
	m.Attempt = 0
	m.Cancel = config.CANCEL_INIT
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt
	return s.table.Put(m.Id, map[string]interface{}{
		KModelUser:           m.UserId,
		KModelDataset:        m.DatasetId,
		KModelName:           m.Name,
		KModelProblemType:    m.ProblemType,
		KModelProblemSubtype: m.ProblemSubtype,
		KModelConfiguration:  conf,
		KModelStatus:         m.Status,
		KModelProgress:       m.TrainingProgress,
		KModelRunId:          m.RunId,
		KModelAttempt:        m.Attempt,
		KModelCancel:         m.Cancel,
		KModelHeartbeat:      int64(0),
		KModelError:          "",
		KModelResults:        "",
		KModelMetrics:        "",
		KModelInsight:        "",
		KModelArtifact:       "",
		KModelCreateTime:     m.CreatedAt,
		KModelModifyTime:     m.UpdatedAt,
		KModelCompleteTime:   "",
		KModelDeployTime:     "",
	})
}

func modelFromRow(id string, row map[string]interface{}) (*models.MLModel, error) {
	m := &models.MLModel{
		Id:               id,
		UserId:           rowString(row[KModelUser]),
		DatasetId:        rowString(row[KModelDataset]),
		Name:             rowString(row[KModelName]),
		ProblemType:      rowString(row[KModelProblemType]),
		ProblemSubtype:   rowString(row[KModelProblemSubtype]),
		Status:           rowString(row[KModelStatus]),
		TrainingProgress: rowInt(row[KModelProgress]),
		RunId:            rowString(row[KModelRunId]),
		Attempt:          rowInt(row[KModelAttempt]),
		Cancel:           rowInt(row[KModelCancel]),
		Heartbeat:        rowInt(row[KModelHeartbeat]),
		ErrorMessage:     rowString(row[KModelError]),
		Results:          rawJSON(row[KModelResults]),
		Insight:          rowString(row[KModelInsight]),
		Artifact:         rawJSON(row[KModelArtifact]),
		CreatedAt:        rowString(row[KModelCreateTime]),
		UpdatedAt:        rowString(row[KModelModifyTime]),
		CompletedAt:      rowString(row[KModelCompleteTime]),
		DeployedAt:       rowString(row[KModelDeployTime]),
	}
	if err := fromJSON(row[KModelConfiguration], &m.Configuration); err != nil {
		return nil, fmt.Errorf("decode configuration of %s: %w", id, err)
	}
	if err := fromJSON(row[KModelMetrics], &m.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics of %s: %w", id, err)
	}
	return m, nil
}

func (s *ModelStore) Get(id string) (*models.MLModel, error) {
	row, err := s.table.Get(id, modelColumns)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return modelFromRow(id, row)
}

func (s *ModelStore) list(filter func(row map[string]interface{}) bool) ([]*models.MLModel, error) {
	rows, err := s.table.ListAll(modelColumns)
	if err != nil {
		return nil, err
	}
	ret := make([]*models.MLModel, 0)
	for id, row := range rows {
		if !filter(row) {
			continue
		}
		m, err := modelFromRow(id, row)
		if err != nil {
			return nil, err
		}
		ret = append(ret, m)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt != ret[j].CreatedAt {
			return ret[i].CreatedAt > ret[j].CreatedAt
		}
		return ret[i].Id < ret[j].Id
	})
	return ret, nil
}

// ListByUser newest first
func (s *ModelStore) ListByUser(userId string) ([]*models.MLModel, error) {
	return s.list(func(row map[string]interface{}) bool {
		return rowString(row[KModelUser]) == userId
	})
}

// ListRunning all rows in training status
func (s *ModelStore) ListRunning() ([]*models.MLModel, error) {
	return s.list(func(row map[string]interface{}) bool {
		return rowString(row[KModelStatus]) == config.MODEL_TRAINING
	})
}

// ListStale training rows whose heartbeat is older than before (unix seconds)
func (s *ModelStore) ListStale(before int64) ([]*models.MLModel, error) {
	return s.list(func(row map[string]interface{}) bool {
		return rowString(row[KModelStatus]) == config.MODEL_TRAINING && rowInt(row[KModelHeartbeat]) < before
	})
}

func (s *ModelStore) Delete(id string) error {
	return s.table.Delete(id)
}

// Claim moves the model observed as m into training with a fresh run id.
// It returns false when another writer changed the row first.
func (s *ModelStore) Claim(m *models.MLModel) (string, bool, error) {
	runId := utils.NewId()
	ok, err := s.table.CompareAndUpdate(m.Id, map[string]interface{}{
		KModelStatus: m.Status,
		KModelRunId:  m.RunId,
	}, map[string]interface{}{
		KModelStatus:       config.MODEL_TRAINING,
		KModelRunId:        runId,
		KModelProgress:     int64(0),
		KModelAttempt:      int64(1),
		KModelCancel:       int64(config.CANCEL_INIT),
		KModelHeartbeat:    utils.TimestampS(),
		KModelError:        "",
		KModelCompleteTime: "",
		KModelModifyTime:   now(),
	})
	if err != nil || !ok {
		return "", false, err
	}
	return runId, true, nil
}

// Reclaim hands a stale run to a new run id and bumps the attempt counter.
func (s *ModelStore) Reclaim(m *models.MLModel) (string, bool, error) {
	runId := utils.NewId()
	ok, err := s.table.CompareAndUpdate(m.Id, map[string]interface{}{
		KModelStatus:    config.MODEL_TRAINING,
		KModelRunId:     m.RunId,
		KModelHeartbeat: m.Heartbeat,
	}, map[string]interface{}{
		KModelRunId:      runId,
		KModelProgress:   int64(0),
		KModelAttempt:    m.Attempt + 1,
		KModelHeartbeat:  utils.TimestampS(),
		KModelModifyTime: now(),
	})
	if err != nil || !ok {
		return "", false, err
	}
	return runId, true, nil
}

// runUpdate applies values only while runId still owns the training row.
func (s *ModelStore) runUpdate(id, runId string, values map[string]interface{}) error {
	ok, err := s.table.CompareAndUpdate(id, map[string]interface{}{
		KModelStatus: config.MODEL_TRAINING,
		KModelRunId:  runId,
	}, values)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConditionFailed
	}
	return nil
}

// UpdateProgress raises the progress of the run; lower values are ignored.
// ErrConditionFailed means the run no longer owns the row.
func (s *ModelStore) UpdateProgress(id, runId string, progress int64) error {
	if progress > 100 {
		progress = 100
	}
	for i := 0; i < casRetry; i++ {
		m, err := s.Get(id)
		if err != nil {
			return err
		}
		if m.Status != config.MODEL_TRAINING || m.RunId != runId {
			return ErrConditionFailed
		}
		values := map[string]interface{}{
			KModelHeartbeat:  utils.TimestampS(),
			KModelModifyTime: now(),
		}
		if progress > m.TrainingProgress {
			values[KModelProgress] = progress
		}
		ok, err := s.table.CompareAndUpdate(id, map[string]interface{}{
			KModelStatus:   config.MODEL_TRAINING,
			KModelRunId:    runId,
			KModelProgress: m.TrainingProgress,
		}, values)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrConditionFailed
}

func (s *ModelStore) Heartbeat(id, runId string) error {
	return s.runUpdate(id, runId, map[string]interface{}{
		KModelHeartbeat: utils.TimestampS(),
	})
}

// Complete stores the outcome of the run and marks the model completed.
func (s *ModelStore) Complete(id, runId string, results interface{}, metrics map[string]float64,
	insight string, artifact interface{}) error {
	resultsJSON, err := toJSON(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	metricsJSON, err := toJSON(metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	artifactJSON, err := toJSON(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	t := now()
	return s.runUpdate(id, runId, map[string]interface{}{
		KModelStatus:       config.MODEL_COMPLETED,
		KModelProgress:     int64(100),
		KModelResults:      resultsJSON,
		KModelMetrics:      metricsJSON,
		KModelInsight:      insight,
		KModelArtifact:     artifactJSON,
		KModelError:        "",
		KModelCompleteTime: t,
		KModelModifyTime:   t,
	})
}

// Fail marks the run failed; the progress reached so far is kept.
func (s *ModelStore) Fail(id, runId, msg string) error {
	return s.runUpdate(id, runId, map[string]interface{}{
		KModelStatus:     config.MODEL_ERROR,
		KModelError:      msg,
		KModelModifyTime: now(),
	})
}

// RequestCancel flags the current run for cancellation.
// It returns false when the model is not training.
func (s *ModelStore) RequestCancel(id string) (bool, error) {
	for i := 0; i < casRetry; i++ {
		m, err := s.Get(id)
		if err != nil {
			return false, err
		}
		if m.Status != config.MODEL_TRAINING {
			return false, nil
		}
		if m.Cancel == config.CANCEL_VALID {
			return true, nil
		}
		ok, err := s.table.CompareAndUpdate(id, map[string]interface{}{
			KModelStatus: config.MODEL_TRAINING,
			KModelRunId:  m.RunId,
			KModelCancel: m.Cancel,
		}, map[string]interface{}{
			KModelCancel:     int64(config.CANCEL_VALID),
			KModelModifyTime: now(),
		})
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, ErrConditionFailed
}

// CancelRequested reports whether the cancel flag of the run is set.
// A run that lost the row reports ErrConditionFailed.
func (s *ModelStore) CancelRequested(id, runId string) (bool, error) {
	row, err := s.table.Get(id, []string{KModelStatus, KModelRunId, KModelCancel})
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, ErrNotFound
	}
	if rowString(row[KModelStatus]) != config.MODEL_TRAINING || rowString(row[KModelRunId]) != runId {
		return false, ErrConditionFailed
	}
	return rowInt(row[KModelCancel]) == config.CANCEL_VALID, nil
}

// Deploy moves a completed model to deployed; ErrConditionFailed otherwise.
func (s *ModelStore) Deploy(id string) error {
	t := now()
	ok, err := s.table.CompareAndUpdate(id, map[string]interface{}{
		KModelStatus: config.MODEL_COMPLETED,
	}, map[string]interface{}{
		KModelStatus:     config.MODEL_DEPLOYED,
		KModelDeployTime: t,
		KModelModifyTime: t,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConditionFailed
	}
	return nil
}
