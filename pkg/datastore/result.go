package datastore

import (
	"fmt"
	"sort"

	"github.com/devsapp/serverless-automl-hub/pkg/models"
)

var resultColumns = []string{KResultUser, KResultModel, KResultModelName, KResultProblemType, KResultRunId,
	KResultMetrics, KResultResults, KResultInsight, KResultCreateTime}

// ResultStore history of completed runs, written once per run
type ResultStore struct {
	table Datastore
}

func NewResultStore(table Datastore) *ResultStore {
	return &ResultStore{table: table}
}

func (s *ResultStore) Append(r *models.ModelResult) error {
	metrics, err := toJSON(r.Metrics)
	if err != nil {
		return err
	}
	if r.CreatedAt == "" {
		r.CreatedAt = now()
	}
	return s.table.Put(r.Id, map[string]interface{}{
		KResultUser:        r.UserId,
		KResultModel:       r.ModelId,
		KResultModelName:   r.ModelName,
		KResultProblemType: r.ProblemType,
		KResultRunId:       r.RunId,
		KResultMetrics:     metrics,
		KResultResults:     string(r.Results),
		KResultInsight:     r.Insight,
		KResultCreateTime:  r.CreatedAt,
	})
}

func resultFromRow(id string, row map[string]interface{}) (*models.ModelResult, error) {
	r := &models.ModelResult{
		Id:          id,
		UserId:      rowString(row[KResultUser]),
		ModelId:     rowString(row[KResultModel]),
		ModelName:   rowString(row[KResultModelName]),
		ProblemType: rowString(row[KResultProblemType]),
		RunId:       rowString(row[KResultRunId]),
		Results:     rawJSON(row[KResultResults]),
		Insight:     rowString(row[KResultInsight]),
		CreatedAt:   rowString(row[KResultCreateTime]),
	}
	if err := fromJSON(row[KResultMetrics], &r.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics of result %s: %w", id, err)
	}
	return r, nil
}

func (s *ResultStore) list(match func(row map[string]interface{}) bool) ([]*models.ModelResult, error) {
	rows, err := s.table.ListAll(resultColumns)
	if err != nil {
		return nil, err
	}
	ret := make([]*models.ModelResult, 0)
	for id, row := range rows {
		if !match(row) {
			continue
		}
		r, err := resultFromRow(id, row)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt != ret[j].CreatedAt {
			return ret[i].CreatedAt > ret[j].CreatedAt
		}
		return ret[i].Id < ret[j].Id
	})
	return ret, nil
}

func (s *ResultStore) ListByModel(modelId string) ([]*models.ModelResult, error) {
	return s.list(func(row map[string]interface{}) bool {
		return rowString(row[KResultModel]) == modelId
	})
}

func (s *ResultStore) ListByUser(userId string) ([]*models.ModelResult, error) {
	return s.list(func(row map[string]interface{}) bool {
		return rowString(row[KResultUser]) == userId
	})
}

// DeleteByModel drops the history of a deleted model.
func (s *ResultStore) DeleteByModel(modelId string) error {
	results, err := s.ListByModel(modelId)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := s.table.Delete(r.Id); err != nil {
			return err
		}
	}
	return nil
}
