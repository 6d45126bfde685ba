package datastore

import (
	"fmt"
	"sort"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
)

var datasetColumns = []string{KDatasetUser, KDatasetName, KDatasetFileName, KDatasetFileSize, KDatasetMimeType,
	KDatasetRowCount, KDatasetColumnCount, KDatasetProfile, KDatasetStoragePath, KDatasetStatus, KDatasetError,
	KDatasetCreateTime, KDatasetModifyTime}

type DatasetStore struct {
	table Datastore
}

func NewDatasetStore(table Datastore) *DatasetStore {
	return &DatasetStore{table: table}
}

func (s *DatasetStore) Create(d *models.Dataset) error {
	if d.Status == "" {
		d.Status = config.DATASET_UPLOADED
	}
	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	profile := ""
	if d.DataProfile != nil {
		var err error
		if profile, err = toJSON(d.DataProfile); err != nil {
			return err
		}
	}
	return s.table.Put(d.Id, map[string]interface{}{
		KDatasetUser:        d.UserId,
		KDatasetName:        d.Name,
		KDatasetFileName:    d.FileName,
		KDatasetFileSize:    d.FileSize,
		KDatasetMimeType:    d.MimeType,
		KDatasetRowCount:    d.RowCount,
		KDatasetColumnCount: d.ColumnCount,
		KDatasetProfile:     profile,
		KDatasetStoragePath: d.StoragePath,
		KDatasetStatus:      d.Status,
		KDatasetError:       d.ErrorMessage,
		KDatasetCreateTime:  d.CreatedAt,
		KDatasetModifyTime:  d.UpdatedAt,
	})
}

func datasetFromRow(id string, row map[string]interface{}) (*models.Dataset, error) {
	d := &models.Dataset{
		Id:           id,
		UserId:       rowString(row[KDatasetUser]),
		Name:         rowString(row[KDatasetName]),
		FileName:     rowString(row[KDatasetFileName]),
		FileSize:     rowInt(row[KDatasetFileSize]),
		MimeType:     rowString(row[KDatasetMimeType]),
		RowCount:     rowInt(row[KDatasetRowCount]),
		ColumnCount:  rowInt(row[KDatasetColumnCount]),
		StoragePath:  rowString(row[KDatasetStoragePath]),
		Status:       rowString(row[KDatasetStatus]),
		ErrorMessage: rowString(row[KDatasetError]),
		CreatedAt:    rowString(row[KDatasetCreateTime]),
		UpdatedAt:    rowString(row[KDatasetModifyTime]),
	}
	if rowString(row[KDatasetProfile]) != "" {
		d.DataProfile = new(dataset.DataProfile)
		if err := fromJSON(row[KDatasetProfile], d.DataProfile); err != nil {
			return nil, fmt.Errorf("decode data profile of %s: %w", id, err)
		}
	}
	return d, nil
}

func (s *DatasetStore) Get(id string) (*models.Dataset, error) {
	row, err := s.table.Get(id, datasetColumns)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return datasetFromRow(id, row)
}

// ListByUser newest first
func (s *DatasetStore) ListByUser(userId string) ([]*models.Dataset, error) {
	rows, err := s.table.ListAll(datasetColumns)
	if err != nil {
		return nil, err
	}
	ret := make([]*models.Dataset, 0)
	for id, row := range rows {
		if rowString(row[KDatasetUser]) != userId {
			continue
		}
		d, err := datasetFromRow(id, row)
		if err != nil {
			return nil, err
		}
		ret = append(ret, d)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt != ret[j].CreatedAt {
			return ret[i].CreatedAt > ret[j].CreatedAt
		}
		return ret[i].Id < ret[j].Id
	})
	return ret, nil
}

// StartProcessing moves an uploaded dataset to processing.
// ErrConditionFailed means the dataset is not in the uploaded state.
func (s *DatasetStore) StartProcessing(id string) error {
	ok, err := s.table.CompareAndUpdate(id, map[string]interface{}{
		KDatasetStatus: config.DATASET_UPLOADED,
	}, map[string]interface{}{
		KDatasetStatus:     config.DATASET_PROCESSING,
		KDatasetModifyTime: now(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConditionFailed
	}
	return nil
}

func (s *DatasetStore) UpdateStatus(id, status, errMsg string) error {
	return s.table.Update(id, map[string]interface{}{
		KDatasetStatus:     status,
		KDatasetError:      errMsg,
		KDatasetModifyTime: now(),
	})
}

// SetProfile stores the data profile and marks the dataset processed.
func (s *DatasetStore) SetProfile(id string, profile *dataset.DataProfile) error {
	data, err := toJSON(profile)
	if err != nil {
		return err
	}
	return s.table.Update(id, map[string]interface{}{
		KDatasetProfile:     data,
		KDatasetRowCount:    int64(profile.RowCount),
		KDatasetColumnCount: int64(profile.ColumnCount),
		KDatasetStatus:      config.DATASET_PROCESSED,
		KDatasetError:       "",
		KDatasetModifyTime:  now(),
	})
}

func (s *DatasetStore) Delete(id string) error {
	return s.table.Delete(id)
}
