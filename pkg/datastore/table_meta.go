package datastore

// profiles table
const (
	KProfileTableName  = "profiles"
	KProfileId         = "id"
	KProfileName       = "name"
	KProfileCompany    = "company"
	KProfileEmail      = "email"
	KProfileCreateTime = "created_at"
	KProfileModifyTime = "updated_at"
)

// datasets table
const (
	KDatasetTableName   = "datasets"
	KDatasetId          = "id"
	KDatasetUser        = "user_id"
	KDatasetName        = "name"
	KDatasetFileName    = "file_name"
	KDatasetFileSize    = "file_size"
	KDatasetMimeType    = "mime_type"
	KDatasetRowCount    = "row_count"
	KDatasetColumnCount = "column_count"
	KDatasetProfile     = "data_profile"
	KDatasetStoragePath = "storage_path"
	KDatasetStatus      = "status"
	KDatasetError       = "error_message"
	KDatasetCreateTime  = "created_at"
	KDatasetModifyTime  = "updated_at"
)

// models table
const (
	KModelTableName      = "models"
	KModelId             = "id"
	KModelUser           = "user_id"
	KModelDataset        = "dataset_id"
	KModelName           = "name"
	KModelProblemType    = "problem_type"
	KModelProblemSubtype = "problem_subtype"
	KModelConfiguration  = "configuration"
	KModelStatus         = "status"
	KModelProgress       = "training_progress"
	KModelRunId          = "run_id"
	KModelAttempt        = "attempt"
	KModelCancel         = "cancel"
	KModelHeartbeat      = "heartbeat"
	KModelError          = "error_message"
	KModelResults        = "results"
	KModelMetrics        = "metrics"
	KModelInsight        = "insight"
	KModelArtifact       = "artifact"
	KModelCreateTime     = "created_at"
	KModelModifyTime     = "updated_at"
	KModelCompleteTime   = "completed_at"
	KModelDeployTime     = "deployed_at"
)

// model_results table
const (
	KResultTableName   = "model_results"
	KResultId          = "id"
	KResultUser        = "user_id"
	KResultModel       = "model_id"
	KResultModelName   = "model_name"
	KResultProblemType = "problem_type"
	KResultRunId       = "run_id"
	KResultMetrics     = "metrics"
	KResultResults     = "results"
	KResultInsight     = "insight"
	KResultCreateTime  = "created_at"
)

type tableMeta struct {
	primaryKey string
	columns    map[string]string
	maxVersion int
}

var tableMetas = map[string]tableMeta{
	KProfileTableName: {
		primaryKey: KProfileId,
		columns: map[string]string{
			KProfileId:         TypeText,
			KProfileName:       TypeText,
			KProfileCompany:    TypeText,
			KProfileEmail:      TypeText,
			KProfileCreateTime: TypeText,
			KProfileModifyTime: TypeText,
		},
	},
	KDatasetTableName: {
		primaryKey: KDatasetId,
		columns: map[string]string{
			KDatasetId:          TypeText,
			KDatasetUser:        TypeText,
			KDatasetName:        TypeText,
			KDatasetFileName:    TypeText,
			KDatasetFileSize:    TypeInt,
			KDatasetMimeType:    TypeText,
			KDatasetRowCount:    TypeInt,
			KDatasetColumnCount: TypeInt,
			KDatasetProfile:     TypeText,
			KDatasetStoragePath: TypeText,
			KDatasetStatus:      TypeText,
			KDatasetError:       TypeText,
			KDatasetCreateTime:  TypeText,
			KDatasetModifyTime:  TypeText,
		},
	},
	KModelTableName: {
		primaryKey: KModelId,
		columns: map[string]string{
			KModelId:             TypeText,
			KModelUser:           TypeText,
			KModelDataset:        TypeText,
			KModelName:           TypeText,
			KModelProblemType:    TypeText,
			KModelProblemSubtype: TypeText,
			KModelConfiguration:  TypeText,
			KModelStatus:         TypeText,
			KModelProgress:       TypeInt,
			KModelRunId:          TypeText,
			KModelAttempt:        TypeInt,
			KModelCancel:         TypeInt,
			KModelHeartbeat:      TypeInt,
			KModelError:          TypeText,
			KModelResults:        TypeText,
			KModelMetrics:        TypeText,
			KModelInsight:        TypeText,
			KModelArtifact:       TypeText,
			KModelCreateTime:     TypeText,
			KModelModifyTime:     TypeText,
			KModelCompleteTime:   TypeText,
			KModelDeployTime:     TypeText,
		},
	},
	KResultTableName: {
		primaryKey: KResultId,
		columns: map[string]string{
			KResultId:          TypeText,
			KResultUser:        TypeText,
			KResultModel:       TypeText,
			KResultModelName:   TypeText,
			KResultProblemType: TypeText,
			KResultRunId:       TypeText,
			KResultMetrics:     TypeText,
			KResultResults:     TypeText,
			KResultInsight:     TypeText,
			KResultCreateTime:  TypeText,
		},
	},
}
