// Package models holds the request, response and row types of the hub api.
package models

import (
	"encoding/json"

	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
)

// Profile defines model for Profile.
type Profile struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// UpdateProfileRequest defines body for PUT /api/v1/profile.
type UpdateProfileRequest struct {
	Name    *string `json:"name,omitempty"`
	Company *string `json:"company,omitempty"`
	Email   *string `json:"email,omitempty"`
}

// Dataset defines model for Dataset.
type Dataset struct {
	Id           string               `json:"id"`
	UserId       string               `json:"userId"`
	Name         string               `json:"name"`
	FileName     string               `json:"fileName"`
	FileSize     int64                `json:"fileSize"`
	MimeType     string               `json:"mimeType"`
	RowCount     int64                `json:"rowCount"`
	ColumnCount  int64                `json:"columnCount"`
	DataProfile  *dataset.DataProfile `json:"dataProfile,omitempty"`
	StoragePath  string               `json:"storagePath"`
	Status       string               `json:"status"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	CreatedAt    string               `json:"createdAt"`
	UpdatedAt    string               `json:"updatedAt"`
}

// PreviewResponse defines model for dataset preview.
type PreviewResponse struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
	Total   int                 `json:"total"`
}

// ChartRequest defines body for POST /api/v1/datasets/{datasetId}/charts.
type ChartRequest struct {
	Type      string `json:"type"`
	X         string `json:"x"`
	Y         string `json:"y,omitempty"`
	Aggregate string `json:"aggregate,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ModelConfig is the typed training configuration; which fields apply depends on the problem type.
type ModelConfig struct {
	// classification, regression
	TargetColumn string `json:"targetColumn,omitempty"`
	// classification, regression, clustering
	FeatureColumns []string `json:"featureColumns,omitempty"`
	TestRatio      float64  `json:"testRatio,omitempty"`

	// classification
	LearningRate float64 `json:"learningRate,omitempty"`
	Epochs       int     `json:"epochs,omitempty"`
	L2           float64 `json:"l2,omitempty"`

	// clustering
	K             int `json:"k,omitempty"`
	MaxIterations int `json:"maxIterations,omitempty"`

	// forecasting
	DateColumn   string `json:"dateColumn,omitempty"`
	ValueColumn  string `json:"valueColumn,omitempty"`
	Horizon      int    `json:"horizon,omitempty"`
	SeasonLength int    `json:"seasonLength,omitempty"`

	// recommendation
	UserColumn   string `json:"userColumn,omitempty"`
	ItemColumn   string `json:"itemColumn,omitempty"`
	RatingColumn string `json:"ratingColumn,omitempty"`
	TopN         int    `json:"topN,omitempty"`
	Neighbors    int    `json:"neighbors,omitempty"`

	Seed int64 `json:"seed,omitempty"`
}

// MLModel defines model for MLModel.
type MLModel struct {
	Id               string             `json:"id"`
	UserId           string             `json:"userId"`
	DatasetId        string             `json:"datasetId"`
	Name             string             `json:"name"`
	ProblemType      string             `json:"problemType"`
	ProblemSubtype   string             `json:"problemSubtype,omitempty"`
	Configuration    ModelConfig        `json:"configuration"`
	Status           string             `json:"status"`
	TrainingProgress int64              `json:"trainingProgress"`
	RunId            string             `json:"runId,omitempty"`
	Attempt          int64              `json:"attempt"`
	Cancel           int64              `json:"-"`
	Heartbeat        int64              `json:"-"`
	ErrorMessage     string             `json:"errorMessage,omitempty"`
	Results          json.RawMessage    `json:"results,omitempty"`
	Metrics          map[string]float64 `json:"metrics,omitempty"`
	Insight          string             `json:"insight,omitempty"`
	Artifact         json.RawMessage    `json:"-"`
	CreatedAt        string             `json:"createdAt"`
	UpdatedAt        string             `json:"updatedAt"`
	CompletedAt      string             `json:"completedAt,omitempty"`
	DeployedAt       string             `json:"deployedAt,omitempty"`
}

// CreateModelRequest defines body for POST /api/v1/models.
type CreateModelRequest struct {
	Name           string      `json:"name"`
	DatasetId      string      `json:"datasetId"`
	ProblemType    string      `json:"problemType"`
	ProblemSubtype *string     `json:"problemSubtype,omitempty"`
	Configuration  ModelConfig `json:"configuration"`
}

// TrainResponse defines model for an accepted training submission.
type TrainResponse struct {
	ModelId string `json:"modelId"`
	RunId   string `json:"runId"`
	Status  string `json:"status"`
	Attempt int64  `json:"attempt"`
}

// ProgressResponse defines model for GET /api/v1/models/{modelId}/progress.
type ProgressResponse struct {
	ModelId          string `json:"modelId"`
	Status           string `json:"status"`
	TrainingProgress int64  `json:"trainingProgress"`
	RunId            string `json:"runId,omitempty"`
	Attempt          int64  `json:"attempt"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

// PredictRequest defines body for POST /api/v1/models/{modelId}/predict.
// Rows feed classification, regression and clustering, Users recommendation, Horizon forecasting.
type PredictRequest struct {
	Rows    []map[string]interface{} `json:"rows,omitempty"`
	Users   []string                 `json:"users,omitempty"`
	TopN    int                      `json:"topN,omitempty"`
	Horizon int                      `json:"horizon,omitempty"`
}

// PredictResponse defines model for predictions.
type PredictResponse struct {
	ModelId     string        `json:"modelId"`
	ProblemType string        `json:"problemType"`
	Predictions []interface{} `json:"predictions"`
}

// ModelResult defines model for ModelResult.
type ModelResult struct {
	Id          string             `json:"id"`
	UserId      string             `json:"userId"`
	ModelId     string             `json:"modelId"`
	ModelName   string             `json:"modelName"`
	ProblemType string             `json:"problemType"`
	RunId       string             `json:"runId"`
	Metrics     map[string]float64 `json:"metrics"`
	Results     json.RawMessage    `json:"results,omitempty"`
	Insight     string             `json:"insight,omitempty"`
	CreatedAt   string             `json:"createdAt"`
}

// InternalTrainRequest defines body for POST /internal/train.
type InternalTrainRequest struct {
	ModelId string `json:"modelId"`
	RunId   string `json:"runId"`
}
