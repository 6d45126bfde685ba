package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/metrics"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/module"
	"github.com/devsapp/serverless-automl-hub/pkg/training"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type HubHandler struct {
	datasets  *datastore.DatasetStore
	models    *datastore.ModelStore
	results   *datastore.ResultStore
	objects   module.ObjectStore
	users     *module.UserManager
	engine    *training.Engine
	collector *metrics.Collector
	maxUpload int64
}

func NewHubHandler(datasets *datastore.DatasetStore, modelStore *datastore.ModelStore,
	results *datastore.ResultStore, objects module.ObjectStore, users *module.UserManager,
	engine *training.Engine, collector *metrics.Collector, maxUpload int64) *HubHandler {
	return &HubHandler{
		datasets:  datasets,
		models:    modelStore,
		results:   results,
		objects:   objects,
		users:     users,
		engine:    engine,
		collector: collector,
		maxUpload: maxUpload,
	}
}

// GetProfile profile of the caller, created on first access
// (GET /api/v1/profile)
func (h *HubHandler) GetProfile(c *gin.Context) {
	profile, err := h.users.Profile(currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile update name, company, email
// (PUT /api/v1/profile)
func (h *HubHandler) UpdateProfile(c *gin.Context) {
	request := new(models.UpdateProfileRequest)
	if err := getBindResult(c, request); err != nil {
		handleError(c, http.StatusBadRequest, config.BADREQUEST)
		return
	}
	profile, err := h.users.UpdateProfile(currentUser(c).UserId, request)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListDatasets datasets of the caller, newest first
// (GET /api/v1/datasets)
func (h *HubHandler) ListDatasets(c *gin.Context) {
	datasets, err := h.datasets.ListByUser(currentUser(c).UserId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, datasets)
}

// UploadDataset store the file, parse and profile it
// (POST /api/v1/datasets)
func (h *HubHandler) UploadDataset(c *gin.Context) {
	user := currentUser(c)
	if h.maxUpload > 0 {
		limit := h.maxUpload + multipartSlack
		if c.Request.ContentLength > limit {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	header, err := c.FormFile(fileField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(c)
			return
		}
		handleError(c, http.StatusBadRequest, fmt.Sprintf("multipart field %q is required", fileField))
		return
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		h.tooLarge(c)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	format, err := dataset.DetectFormat(header.Filename, mimeType)
	if err != nil {
		h.collector.RecordUpload("unknown", "rejected", 0)
		handleError(c, http.StatusBadRequest, err.Error())
		return
	}
	file, err := header.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		handleError(c, http.StatusBadRequest, err.Error())
		return
	}

	fileName := utils.SafeFileName(header.Filename)
	name := strings.TrimSpace(c.PostForm(nameField))
	if name == "" {
		name = fileName
	}
	d := &models.Dataset{
		Id:       utils.NewId(),
		UserId:   user.UserId,
		Name:     name,
		FileName: fileName,
		FileSize: int64(len(data)),
		MimeType: mimeType,
	}
	d.StoragePath = module.DatasetKey(user.UserId, d.Id, fileName)
	logger := logrus.WithFields(logrus.Fields{"datasetId": d.Id, "userId": user.UserId})
	if err := h.objects.UploadFileByByte(d.StoragePath, data); err != nil {
		logger.Errorf("upload dataset object fail: %s", err.Error())
		h.collector.RecordUpload(string(format), "error", d.FileSize)
		handleError(c, http.StatusInternalServerError, config.INTERNALERROR)
		return
	}
	if err := h.datasets.Create(d); err != nil {
		h.objects.DeleteFile(d.StoragePath)
		writeError(c, err)
		return
	}
	if err := h.datasets.StartProcessing(d.Id); err != nil {
		writeError(c, err)
		return
	}

	table, err := dataset.Parse(header.Filename, mimeType, data)
	if err != nil {
		logger.Warnf("parse dataset fail: %s", err.Error())
		if err := h.datasets.UpdateStatus(d.Id, config.DATASET_ERROR, err.Error()); err != nil {
			logger.Errorf("update dataset status fail: %s", err.Error())
		}
		h.collector.RecordUpload(string(format), "error", d.FileSize)
		handleError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.datasets.SetProfile(d.Id, dataset.Profile(table)); err != nil {
		writeError(c, err)
		return
	}
	h.collector.RecordUpload(string(format), "processed", d.FileSize)
	stored, err := h.datasets.Get(d.Id)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Infof("dataset processed, rows=%d columns=%d", stored.RowCount, stored.ColumnCount)
	c.JSON(http.StatusCreated, stored)
}

func (h *HubHandler) tooLarge(c *gin.Context) {
	h.collector.RecordUpload("unknown", "rejected", 0)
	handleError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
}

// ownedDataset dataset row of the caller
func (h *HubHandler) ownedDataset(c *gin.Context, datasetId string) (*models.Dataset, bool) {
	if !utils.IsId(datasetId) {
		writeError(c, datastore.ErrNotFound)
		return nil, false
	}
	d, err := h.datasets.Get(datasetId)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if d.UserId != currentUser(c).UserId {
		writeError(c, training.ErrForbidden)
		return nil, false
	}
	return d, true
}

// loadTable parse the stored file of a processed dataset
func (h *HubHandler) loadTable(c *gin.Context, d *models.Dataset) (*dataset.Table, bool) {
	if d.Status != config.DATASET_PROCESSED {
		writeError(c, fmt.Errorf("%w: dataset status is %s", training.ErrDatasetNotReady, d.Status))
		return nil, false
	}
	data, err := h.objects.DownloadFileToBytes(d.StoragePath)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	table, err := dataset.Parse(d.FileName, d.MimeType, data)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return table, true
}

// GetDataset dataset with its data profile
// (GET /api/v1/datasets/{datasetId})
func (h *HubHandler) GetDataset(c *gin.Context, datasetId string) {
	d, ok := h.ownedDataset(c, datasetId)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeleteDataset remove the object and the row
// (DELETE /api/v1/datasets/{datasetId})
func (h *HubHandler) DeleteDataset(c *gin.Context, datasetId string) {
	d, ok := h.ownedDataset(c, datasetId)
	if !ok {
		return
	}
	if err := h.objects.DeleteFile(d.StoragePath); err != nil && !errors.Is(err, module.ErrObjectNotFound) {
		writeError(c, err)
		return
	}
	if err := h.datasets.Delete(d.Id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PreviewDataset first rows of the dataset
// (GET /api/v1/datasets/{datasetId}/preview)
func (h *HubHandler) PreviewDataset(c *gin.Context, datasetId string, params PreviewDatasetParams) {
	rows := dataset.DefaultPreviewRows
	if params.Rows != nil {
		rows = *params.Rows
	}
	if rows < 1 || rows > dataset.MaxPreviewRows {
		handleError(c, http.StatusBadRequest, fmt.Sprintf("rows must be in [1, %d]", dataset.MaxPreviewRows))
		return
	}
	d, ok := h.ownedDataset(c, datasetId)
	if !ok {
		return
	}
	table, ok := h.loadTable(c, d)
	if !ok {
		return
	}
	columns := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columns[i] = col.Name
	}
	c.JSON(http.StatusOK, &models.PreviewResponse{
		Columns: columns,
		Rows:    table.Preview(rows),
		Total:   len(table.Rows),
	})
}

// BuildChart aggregate the dataset into a chart series
// (POST /api/v1/datasets/{datasetId}/charts)
func (h *HubHandler) BuildChart(c *gin.Context, datasetId string) {
	request := new(models.ChartRequest)
	if err := getBindResult(c, request); err != nil {
		handleError(c, http.StatusBadRequest, config.BADREQUEST)
		return
	}
	d, ok := h.ownedDataset(c, datasetId)
	if !ok {
		return
	}
	table, ok := h.loadTable(c, d)
	if !ok {
		return
	}
	chart, err := dataset.BuildChart(table, dataset.ChartRequest{
		Type:      dataset.ChartType(request.Type),
		X:         request.X,
		Y:         request.Y,
		Aggregate: dataset.Aggregate(request.Aggregate),
		Limit:     request.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chart)
}

// ListModels models of the caller
// (GET /api/v1/models)
func (h *HubHandler) ListModels(c *gin.Context) {
	list, err := h.models.ListByUser(currentUser(c).UserId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateModel validate the configuration against the dataset schema and store the model
// (POST /api/v1/models)
func (h *HubHandler) CreateModel(c *gin.Context) {
	request := new(models.CreateModelRequest)
	if err := getBindResult(c, request); err != nil {
		handleError(c, http.StatusBadRequest, config.BADREQUEST)
		return
	}
	request.Name = strings.TrimSpace(request.Name)
	if request.Name == "" || request.DatasetId == "" {
		handleError(c, http.StatusBadRequest, "name and datasetId are required")
		return
	}
	d, ok := h.ownedDataset(c, request.DatasetId)
	if !ok {
		return
	}
	if d.Status != config.DATASET_PROCESSED {
		writeError(c, fmt.Errorf("%w: dataset status is %s", training.ErrDatasetNotReady, d.Status))
		return
	}
	cfg := request.Configuration
	if err := h.engine.ValidateConfig(request.ProblemType, &cfg, d.DataProfile); err != nil {
		writeError(c, err)
		return
	}
	subtype := problemSubtype(request.ProblemType, &cfg, d.DataProfile)
	if request.ProblemSubtype != nil && *request.ProblemSubtype != "" {
		subtype = *request.ProblemSubtype
	}
	m := &models.MLModel{
		Id:             utils.NewId(),
		UserId:         currentUser(c).UserId,
		DatasetId:      d.Id,
		Name:           request.Name,
		ProblemType:    request.ProblemType,
		ProblemSubtype: subtype,
		Configuration:  cfg,
	}
	if err := h.models.Create(m); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// problemSubtype derived from the validated configuration
func problemSubtype(problemType string, cfg *models.ModelConfig, profile *dataset.DataProfile) string {
	switch problemType {
	case config.CLASSIFICATION:
		for _, col := range profile.Columns {
			if col.Name == cfg.TargetColumn {
				if col.Unique == 2 {
					return "binary"
				}
				return "multiclass"
			}
		}
	case config.REGRESSION:
		return "linear"
	case config.CLUSTERING:
		return "kmeans"
	case config.FORECASTING:
		return "time_series"
	case config.RECOMMENDATION:
		if cfg.RatingColumn == "" {
			return "implicit"
		}
		return "explicit"
	}
	return ""
}

func (h *HubHandler) ownedModel(c *gin.Context, modelId string) (*models.MLModel, bool) {
	if !utils.IsId(modelId) {
		writeError(c, datastore.ErrNotFound)
		return nil, false
	}
	m, err := h.models.Get(modelId)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if m.UserId != currentUser(c).UserId {
		writeError(c, training.ErrForbidden)
		return nil, false
	}
	return m, true
}

// GetModel model with results and metrics
// (GET /api/v1/models/{modelId})
func (h *HubHandler) GetModel(c *gin.Context, modelId string) {
	m, ok := h.ownedModel(c, modelId)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteModel drop the model and its result history, a running run is cancelled first
// (DELETE /api/v1/models/{modelId})
func (h *HubHandler) DeleteModel(c *gin.Context, modelId string) {
	m, ok := h.ownedModel(c, modelId)
	if !ok {
		return
	}
	if m.Status == config.MODEL_TRAINING {
		if err := h.engine.Cancel(c.Request.Context(), m.UserId, m.Id); err != nil && !errors.Is(err, training.ErrNotTraining) {
			writeError(c, err)
			return
		}
	}
	// row before history, a finishing run drops its result once the row is gone
	if err := h.models.Delete(m.Id); err != nil {
		writeError(c, err)
		return
	}
	if err := h.results.DeleteByModel(m.Id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TrainModel submit a training run
// (POST /api/v1/models/{modelId}/train)
func (h *HubHandler) TrainModel(c *gin.Context, modelId string) {
	resp, err := h.engine.Submit(c.Request.Context(), currentUser(c).UserId, modelId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(asyncSuccessCode, resp)
}

func progressResponse(m *models.MLModel) *models.ProgressResponse {
	return &models.ProgressResponse{
		ModelId:          m.Id,
		Status:           m.Status,
		TrainingProgress: m.TrainingProgress,
		RunId:            m.RunId,
		Attempt:          m.Attempt,
		ErrorMessage:     m.ErrorMessage,
	}
}

// GetModelProgress status and progress of the current run
// (GET /api/v1/models/{modelId}/progress)
func (h *HubHandler) GetModelProgress(c *gin.Context, modelId string) {
	m, ok := h.ownedModel(c, modelId)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, progressResponse(m))
}

// CancelModel cancel the current run
// (POST /api/v1/models/{modelId}/cancel)
func (h *HubHandler) CancelModel(c *gin.Context, modelId string) {
	user := currentUser(c)
	if err := h.engine.Cancel(c.Request.Context(), user.UserId, modelId); err != nil {
		writeError(c, err)
		return
	}
	m, err := h.models.Get(modelId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progressResponse(m))
}

// DeployModel completed -> deployed
// (POST /api/v1/models/{modelId}/deploy)
func (h *HubHandler) DeployModel(c *gin.Context, modelId string) {
	m, ok := h.ownedModel(c, modelId)
	if !ok {
		return
	}
	if m.Status == config.MODEL_DEPLOYED {
		c.JSON(http.StatusOK, m)
		return
	}
	if err := h.models.Deploy(m.Id); err != nil {
		if errors.Is(err, datastore.ErrConditionFailed) {
			handleError(c, http.StatusConflict, fmt.Sprintf("model status is %s, only completed models can be deployed", m.Status))
			return
		}
		writeError(c, err)
		return
	}
	m, err := h.models.Get(modelId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// PredictModel score new input with the trained artifact
// (POST /api/v1/models/{modelId}/predict)
func (h *HubHandler) PredictModel(c *gin.Context, modelId string) {
	request := new(models.PredictRequest)
	if err := getBindResult(c, request); err != nil {
		handleError(c, http.StatusBadRequest, config.BADREQUEST)
		return
	}
	resp, err := h.engine.Predict(c.Request.Context(), currentUser(c).UserId, modelId, request)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListModelResults result history of one model, newest first
// (GET /api/v1/models/{modelId}/results)
func (h *HubHandler) ListModelResults(c *gin.Context, modelId string) {
	m, ok := h.ownedModel(c, modelId)
	if !ok {
		return
	}
	list, err := h.results.ListByModel(m.Id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListResults every result of the caller
// (GET /api/v1/results)
func (h *HubHandler) ListResults(c *gin.Context) {
	list, err := h.results.ListByUser(currentUser(c).UserId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// InternalTrain run a dispatched training run inside the worker function
// (POST /internal/train)
func (h *HubHandler) InternalTrain(c *gin.Context, params InternalTrainParams) {
	if !h.users.VerifyWorkerKey(params.XWorkerKey) {
		handleError(c, http.StatusUnauthorized, config.UNAUTHORIZED)
		return
	}
	request := new(models.InternalTrainRequest)
	if err := getBindResult(c, request); err != nil || request.ModelId == "" || request.RunId == "" {
		handleError(c, http.StatusBadRequest, config.BADREQUEST)
		return
	}
	err := h.engine.Run(c.Request.Context(), &training.Job{ModelId: request.ModelId, RunId: request.RunId})
	switch {
	case errors.Is(err, training.ErrStaleRun), errors.Is(err, training.ErrAlreadyRunning):
		writeError(c, err)
		return
	case training.IsTransient(err), err != nil && c.Request.Context().Err() != nil:
		handleError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	m, err := h.models.Get(request.ModelId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progressResponse(m))
}
