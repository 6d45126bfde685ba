package config

import "time"

const (
	// dataset status
	DATASET_UPLOADED   = "uploaded"
	DATASET_PROCESSING = "processing"
	DATASET_PROCESSED  = "processed"
	DATASET_ERROR      = "error"

	// model status
	MODEL_CREATED   = "created"
	MODEL_TRAINING  = "training"
	MODEL_COMPLETED = "completed"
	MODEL_ERROR     = "error"
	MODEL_DEPLOYED  = "deployed"

	CANCEL_INIT  = 0
	CANCEL_VALID = 1

	HTTPTIMEOUT = 60 * time.Second
)

// problem type
const (
	CLASSIFICATION = "classification"
	REGRESSION     = "regression"
	CLUSTERING     = "clustering"
	FORECASTING    = "forecasting"
	RECOMMENDATION = "recommendation"
)

// ERROR message
const (
	INTERNALERROR = "an internal error"
	BADREQUEST    = "bad request body"
	NOTFOUND      = "not found"
	UNAUTHORIZED  = "unauthorized"
	FORBIDDEN     = "forbidden"
	TRAINCANCEL   = "training cancelled"
)

// env
const (
	ENV_PREFIX        = "AUTOML"
	ACCOUNT_ID        = "ALIBABA_CLOUD_ACCOUNT_ID"
	ACCESS_KEY_ID     = "ALIBABA_CLOUD_ACCESS_KEY_ID"
	ACCESS_KEY_SECRET = "ALIBABA_CLOUD_ACCESS_KEY_SECRET"
	ACCESS_KET_TOKEN  = "ALIBABA_CLOUD_SECURITY_TOKEN"
)

// mode
const (
	LOCAL       = "local"
	REMOTE      = "remote"
	DISPATCH_FC = "fc"
	REDIS       = "redis"
)

// http header
const (
	WORKER_KEY_HEADER = "X-Worker-Key"
	USER_ID_HEADER    = "X-User-Id"
	FC_ASYNC_KEY      = "X-Fc-Invocation-Type"
	FC_ASYNC_VALUE    = "Async"
)
