package module

import (
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/sirupsen/logrus"
)

// CancelEvent training cancel signal callback, stop receives nil for a user cancel
// and the datastore error when the run lost its row
func CancelEvent(modelId string, stop func(cause error)) CallBack {
	return func(v any) {
		cause, _ := v.(error)
		logrus.WithField("modelId", modelId).Infof("listen cancel signal, cause=%v", cause)
		stop(cause)
	}
}

// StaleEvent stale training runs callback
func StaleEvent(requeue func(stale []*models.MLModel)) CallBack {
	return func(v any) {
		stale, ok := v.([]*models.MLModel)
		if !ok || len(stale) == 0 {
			return
		}
		logrus.Infof("listen stale signal, %d training runs", len(stale))
		requeue(stale)
	}
}
