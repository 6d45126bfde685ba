package handler

import (
	"errors"
	"net/http"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/dataset"
	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/ml"
	"github.com/devsapp/serverless-automl-hub/pkg/module"
	"github.com/devsapp/serverless-automl-hub/pkg/training"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

const (
	userKey          = "hub/user"
	fileField        = "file"
	nameField        = "name"
	asyncSuccessCode = http.StatusAccepted

	// room for multipart boundaries and part headers on top of the file limit
	multipartSlack = 64 << 10
)

func getBindResult(c *gin.Context, in interface{}) error {
	if err := binding.JSON.Bind(c.Request, in); err != nil {
		return err
	}
	return nil
}

func handleError(c *gin.Context, code int, err string) {
	c.AbortWithStatusJSON(code, module.Error{Code: int32(code), Message: err})
}

// errorStatus status code of an error returned by the stores or the engine
func errorStatus(err error) int {
	switch {
	case errors.Is(err, datastore.ErrNotFound), errors.Is(err, module.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, training.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, training.ErrInvalidConfig), errors.Is(err, training.ErrInvalidPredict),
		errors.Is(err, training.ErrUnsupported), errors.Is(err, dataset.ErrInvalidChart),
		errors.Is(err, dataset.ErrColumnNotFound), errors.Is(err, dataset.ErrNotNumeric),
		errors.Is(err, dataset.ErrUnsupportedFormat), errors.Is(err, dataset.ErrEmptyDataset),
		errors.Is(err, ml.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, training.ErrDatasetNotReady), errors.Is(err, training.ErrNotTraining),
		errors.Is(err, training.ErrNotTrained), errors.Is(err, training.ErrAlreadyRunning),
		errors.Is(err, training.ErrStaleRun), errors.Is(err, training.ErrNoArtifact),
		errors.Is(err, datastore.ErrConditionFailed):
		return http.StatusConflict
	case errors.Is(err, training.ErrQueueFull):
		return http.StatusServiceUnavailable
	case training.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError map err to a status, internal errors are logged and not echoed
func writeError(c *gin.Context, err error) {
	code := errorStatus(err)
	switch code {
	case http.StatusInternalServerError:
		logrus.WithField("path", c.FullPath()).Errorf("request fail: %s", err.Error())
		handleError(c, code, config.INTERNALERROR)
	case http.StatusNotFound:
		handleError(c, code, config.NOTFOUND)
	case http.StatusForbidden:
		handleError(c, code, config.FORBIDDEN)
	default:
		handleError(c, code, err.Error())
	}
}

// currentUser set by ApiAuth
func currentUser(c *gin.Context) *module.UserInfo {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*module.UserInfo); ok {
			return user
		}
	}
	return &module.UserInfo{UserId: module.AnonymousUser}
}
