package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devsapp/serverless-automl-hub/api"
	"github.com/devsapp/serverless-automl-hub/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	swagger, err := api.GetSwagger()
	require.NoError(t, err)
	return NewRouter(nil, metrics.NewCollector(), nil, swagger, gin.TestMode)
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouterAmbientRoutes(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(router, http.MethodGet, "/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/api/v1/models/{modelId}/train")

	// the previous requests are counted by route template
	w = serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/healthz"`)

	w = serve(router, http.MethodOptions, "/api/v1/models")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouterPathParamError(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/train", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, http.StatusBadRequest, body["code"])
	assert.Contains(t, body["message"], "X-Worker-Key")
}
