package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("GET", "/healthz", "200", 10*time.Millisecond)
	c.RecordUpload("csv", "processed", 128)
	c.RecordTraining("regression", "completed", time.Second)
	c.RecordTraining("regression", "error", time.Second)
	c.SetQueueDepth(3)
	c.RecordRecovered("requeued")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "/healthz", "200")))
	assert.Equal(t, 128.0, testutil.ToFloat64(c.uploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trainingRuns.WithLabelValues("regression", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.queueDepth))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "automl_hub_training_runs_total")

	// collectors are independent
	other := NewCollector()
	assert.Equal(t, 0.0, testutil.ToFloat64(other.queueDepth))
}
