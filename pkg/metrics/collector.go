package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "automl_hub"

// Collector holds the hub metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Dataset metrics
	uploadsTotal *prometheus.CounterVec
	uploadBytes  prometheus.Counter

	// Training metrics
	trainingRuns     *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	queueDepth       prometheus.Gauge
	recoveredRuns    *prometheus.CounterVec
	insightsTotal    *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_uploads_total",
			Help:      "Dataset uploads by format and outcome",
		}, []string{"format", "status"}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_upload_bytes_total",
			Help:      "Bytes of uploaded dataset files",
		}),
		trainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs by problem type and outcome",
		}, []string{"problem_type", "outcome"}),
		trainingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{"problem_type"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_queue_depth",
			Help:      "Training jobs waiting for a worker",
		}),
		recoveredRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_recovered_total",
			Help:      "Stale training runs handled by recovery",
		}, []string{"action"}),
		insightsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_total",
			Help:      "LLM insight calls by outcome",
		}, []string{"outcome"}),
	}
}

// Handler promhttp handler over the collector registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordRequest(method, route, status string, d time.Duration) {
	c.requestsTotal.WithLabelValues(method, route, status).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordUpload(format, status string, size int64) {
	c.uploadsTotal.WithLabelValues(format, status).Inc()
	if size > 0 {
		c.uploadBytes.Add(float64(size))
	}
}

func (c *Collector) RecordTraining(problemType, outcome string, d time.Duration) {
	c.trainingRuns.WithLabelValues(problemType, outcome).Inc()
	c.trainingDuration.WithLabelValues(problemType).Observe(d.Seconds())
}

func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// RecordRecovered action is requeued or abandoned
func (c *Collector) RecordRecovered(action string) {
	c.recoveredRuns.WithLabelValues(action).Inc()
}

func (c *Collector) RecordInsight(outcome string) {
	c.insightsTotal.WithLabelValues(outcome).Inc()
}
