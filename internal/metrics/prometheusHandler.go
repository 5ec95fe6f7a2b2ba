package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var indexBuilt = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "docqa_index_built",
	Help: "1 once the collection is built or opened, 0 before",
}, []string{"collection"})

var indexedChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "docqa_indexed_chunks",
	Help: "Number of chunks embedded during the last build",
}, []string{"collection"})

var providerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docqa_provider_retries_total",
	Help: "Rate limited provider calls that were retried",
}, []string{"provider"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

var answerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "answer_duration_seconds",
	Help:    "Total time spent in Pipeline.Answer.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30, 120},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureAnswerMetrics(status string, timeElapsed time.Duration) {
	answerDuration.WithLabelValues(status).Observe(timeElapsed.Seconds())
}

func SetIndexBuilt(collection string, chunks int) {
	indexBuilt.WithLabelValues(collection).Set(1)
	if chunks >= 0 {
		indexedChunks.WithLabelValues(collection).Set(float64(chunks))
	}
}

func IncrementProviderRetries(provider string) {
	providerRetries.WithLabelValues(provider).Inc()
}
