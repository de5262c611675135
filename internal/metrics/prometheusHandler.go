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

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var indexBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "index_builds_total",
	Help: "Vector index builds labelled by result",
}, []string{"result"})

var indexCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "index_cache_hits_total",
	Help: "Index lookups served without a build, labelled by where the index came from",
}, []string{"source"})

var embeddingPasses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "embedding_passes_total",
	Help: "Full document embedding passes",
})

var answerFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "answer_fallbacks_total",
	Help: "Answers that were weak and went through web search",
})

var streamFragments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stream_fragments_total",
	Help: "Fragments sent on answer streams labelled by kind",
}, []string{"kind"})

var searchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "search_calls_total",
	Help: "Web search calls labelled by result",
}, []string{"result"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *HttpStatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *HttpStatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func IndexBuilt(ok bool) {
	if ok {
		indexBuilds.WithLabelValues("success").Inc()
		return
	}
	indexBuilds.WithLabelValues("failure").Inc()
}

func IndexCacheHit(source string) {
	indexCacheHits.WithLabelValues(source).Inc()
}

func EmbeddingPass() {
	embeddingPasses.Inc()
}

func AnswerFallback() {
	answerFallbacks.Inc()
}

func StreamFragment(kind string) {
	streamFragments.WithLabelValues(kind).Inc()
}

func SearchCall(result string) {
	searchCalls.WithLabelValues(result).Inc()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent processing a job.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 300},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
