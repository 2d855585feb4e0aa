package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics instruments the orchestrator façade: request
// counters plus pipeline observations for extraction and generation.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	deepAnalyzesTotal  *prometheus.CounterVec
	predictionsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docex",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docex",
			Subsystem: "extract",
			Name:      "documents_total",
			Help:      "Total text extractions by format and outcome.",
		},
		[]string{"service", "format", "status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docex",
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "Text extraction duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "format"},
	)
	generationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docex",
			Subsystem: "generate",
			Name:      "requests_total",
			Help:      "Total metadata generations by document type and outcome.",
		},
		[]string{"service", "doc_type", "status"},
	)
	generationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docex",
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Metadata generation duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "doc_type"},
	)
	deepAnalyzesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docex",
			Subsystem: "generate",
			Name:      "deep_analyzes_total",
			Help:      "Total deep-analyze validation passes by outcome.",
		},
		[]string{"service", "status"},
	)
	predictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docex",
			Subsystem: "classify",
			Name:      "predictions_total",
			Help:      "Total classifier predictions by task and label.",
		},
		[]string{"service", "task", "label"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractionsTotal,
		extractionDuration,
		generationsTotal,
		generationDuration,
		deepAnalyzesTotal,
		predictionsTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		extractionsTotal:   extractionsTotal,
		extractionDuration: extractionDuration,
		generationsTotal:   generationsTotal,
		generationDuration: generationDuration,
		deepAnalyzesTotal:  deepAnalyzesTotal,
		predictionsTotal:   predictionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordExtraction(service, format, status string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	m.extractionsTotal.WithLabelValues(service, format, status).Inc()
	m.extractionDuration.WithLabelValues(service, format).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordGeneration(service, docType, status string, duration time.Duration) {
	if docType == "" {
		docType = "unknown"
	}
	m.generationsTotal.WithLabelValues(service, docType, status).Inc()
	m.generationDuration.WithLabelValues(service, docType).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordDeepAnalyze(service, status string) {
	m.deepAnalyzesTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordPrediction(service, task, label string) {
	if label == "" {
		label = "unknown"
	}
	m.predictionsTotal.WithLabelValues(service, task, label).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
