// Package metrics exposes triage activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triage"

// Mutation results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder records store and HTTP activity. It satisfies service.Observer.
type Recorder struct {
	registry  *prometheus.Registry
	mutations *prometheus.CounterVec
	views     *prometheus.CounterVec
	matched   *prometheus.HistogramVec
	buckets   *prometheus.GaugeVec
	events    *prometheus.CounterVec
	requests  *prometheus.HistogramVec
}

// NewRecorder creates a Recorder registered on its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Message mutations by board, operation and result.",
		}, []string{"board", "op", "result"}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_total",
			Help:      "Filtered board views served.",
		}, []string{"board"}),
		matched: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_matched_messages",
			Help:      "Messages matched per filtered view.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}, []string{"board"}),
		buckets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_size",
			Help:      "Messages per status bucket.",
		}, []string{"board", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Change events by board, type and delivery result.",
		}, []string{"board", "type", "result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	r.registry.MustRegister(
		r.mutations,
		r.views,
		r.matched,
		r.buckets,
		r.events,
		r.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveMutation counts a store mutation
func (r *Recorder) ObserveMutation(board, op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.mutations.WithLabelValues(board, op, result).Inc()
}

// ObserveView counts a filtered view
func (r *Recorder) ObserveView(board string, matched int) {
	r.views.WithLabelValues(board).Inc()
	r.matched.WithLabelValues(board).Observe(float64(matched))
}

// ObserveBuckets sets the bucket size gauges of a board
func (r *Recorder) ObserveBuckets(board string, sizes map[string]int) {
	for status, n := range sizes {
		r.buckets.WithLabelValues(board, status).Set(float64(n))
	}
}

// ObserveEvent counts a change event delivery attempt
func (r *Recorder) ObserveEvent(board, eventType string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.events.WithLabelValues(board, eventType, result).Inc()
}

// ObserveRequest records an HTTP request
func (r *Recorder) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
