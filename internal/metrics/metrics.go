// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors for batch runs, source
// requests and the REST API. A nil *Metrics is valid and records nothing,
// so library code can take one unconditionally.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bes_catalog"

// Metrics holds every collector the application exports.
type Metrics struct {
	// PapersProcessed counts papers handled by a batch stage, labeled by
	// stage (fetch, extract, score, validate) and outcome.
	PapersProcessed *prometheus.CounterVec

	// ExtractionDuration observes per-paper extraction time in seconds, labeled by backend.
	ExtractionDuration *prometheus.HistogramVec

	// ParametersExtracted observes how many leaves one extraction produced.
	ParametersExtracted prometheus.Histogram

	// SourceRequests counts requests to bibliographic APIs, labeled by source and outcome.
	SourceRequests *prometheus.CounterVec

	// HTTPRequests counts REST requests, labeled by method, route and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes REST latency in seconds, labeled by method and route.
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PapersProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Papers handled by batch stages",
		}, []string{"stage", "outcome"}),
		ExtractionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time to extract parameters from one paper",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"backend"}),
		ParametersExtracted: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parameters_extracted",
			Help:      "Leaves populated per extraction",
			Buckets:   prometheus.LinearBuckets(0, 3, 10),
		}),
		SourceRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Requests to bibliographic APIs",
		}, []string{"source", "outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST API requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "REST API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Paper records one paper handled by a batch stage.
func (m *Metrics) Paper(stage, outcome string) {
	if m == nil {
		return
	}
	m.PapersProcessed.WithLabelValues(stage, outcome).Inc()
}

// Extraction records the duration and leaf count of one extraction.
func (m *Metrics) Extraction(backend string, d time.Duration, leaves int) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues(backend).Observe(d.Seconds())
	m.ParametersExtracted.Observe(float64(leaves))
}

// SourceRequest records one request to a bibliographic API.
func (m *Metrics) SourceRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, outcome).Inc()
}

// HTTPRequest records one REST request.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
