// Package metrics provides Prometheus collectors for the annotation workflow.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the server exports.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec   // by method, route, status
	HTTPRequestDuration *prometheus.HistogramVec // by method, route

	AnnotationsTotal    *prometheus.CounterVec // by result: created, duplicate, ineligible
	EvaluationsTotal    *prometheus.CounterVec // by result: created, duplicate, forbidden
	AssessmentsTotal    *prometheus.CounterVec // by outcome: assessed, failed, reviewed
	ScorerLatency       prometheus.Histogram
	OnboardingSubmitted *prometheus.CounterVec // by result: passed, failed, rejected
	SentencesImported   *prometheus.CounterVec // by result: imported, failed
	DistributorServed   *prometheus.CounterVec // by result: served, exhausted
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lakra_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AnnotationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_annotations_total",
			Help: "Annotation create attempts by result",
		}, []string{"result"}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_evaluations_total",
			Help: "Evaluation create attempts by result",
		}, []string{"result"}),
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_mt_assessments_total",
			Help: "MT quality assessment outcomes",
		}, []string{"outcome"}),
		ScorerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lakra_mt_scorer_duration_seconds",
			Help:    "Time spent in the MT scoring collaborator",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		OnboardingSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_onboarding_submissions_total",
			Help: "Onboarding test submissions by result",
		}, []string{"result"}),
		SentencesImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_sentences_imported_total",
			Help: "Bulk sentence import rows by result",
		}, []string{"result"}),
		DistributorServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakra_distributor_requests_total",
			Help: "Next-sentence requests by result",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.AnnotationsTotal, m.EvaluationsTotal,
		m.AssessmentsTotal, m.ScorerLatency, m.OnboardingSubmitted, m.SentencesImported,
		m.DistributorServed,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// NewNop returns collectors that are not registered anywhere. Useful in tests.
func NewNop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
