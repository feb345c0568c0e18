// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// lakeio commands are short-lived, so nothing scrapes them. Observations are
// collected in a private registry and pushed on Flush (the CLI flushes once at
// exit).
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"lakeio/internal/metrics"
)

type pusher interface {
	Push() error
}

// Backend implements metrics.Backend and metrics.Flusher.
type Backend struct {
	reg    *prometheus.Registry
	pusher pusher

	steps    *prometheus.CounterVec
	stepDur  *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	batches  prometheus.Counter
	httpReqs *prometheus.CounterVec
	httpErrs *prometheus.CounterVec
	httpDur  *prometheus.HistogramVec
	httpSize *prometheus.HistogramVec
}

// NewBackend constructs a backend that pushes to gatewayURL under job.
//
// Errors:
//   - gatewayURL or job is empty.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(job) == "" {
		return nil, fmt.Errorf("prompush: job is empty")
	}
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: gateway url is empty")
	}

	b := newBackend()
	b.pusher = push.New(gatewayURL, job).Gatherer(b.reg)
	return b, nil
}

func newBackend() *Backend {
	reg := prometheus.NewRegistry()
	b := &Backend{
		reg: reg,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Completed blob and ingest steps by status.",
		}, []string{"step", "status"}),
		stepDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Step duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows handled by bulk ingestion, by outcome.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk ingestion batches.",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.HTTPRequestsTotal,
			Help: "DBFS API requests by HTTP status.",
		}, []string{"status"}),
		httpErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.HTTPErrorsTotal,
			Help: "Failed DBFS API requests by HTTP status.",
		}, []string{"status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.HTTPRequestDurationSeconds,
			Help:    "DBFS API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		httpSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.HTTPDownloadBytes,
			Help:    "Decoded bytes returned by DBFS read calls.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"status"}),
	}
	reg.MustRegister(b.steps, b.stepDur, b.rows, b.batches, b.httpReqs, b.httpErrs, b.httpDur, b.httpSize)
	return b
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rows.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batches.Add(delta)
	case metrics.HTTPRequestsTotal:
		b.httpReqs.WithLabelValues(labels["status"]).Add(delta)
	case metrics.HTTPErrorsTotal:
		b.httpErrs.WithLabelValues(labels["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDurationSeconds:
		b.stepDur.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.HTTPRequestDurationSeconds:
		b.httpDur.WithLabelValues(labels["status"]).Observe(value)
	case metrics.HTTPDownloadBytes:
		b.httpSize.WithLabelValues(labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry state, replacing the job's previous push.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
