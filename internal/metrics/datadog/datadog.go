// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Observations are buffered in memory and submitted on a ticker (default once
// per minute) plus one final time on Close, so a long load run shows up as a
// steady series instead of a single spike at exit. If the process is killed
// with SIGKILL/OOM, Close won't run and the last window is lost.
//
// Counters become Datadog COUNT series. Histograms are summarized per flush as
// p50/p90/p95/p99/max/samples gauges.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"lakeio/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "lakeio".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "team:data"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// mapping translates one facade metric into a Datadog series name and the
// labels carried over as tags. With strict set, an observation missing any of
// those labels is dropped; otherwise the tag value becomes "unknown".
type mapping struct {
	name   string
	labels []string
	strict bool
}

var counterMappings = map[string]mapping{
	metrics.StepTotal:         {name: "lakeio.step.total", labels: []string{"step", "status"}},
	metrics.RowsTotal:         {name: "lakeio.rows.total", labels: []string{"kind"}, strict: true},
	metrics.BatchesTotal:      {name: "lakeio.batches.total"},
	metrics.HTTPRequestsTotal: {name: "lakeio.http.requests.total", labels: []string{"status"}},
	metrics.HTTPErrorsTotal:   {name: "lakeio.http.errors.total", labels: []string{"status"}},
}

var histogramMappings = map[string]mapping{
	metrics.StepDurationSeconds:        {name: "lakeio.step.duration_seconds", labels: []string{"step", "status"}},
	metrics.HTTPRequestDurationSeconds: {name: "lakeio.http.request_duration_seconds", labels: []string{"status"}},
	metrics.HTTPDownloadBytes:          {name: "lakeio.http.download_bytes", labels: []string{"status"}},
}

// seriesKey identifies one buffered series. tags holds "k:v" pairs joined by
// tagSep so the key stays comparable.
type seriesKey struct {
	metric string
	tags   string
}

const tagSep = "\x00"

// key resolves labels for m; ok is false when the observation must be dropped.
func (m mapping) key(l metrics.Labels) (k seriesKey, ok bool) {
	tags := make([]string, 0, len(m.labels))
	for _, name := range m.labels {
		v := strings.TrimSpace(l[name])
		if v == "" {
			if m.strict {
				return seriesKey{}, false
			}
			v = "unknown"
		}
		tags = append(tags, name+":"+v)
	}
	return seriesKey{metric: m.name, tags: strings.Join(tags, tagSep)}, true
}

func (k seriesKey) tagList() []string {
	if k.tags == "" {
		return nil
	}
	return strings.Split(k.tags, tagSep)
}

// buffer is the state accumulated between two flushes.
type buffer struct {
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

func newBuffer() buffer {
	return buffer{
		counts:  make(map[seriesKey]float64),
		samples: make(map[seriesKey][]float64),
	}
}

func (b buffer) empty() bool { return len(b.counts) == 0 && len(b.samples) == 0 }

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffer
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop.
//
// Credentials and site come from the standard DD_API_KEY / DD_SITE environment
// variables (dd.NewDefaultContext). The environment tag is taken from ENV,
// then DD_ENV, otherwise env:unknown.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}

	job := opts.JobName
	if job == "" {
		job = "lakeio"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	b := &Backend{
		api:        opts.submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        opts.now,
		newTicker:  opts.newTicker,
		buf:        newBuffer(),
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush, returning its
// error. Close must be called at most once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Non-positive deltas and unknown
// metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	m, known := counterMappings[name]
	if !known || delta <= 0 {
		return
	}
	k, ok := m.key(labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.buf.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Negative values are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	m, known := histogramMappings[name]
	if !known || value < 0 {
		return
	}
	k, ok := m.key(labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.buf.samples[k] = append(b.buf.samples[k], value)
	b.mu.Unlock()
}

// Flush submits buffered metrics and resets the buffer. It is safe to call
// concurrently with observations. The buffer is reset even if submission
// fails, so delivery is at most once. An empty buffer submits nothing.
func (b *Backend) Flush() error {
	b.mu.Lock()
	snap := b.buf
	b.buf = newBuffer()
	b.mu.Unlock()

	if snap.empty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries renders a detached buffer at a fixed timestamp, ordered by
// metric name then tags.
func (b *Backend) buildSeries(s buffer, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counts)+6*len(s.samples))

	for _, k := range sortedKeys(s.counts) {
		if v := s.counts[k]; v != 0 {
			series = append(series, countSeries(k.metric, v, withTags(b.baseTags, k.tagList()...), nowUnix))
		}
	}
	for _, k := range sortedKeys(s.samples) {
		addPercentiles(&series, k.metric, s.samples[k], withTags(b.baseTags, k.tagList()...), nowUnix)
	}
	return series
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	keys := make([]seriesKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].metric != keys[j].metric {
			return keys[i].metric < keys[j].metric
		}
		return keys[i].tags < keys[j].tags
	})
	return keys
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for a sample set.
// It sorts a copy, so samples is not mutated. Empty samples add nothing.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, samples []float64, tags []string, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_COUNT, value, tags, nowUnix)
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_GAUGE, value, tags, nowUnix)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

// percentileNearestRank expects s sorted ascending.
func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return s[0]
	case p >= 1:
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
