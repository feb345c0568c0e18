// Package metrics is the process-wide metrics facade.
//
// Components report through the package-level helpers; the process selects a
// concrete backend once at startup with SetBackend (Datadog, Pushgateway, or
// the default no-op). Keeping the facade backend-agnostic means the blob and
// ingest packages never import a vendor SDK.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends switch on these; unknown names are ignored.
const (
	StepTotal           = "lakeio_step_total"
	StepDurationSeconds = "lakeio_step_duration_seconds"
	RowsTotal           = "lakeio_rows_total"
	BatchesTotal        = "lakeio_batches_total"

	HTTPRequestsTotal          = "lakeio_http_requests_total"
	HTTPErrorsTotal            = "lakeio_http_errors_total"
	HTTPRequestDurationSeconds = "lakeio_http_request_duration_seconds"
	HTTPDownloadBytes          = "lakeio_http_download_bytes"
)

// Labels are metric dimensions (e.g. step, status, kind).
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer (Pushgateway, Datadog).
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process backend. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend if it buffers; otherwise it is a no-op.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep reports one completed step with status "ok" or "error".
func RecordStep(step string, err error, d time.Duration) {
	l := Labels{"step": step, "status": status(err)}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts rows by outcome kind (e.g. "written", "failed").
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordBatch counts one bulk write attempt sequence.
func RecordBatch() {
	IncCounter(BatchesTotal, 1, nil)
}

// RecordHTTP reports one HTTP round trip. statusCode 0 means no response.
func RecordHTTP(statusCode int, err error, d time.Duration, bytes int64) {
	l := Labels{"status": httpStatus(statusCode)}
	IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || statusCode >= 400 || statusCode == 0 {
		IncCounter(HTTPErrorsTotal, 1, l)
	}
	ObserveHistogram(HTTPRequestDurationSeconds, d.Seconds(), l)
	if bytes > 0 {
		ObserveHistogram(HTTPDownloadBytes, float64(bytes), l)
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func httpStatus(code int) string {
	if code <= 0 {
		return "none"
	}
	return strconv.Itoa(code)
}
