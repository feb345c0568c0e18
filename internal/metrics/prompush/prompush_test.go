package prompush

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lakeio/internal/metrics"
)

type fakePusher struct {
	pushes int
	err    error
}

func (f *fakePusher) Push() error { f.pushes++; return f.err }

func TestNewBackend_Validates(t *testing.T) {
	t.Parallel()
	if _, err := NewBackend("", "http://localhost:9091"); err == nil {
		t.Fatalf("expected error for empty job")
	}
	if _, err := NewBackend("lakeio", " "); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewBackend("lakeio", "http://localhost:9091"); err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
}

func TestBackend_RecordsKnownMetrics(t *testing.T) {
	t.Parallel()
	b := newBackend()

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "bulk_write", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 10, metrics.Labels{"kind": "written"})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.IncCounter(metrics.BatchesTotal, 0, nil)
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "bulk_write", "status": "ok"})
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "bulk_write", "status": "ok"})

	if got := testutil.ToFloat64(b.steps.WithLabelValues("bulk_write", "ok")); got != 2 {
		t.Fatalf("steps=%v, want 2", got)
	}
	if got := testutil.ToFloat64(b.rows.WithLabelValues("written")); got != 10 {
		t.Fatalf("rows=%v, want 10", got)
	}
	if got := testutil.ToFloat64(b.batches); got != 1 {
		t.Fatalf("batches=%v, want 1", got)
	}
	if got := testutil.CollectAndCount(b.stepDur); got != 1 {
		t.Fatalf("duration series=%d, want 1", got)
	}
}

func TestFlush_WrapsPushError(t *testing.T) {
	t.Parallel()
	b := newBackend()
	fp := &fakePusher{err: errors.New("gateway down")}
	b.pusher = fp

	err := b.Flush()
	if err == nil || !errors.Is(err, fp.err) {
		t.Fatalf("Flush err=%v", err)
	}
	if fp.pushes != 1 {
		t.Fatalf("pushes=%d, want 1", fp.pushes)
	}
}
