package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type call struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

type recordingBackend struct {
	mu      sync.Mutex
	calls   []call
	flushes int
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"counter", name, delta, labels})
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"histogram", name, value, labels})
}

func (r *recordingBackend) Flush() error { r.flushes++; return nil }

func install(t *testing.T) *recordingBackend {
	t.Helper()
	rb := &recordingBackend{}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })
	return rb
}

func TestRecordStep_StatusLabels(t *testing.T) {
	rb := install(t)

	RecordStep("bulk_write", nil, 2*time.Second)
	RecordStep("create_table", errors.New("boom"), time.Second)

	if len(rb.calls) != 4 {
		t.Fatalf("calls=%d, want 4", len(rb.calls))
	}
	if c := rb.calls[0]; c.name != StepTotal || c.labels["status"] != "ok" || c.labels["step"] != "bulk_write" {
		t.Fatalf("first call=%+v", c)
	}
	if c := rb.calls[1]; c.name != StepDurationSeconds || c.value != 2 {
		t.Fatalf("duration call=%+v", c)
	}
	if c := rb.calls[2]; c.labels["status"] != "error" {
		t.Fatalf("error status call=%+v", c)
	}
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	rb := install(t)
	RecordRows("written", 0)
	RecordRows("written", 3)
	if len(rb.calls) != 1 || rb.calls[0].value != 3 || rb.calls[0].labels["kind"] != "written" {
		t.Fatalf("calls=%+v", rb.calls)
	}
}

func TestRecordHTTP(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		err        error
		bytes      int64
		wantCalls  int
		wantStatus string
	}{
		{name: "ok_with_body", code: 200, bytes: 10, wantCalls: 3, wantStatus: "200"},
		{name: "not_found_counts_error", code: 404, wantCalls: 3, wantStatus: "404"},
		{name: "transport_error", err: errors.New("dial"), wantCalls: 3, wantStatus: "none"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rb := install(t)
			RecordHTTP(tc.code, tc.err, time.Millisecond, tc.bytes)
			if len(rb.calls) != tc.wantCalls {
				t.Fatalf("calls=%d, want %d (%+v)", len(rb.calls), tc.wantCalls, rb.calls)
			}
			if got := rb.calls[0].labels["status"]; got != tc.wantStatus {
				t.Fatalf("status=%q, want %q", got, tc.wantStatus)
			}
		})
	}
}

func TestFlush_OnlyForFlushers(t *testing.T) {
	rb := install(t)
	if err := Flush(); err != nil || rb.flushes != 1 {
		t.Fatalf("Flush err=%v flushes=%d", err, rb.flushes)
	}

	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush err=%v", err)
	}
}
