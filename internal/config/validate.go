package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"lakeio/internal/blob"
	"lakeio/internal/storage"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted config key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConfig checks c without contacting any service. Kinds are checked
// against the registered remotes and sinks, so callers must import the
// backends they support first.
//
// requireSink is false for commands that never touch the relational sink.
func ValidateConfig(c Config, requireSink bool) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	b := c.Blob
	switch {
	case b.Kind == "":
		add(SeverityError, "blob.kind", "is required")
	case !slices.Contains(blob.Kinds(), b.Kind):
		add(SeverityError, "blob.kind", "unknown kind %q (have %s)", b.Kind, strings.Join(blob.Kinds(), ", "))
	}
	switch b.Kind {
	case "dbfs":
		if b.BaseURL == "" {
			add(SeverityError, "blob.base_url", "is required for dbfs")
		} else if u, err := url.Parse(b.BaseURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			add(SeverityError, "blob.base_url", "must be an http(s) URL")
		} else if u.Scheme == "http" {
			add(SeverityWarning, "blob.base_url", "token will be sent over plain http")
		}
		if b.Token == "" {
			add(SeverityError, "blob.token", "is required for dbfs")
		}
	case "local":
		if b.Root == "" {
			add(SeverityError, "blob.root", "is required for local")
		}
	case "minio":
		if b.Endpoint == "" {
			add(SeverityError, "blob.endpoint", "is required for minio")
		}
		if b.Bucket == "" {
			add(SeverityError, "blob.bucket", "is required for minio")
		}
		if b.AccessKey == "" || b.SecretKey == "" {
			add(SeverityWarning, "blob.access_key", "no credentials; requests will be anonymous")
		}
	}
	if b.RequestsPerSecond < 0 {
		add(SeverityError, "blob.requests_per_second", "must be >= 0")
	}
	if b.ListConcurrency < 0 {
		add(SeverityError, "blob.list_concurrency", "must be >= 0")
	}

	if requireSink {
		s := c.Sink
		switch {
		case s.Kind == "":
			add(SeverityError, "sink.kind", "is required")
		case !slices.Contains(storage.Kinds(), s.Kind):
			add(SeverityError, "sink.kind", "unknown kind %q (have %s)", s.Kind, strings.Join(storage.Kinds(), ", "))
		}
		if s.DSN == "" {
			add(SeverityError, "sink.dsn", "is required")
		}
		if s.PartitionKeyColumn == "" {
			add(SeverityError, "sink.partition_key_column", "must not be empty")
		}
		if s.RowKeyColumn == "" {
			add(SeverityError, "sink.row_key_column", "must not be empty")
		}
		if s.PartitionKeyColumn != "" && s.PartitionKeyColumn == s.RowKeyColumn {
			add(SeverityError, "sink.row_key_column", "must differ from partition_key_column")
		}
		if s.BulkTimeout < 0 {
			add(SeverityError, "sink.bulk_timeout", "must be >= 0")
		}
		if c.Ingest.BatchSize <= 0 {
			add(SeverityError, "ingest.batch_size", "must be > 0")
		}
	}

	m := c.Metrics
	switch m.Backend {
	case "", "none", "datadog":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			add(SeverityError, "metrics.pushgateway_url", "is required for pushgateway")
		}
	default:
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics disabled", m.Backend)
	}
	if m.Backend == "datadog" && m.FlushEvery <= 0 {
		add(SeverityWarning, "metrics.flush_every", "<= 0; using the backend default")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		add(SeverityError, "logging.level", "unknown level %q", c.Logging.Level)
	}
	return out
}
