package main

import (
	"context"

	"lakeio/internal/config"
	"lakeio/internal/logging"
	"lakeio/internal/metrics"
	"lakeio/internal/metrics/datadog"
	"lakeio/internal/metrics/prompush"
)

// setupMetrics installs the configured backend and returns its shutdown hook.
// A backend that fails to initialize is logged and metrics stay disabled.
func setupMetrics(ctx context.Context, cfg config.Metrics, log logging.PrintfLogger) func() error {
	job := cfg.Job
	if job == "" {
		job = "lakeio"
	}

	switch cfg.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nil
		}
		log.Printf("metrics: backend=pushgateway url=%s job=%s", cfg.PushgatewayURL, job)
		metrics.SetBackend(b)
		return func() error {
			defer metrics.SetBackend(nil)
			return metrics.Flush()
		}

	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.Tags)
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nil
		}
		log.Printf("metrics: backend=datadog job=%s tags=%v", job, tags)
		metrics.SetBackend(b)
		// Close stops the flush loop and submits what is still buffered.
		return func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		}

	case "", "none":
		return nil

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.Backend)
		return nil
	}
}
