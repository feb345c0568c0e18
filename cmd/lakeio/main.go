// Command lakeio browses a blob store (DBFS, local, in-memory or
// S3-compatible) and bulk-loads CSV/JSON files into a relational sink.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"lakeio/internal/blob"
	"lakeio/internal/config"
	"lakeio/internal/logging"

	// register all remotes and sinks; config selects which one runs.
	_ "lakeio/internal/blob/all"
	_ "lakeio/internal/storage/all"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// errValidated stops a --validate run after a clean validation.
var errValidated = errors.New("configuration is valid")

// app is the state shared by every subcommand for one invocation.
type app struct {
	v        *viper.Viper
	cfgPath  string
	validate bool

	cfg          config.Config
	zl           *zap.Logger
	log          logging.PrintfLogger
	closeMetrics func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd, a := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	a.shutdown()

	code := exitCode(err)
	if err != nil && code != 0 {
		fmt.Fprintln(os.Stderr, "lakeio:", err)
	}
	stop()
	os.Exit(code)
}

func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil, errors.Is(err, errValidated):
		return 0
	case errors.As(err, &ee):
		return ee.code
	default:
		return 1
	}
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: config.New(), log: logging.Printf(nil)}

	root := &cobra.Command{
		Use:               "lakeio",
		Short:             "Blob store browser and bulk loader",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.cfgPath, "config", "c", "", "config file (JSON or YAML)")
	f.BoolVar(&a.validate, "validate", false, "validate the configuration and exit")
	f.Bool("debug", false, "human-readable debug logs")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("remote", "", "blob remote kind (overrides blob.kind)")
	f.Bool("read-only", false, "refuse writes and deletes on the remote")
	f.String("metrics-backend", "none", "metrics backend (none, datadog, pushgateway)")
	f.String("pushgateway-url", "", "Pushgateway base URL")

	for key, flag := range map[string]string{
		"logging.debug":           "debug",
		"logging.level":           "log-level",
		"blob.kind":               "remote",
		"blob.read_only":          "read-only",
		"metrics.backend":         "metrics-backend",
		"metrics.pushgateway_url": "pushgateway-url",
	} {
		if err := a.v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newLsCmd(a),
		newStatCmd(a),
		newExistsCmd(a),
		newCatCmd(a),
		newPutCmd(a),
		newRmCmd(a),
		newLoadCmd(a),
		newProbeCmd(a),
	)
	return root, a
}

// setup loads and validates config, then builds the logger and metrics
// backend. Only "load" requires a sink section.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgPath)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	issues := config.ValidateConfig(cfg, cmd.Name() == "load")
	for _, iss := range issues {
		fmt.Fprintln(cmd.ErrOrStderr(), iss)
	}
	if config.HasErrors(issues) {
		return &exitError{code: 2, err: fmt.Errorf("configuration is invalid: %s", describe(a.cfgPath))}
	}
	if a.validate {
		fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", describe(a.cfgPath))
		return errValidated
	}
	a.cfg = cfg

	zl, err := logging.New(logging.Options{Debug: cfg.Logging.Debug, Level: cfg.Logging.Level, Output: cmd.ErrOrStderr()})
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	a.zl = zl
	a.log = logging.Printf(zl)

	a.closeMetrics = setupMetrics(cmd.Context(), cfg.Metrics, a.log)
	return nil
}

func describe(path string) string {
	if path == "" {
		return "(defaults and environment)"
	}
	return path
}

// shutdown flushes metrics and logs. Safe to call when setup never ran.
func (a *app) shutdown() {
	if a.closeMetrics != nil {
		if err := a.closeMetrics(); err != nil {
			a.log.Printf("metrics: flush error: %v", err)
		}
		a.closeMetrics = nil
	}
	if a.zl != nil {
		_ = a.zl.Sync()
	}
}

func (a *app) openBlob(ctx context.Context) (*blob.Client, error) {
	return blob.Open(ctx, a.cfg.BlobConfig(), a.log)
}

// stage starts timing name; the returned func logs one
// "stage=... ok duration=..." line. Use as defer a.stage("ls")(&err).
func (a *app) stage(name string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		d := time.Since(start).Truncate(time.Millisecond)
		if errp != nil && *errp != nil {
			a.log.Printf("stage=%s error=%v duration=%s", name, *errp, d)
			return
		}
		a.log.Printf("stage=%s ok duration=%s", name, d)
	}
}
