// Package logging builds the process logger.
//
// Library packages only depend on a Printf-shaped Logger, so they stay usable
// from tests with a nil logger; the CLI builds a zap logger here and hands
// packages the Printf adapter.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Debug switches to the human-readable console encoder.
	Debug bool
	// Level is a zap level name ("debug", "info", "warn", "error"). Empty means info.
	Level string
	// Output overrides the destination (default stderr). Used by tests.
	Output io.Writer
}

// New builds a zap logger. Debug uses the console encoder, otherwise JSON.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		l, err := zapcore.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("logging: invalid level %q: %w", s, err)
		}
		level = l
	} else if opts.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	if opts.Debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.Debug {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(zapcore.AddSync(zapOutput(opts.Output)))
	return zap.New(zapcore.NewCore(enc, sink, level), zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func zapOutput(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stderr
}

// PrintfLogger adapts a zap logger to the Printf-shaped Logger interfaces
// used by the blob and ingest packages. Lines are logged at info level.
type PrintfLogger struct {
	s *zap.SugaredLogger
}

// Printf formats and logs one line.
func (p PrintfLogger) Printf(format string, v ...any) {
	p.s.Infof(format, v...)
}

// Printf returns the adapter for l. A nil l yields a no-op logger.
func Printf(l *zap.Logger) PrintfLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return PrintfLogger{s: l.Sugar()}
}
