package blob

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a Remote.
//
// Edge cases:
//   - Kind must match a registered remote ("dbfs", "local", "memory", "minio").
//   - Fields irrelevant to Kind are ignored; each factory validates its own.
type Config struct {
	Kind string

	// DBFS.
	BaseURL           string
	Token             string
	RequestsPerSecond float64

	// Local filesystem root.
	Root string

	// S3-compatible object store.
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	ReadOnly        bool
	ListConcurrency int
}

// RemoteFactory builds a Remote from cfg.
type RemoteFactory func(ctx context.Context, cfg Config) (Remote, error)

var (
	mu        sync.RWMutex
	factories = map[string]RemoteFactory{}
)

// Register registers a remote under kind. Call it from a remote package's init().
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f RemoteFactory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("blob: Register called with empty kind")
	}
	if f == nil {
		panic("blob: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("blob: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered remote kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open builds the configured Remote and wraps it in a Client.
//
// Errors:
//   - cfg.Kind is empty or unknown.
//   - Whatever the remote factory returns.
func Open(ctx context.Context, cfg Config, log Logger) (*Client, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("blob: missing remote kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("blob: unsupported remote kind=%s", cfg.Kind)
	}
	r, err := f(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(r, Options{ReadOnly: cfg.ReadOnly, ListConcurrency: cfg.ListConcurrency, Logger: log}), nil
}
