package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lakeio/internal/table"
)

// Config is the minimal configuration needed to create a Sink.
//
// When to use:
//   - Use Config when constructing a Sink via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - BulkTimeout <= 0 means no per-write deadline beyond the caller's context.
type Config struct {
	Kind        string
	DSN         string
	BulkTimeout time.Duration
}

// Sink is the relational backend capability used by bulk ingestion.
//
// IMPORTANT: This interface is intentionally minimal. Implementations own
// driver-specific concerns: value binding, identifier quoting, type mapping and
// classifying driver errors into ErrInvalidState / *BackendError.
type Sink interface {
	// IsOpen reports whether the connection has been opened and not closed.
	IsOpen() bool

	// Open establishes the connection. Construction never connects; the
	// ingestion executor calls Open lazily before the first write.
	Open(ctx context.Context) error

	// BulkWrite transfers every row of buf into destination.
	//
	// Errors:
	//   - errors.Is(err, ErrInvalidState) when destination does not exist.
	//   - *BackendError for any other failure reported by the database.
	//   - Context and connection errors are returned unchanged.
	BulkWrite(ctx context.Context, destination string, buf *table.Buffer) error

	// CreateTableSQL renders the DDL that creates destination for schema.
	CreateTableSQL(destination string, schema table.Schema) (string, error)

	// ExecDDL executes a single DDL statement.
	ExecDDL(ctx context.Context, stmt string) error

	// Close releases the connection. Callers should treat Close as "call once".
	Close() error
}

// ---- factories (mirrors blob.Register for remotes) ----

type factory func(cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a sink backend under a kind (e.g. "mssql", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Sink using the registered backend factory. The returned
// sink is not yet open.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing sink kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported sink kind=%s", cfg.Kind)
	}
	return f(cfg)
}

// Kinds returns the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}

// WithBulkTimeout derives the context used for a single bulk write.
func WithBulkTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
