package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"lakeio/internal/metrics"
)

// Logger is the minimal logging surface. A nil Logger discards output.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Options configures a Client.
type Options struct {
	// ReadOnly rejects Write, Delete and DeleteAll with ErrReadOnly without
	// calling the remote.
	ReadOnly bool
	// ListConcurrency is the default ListOptions.Concurrency.
	ListConcurrency int
	Logger          Logger
}

// Client is the path-level API over a Remote. Not-found answers from the
// remote surface as absence (nil node, false), never as errors.
//
// A Client is safe for concurrent use if its Remote is.
type Client struct {
	remote Remote
	lister *Lister
	opts   Options
	log    Logger
}

// NewClient wraps remote.
func NewClient(remote Remote, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Client{remote: remote, lister: NewLister(remote), opts: opts, log: log}
}

// Remote returns the underlying remote.
func (c *Client) Remote() Remote { return c.remote }

// ReadOnly reports whether mutations are rejected.
func (c *Client) ReadOnly() bool { return c.opts.ReadOnly }

// Stat returns the node at p, or nil if the remote reports it missing.
func (c *Client) Stat(ctx context.Context, p string) (*Node, error) {
	p = Normalize(p, true)
	start := time.Now()
	n, err := c.remote.GetStatus(ctx, p)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordStep("stat", nil, time.Since(start))
		return nil, nil
	}
	metrics.RecordStep("stat", err, time.Since(start))
	if err != nil {
		return nil, c.opError("stat", p, err)
	}
	n.Path = Normalize(n.Path, true)
	return &n, nil
}

// Exists reports whether p exists.
func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	n, err := c.Stat(ctx, p)
	if err != nil {
		return false, err
	}
	return n != nil, nil
}

// GetBlob returns a descriptive record for p, or nil if it is missing.
// The record carries the normalized requested path; Size is set for files only.
func (c *Client) GetBlob(ctx context.Context, p string) (*Node, error) {
	n, err := c.Stat(ctx, p)
	if err != nil || n == nil {
		return nil, err
	}
	out := Node{Path: Normalize(p, true), Kind: n.Kind, ModTime: n.ModTime}
	if n.Kind == KindFile {
		out.Size = n.Size
	}
	return &out, nil
}

// OpenRead downloads p into memory and returns a reader positioned at 0.
//
// Edge cases:
//   - Returns (nil, nil) when the remote reports not-found OR bad-request.
//     The DBFS read API answers some missing paths with 400; the broadening
//     is limited to this call.
func (c *Client) OpenRead(ctx context.Context, p string) (*bytes.Reader, error) {
	p = Normalize(p, true)
	start := time.Now()
	var buf bytes.Buffer
	err := c.remote.Download(ctx, p, &buf)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadRequest) {
		metrics.RecordStep("read", nil, time.Since(start))
		return nil, nil
	}
	metrics.RecordStep("read", err, time.Since(start))
	if err != nil {
		return nil, c.opError("read", p, err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}

// Write uploads r to p, replacing any existing content.
//
// Errors:
//   - ErrUnsupportedOperation when appendMode is true; no remote call is made.
//   - ErrReadOnly on a read-only client.
func (c *Client) Write(ctx context.Context, p string, r io.Reader, appendMode bool) error {
	p = Normalize(p, true)
	if appendMode {
		return &OpError{Op: "append", Path: p, Remote: c.remote.Name(), Err: ErrUnsupportedOperation}
	}
	if err := c.checkWritable("write", p); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("blob: write %s: nil reader", p)
	}
	start := time.Now()
	err := c.remote.Upload(ctx, p, true, r)
	metrics.RecordStep("write", err, time.Since(start))
	if err != nil {
		return c.opError("write", p, err)
	}
	return nil
}

// Delete removes p and, for folders, its whole subtree. Deleting a missing
// path is not an error.
func (c *Client) Delete(ctx context.Context, p string) error {
	p = Normalize(p, true)
	if err := c.checkWritable("delete", p); err != nil {
		return err
	}
	start := time.Now()
	err := c.remote.Delete(ctx, p, true)
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	metrics.RecordStep("delete", err, time.Since(start))
	if err != nil {
		return c.opError("delete", p, err)
	}
	return nil
}

// ExistsAll runs Exists for every path concurrently. The result preserves
// input order; the first error fails the whole batch.
func (c *Client) ExistsAll(ctx context.Context, paths []string) ([]bool, error) {
	out := make([]bool, len(paths))
	err := fanOut(ctx, paths, func(ctx context.Context, i int, p string) error {
		ok, err := c.Exists(ctx, p)
		out[i] = ok
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetBlobs runs GetBlob for every path concurrently. Missing paths yield nil
// entries at their input position.
func (c *Client) GetBlobs(ctx context.Context, paths []string) ([]*Node, error) {
	out := make([]*Node, len(paths))
	err := fanOut(ctx, paths, func(ctx context.Context, i int, p string) error {
		n, err := c.GetBlob(ctx, p)
		out[i] = n
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAll deletes every path concurrently. Remote side effects already
// issued are not undone when another delete fails or ctx is cancelled.
func (c *Client) DeleteAll(ctx context.Context, paths []string) error {
	if err := c.checkWritable("delete", ""); err != nil {
		return err
	}
	return fanOut(ctx, paths, func(ctx context.Context, _ int, p string) error {
		return c.Delete(ctx, p)
	})
}

// List traverses the remote namespace; see Lister.List.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]Node, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = c.opts.ListConcurrency
	}
	start := time.Now()
	nodes, err := c.lister.List(ctx, opts)
	metrics.RecordStep("list", err, time.Since(start))
	if err == nil {
		c.log.Printf("blob: list %s recurse=%v entries=%d", Normalize(opts.FolderPath, true), opts.Recurse, len(nodes))
	}
	return nodes, err
}

// SetBlobs would update metadata in bulk. No supported remote has a metadata
// API, so it always fails with ErrNotSupported.
func (c *Client) SetBlobs(ctx context.Context, nodes []Node) error {
	return ErrNotSupported
}

// Transaction is the handle returned by OpenTransaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type emptyTransaction struct{}

func (emptyTransaction) Commit(context.Context) error   { return nil }
func (emptyTransaction) Rollback(context.Context) error { return nil }

// OpenTransaction returns a no-op transaction: every operation is applied
// immediately and Commit/Rollback do nothing.
func (c *Client) OpenTransaction(ctx context.Context) (Transaction, error) {
	return emptyTransaction{}, nil
}

func (c *Client) checkWritable(op, p string) error {
	if c.opts.ReadOnly {
		return &OpError{Op: op, Path: p, Remote: c.remote.Name(), Err: ErrReadOnly}
	}
	return nil
}

func (c *Client) opError(op, p string, err error) error {
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Path: p, Remote: c.remote.Name(), Err: err}
}

// fanOut runs fn for every path concurrently and joins on all of them. The
// first error cancels the context passed to the remaining calls.
func fanOut(ctx context.Context, paths []string, fn func(ctx context.Context, i int, p string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error { return fn(gctx, i, p) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
