package blob

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Lister traverses a Remote namespace.
type Lister struct {
	remote Remote
}

// NewLister returns a Lister over remote.
func NewLister(remote Remote) *Lister {
	return &Lister{remote: remote}
}

/*
List returns the entries under opts.FolderPath in discovery order.

Every level is listed with one remote call. Entries are filtered (FilePrefix,
NameFilter, then BrowseFilter, each evaluated once per entry) and, when
opts.Recurse is set, every surviving folder is listed concurrently. The
traversal joins on all children before a frame returns.

Edge cases:
  - A folder that does not exist (or vanished mid-traversal) contributes no
    entries instead of failing.
  - MaxResults truncates once, after the whole traversal. Sibling completion
    order is unspecified, so which entries survive a cap is too.

Errors:
  - Any other remote error aborts the traversal, cancels outstanding sibling
    calls and returns no partial result.
*/
func (l *Lister) List(ctx context.Context, opts ListOptions) ([]Node, error) {
	t := &traversal{remote: l.remote, opts: opts}
	if opts.Concurrency > 0 {
		t.sem = semaphore.NewWeighted(int64(opts.Concurrency))
	}

	g, gctx := errgroup.WithContext(ctx)
	root := Normalize(opts.FolderPath, true)
	g.Go(func() error { return t.walk(gctx, g, root) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.MaxResults > 0 && len(t.out) > opts.MaxResults {
		t.out = t.out[:opts.MaxResults]
	}
	return t.out, nil
}

type traversal struct {
	remote Remote
	opts   ListOptions
	sem    *semaphore.Weighted

	mu  sync.Mutex
	out []Node
}

// walk lists one folder and schedules its surviving subfolders on g. The
// semaphore is held only around the remote call, never while children run,
// so a bounded fan-out cannot deadlock on deep trees.
func (t *traversal) walk(ctx context.Context, g *errgroup.Group, folder string) error {
	nodes, err := t.list(ctx, folder)
	if err != nil {
		return err
	}

	var sub []string
	kept := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		n.Path = Normalize(n.Path, true)
		if !t.opts.keep(n) {
			continue
		}
		kept = append(kept, n)
		if t.opts.Recurse && n.IsFolder() {
			sub = append(sub, n.Path)
		}
	}

	t.mu.Lock()
	t.out = append(t.out, kept...)
	t.mu.Unlock()

	for _, p := range sub {
		g.Go(func() error { return t.walk(ctx, g, p) })
	}
	return nil
}

func (t *traversal) list(ctx context.Context, folder string) ([]Node, error) {
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer t.sem.Release(1)
	}
	nodes, err := t.remote.List(ctx, folder)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &OpError{Op: "list", Path: folder, Remote: t.remote.Name(), Err: err}
	}
	return nodes, nil
}
