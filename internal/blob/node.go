package blob

import (
	"context"
	"io"
	"strings"
	"time"
)

// Kind distinguishes files from folders.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Node is the result of a stat or list call. It is built fresh per query.
type Node struct {
	// Path is rooted and normalized ("/a/b.csv").
	Path string
	Kind Kind
	// Size is nil for folders and when the remote does not report it.
	Size    *int64
	ModTime time.Time
}

// IsFolder reports whether n is a folder.
func (n Node) IsFolder() bool { return n.Kind == KindFolder }

// Name returns the last path segment.
func (n Node) Name() string { return Name(n.Path) }

// Remote is the single-path capability a blob store must provide.
//
// Paths passed in are already normalized (rooted). Implementations report a
// missing path with an error satisfying errors.Is(err, ErrNotFound) and a
// malformed request with ErrBadRequest.
type Remote interface {
	// Name identifies the remote in errors and logs (e.g. "dbfs").
	Name() string

	GetStatus(ctx context.Context, p string) (Node, error)
	// List returns the direct children of folder p.
	List(ctx context.Context, p string) ([]Node, error)
	Download(ctx context.Context, p string, w io.Writer) error
	Upload(ctx context.Context, p string, overwrite bool, r io.Reader) error
	Delete(ctx context.Context, p string, recursive bool) error
}

// ListOptions controls one Lister.List call.
type ListOptions struct {
	// FolderPath is the traversal root. Empty means "/".
	FolderPath string
	// Recurse descends into every folder that passes the filters.
	Recurse bool
	// MaxResults caps the result after the full traversal. Any value <= 0,
	// including an explicit 0, means no cap rather than an empty result.
	MaxResults int
	// FilePrefix keeps only entries whose name starts with the prefix.
	FilePrefix string
	// NameFilter keeps only entries for which it returns true.
	NameFilter func(Node) bool
	// BrowseFilter is applied after the name predicates. Folders it rejects
	// are not descended into.
	BrowseFilter func(Node) bool
	// Concurrency bounds in-flight remote List calls. <= 0 means unbounded.
	Concurrency int
}

func (o ListOptions) keep(n Node) bool {
	if o.FilePrefix != "" && !strings.HasPrefix(n.Name(), o.FilePrefix) {
		return false
	}
	if o.NameFilter != nil && !o.NameFilter(n) {
		return false
	}
	if o.BrowseFilter != nil && !o.BrowseFilter(n) {
		return false
	}
	return true
}
