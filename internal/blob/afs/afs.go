// Package afs implements blob.Remote on an afero filesystem: a local
// directory ("local") or an in-memory tree ("memory").
package afs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"lakeio/internal/blob"
)

func init() {
	blob.Register("local", func(_ context.Context, cfg blob.Config) (blob.Remote, error) {
		if cfg.Root == "" {
			return nil, fmt.Errorf("afs: local remote requires a root directory")
		}
		st, err := os.Stat(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("afs: root: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("afs: root %s is not a directory", cfg.Root)
		}
		return NewLocal(cfg.Root), nil
	})
	blob.Register("memory", func(context.Context, blob.Config) (blob.Remote, error) {
		return NewMemory(), nil
	})
}

// Remote adapts an afero.Fs. Paths are rooted at the filesystem's root.
type Remote struct {
	name string
	fs   afero.Fs
}

// New wraps fs under the given remote name.
func New(name string, fsys afero.Fs) *Remote {
	return &Remote{name: name, fs: fsys}
}

// NewLocal serves the directory root.
func NewLocal(root string) *Remote {
	return New("local", afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewMemory returns an empty in-memory remote.
func NewMemory() *Remote {
	return New("memory", afero.NewMemMapFs())
}

func (r *Remote) Name() string { return r.name }

func (r *Remote) GetStatus(ctx context.Context, p string) (blob.Node, error) {
	if err := ctx.Err(); err != nil {
		return blob.Node{}, err
	}
	fi, err := r.fs.Stat(p)
	if err != nil {
		return blob.Node{}, mapErr(err)
	}
	return toNode(p, fi), nil
}

// List returns the direct children of p. Listing a file returns the file
// itself, matching the DBFS list API.
func (r *Remote) List(ctx context.Context, p string) ([]blob.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := r.fs.Stat(p)
	if err != nil {
		return nil, mapErr(err)
	}
	if !fi.IsDir() {
		return []blob.Node{toNode(p, fi)}, nil
	}
	infos, err := afero.ReadDir(r.fs, p)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]blob.Node, 0, len(infos))
	for _, fi := range infos {
		out = append(out, toNode(blob.Combine(p, fi.Name()), fi))
	}
	return out, nil
}

func (r *Remote) Download(ctx context.Context, p string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := r.fs.Open(p)
	if err != nil {
		return mapErr(err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return mapErr(err)
	}
	if fi.IsDir() {
		return fmt.Errorf("afs: %s is a directory: %w", p, blob.ErrBadRequest)
	}
	_, err = io.Copy(w, f)
	return err
}

func (r *Remote) Upload(ctx context.Context, p string, overwrite bool, src io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.fs.MkdirAll(blob.Parent(p), 0o755); err != nil {
		return err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := r.fs.OpenFile(p, flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (r *Remote) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if recursive {
		return r.fs.RemoveAll(p)
	}
	// MemMapFs.Remove drops a non-empty directory and orphans its children.
	fi, err := r.fs.Stat(p)
	if err != nil {
		return mapErr(err)
	}
	if fi.IsDir() {
		entries, err := afero.ReadDir(r.fs, p)
		if err != nil {
			return mapErr(err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("afs: %s is not empty: %w", p, blob.ErrBadRequest)
		}
	}
	return mapErr(r.fs.Remove(p))
}

func toNode(p string, fi fs.FileInfo) blob.Node {
	n := blob.Node{Path: blob.Normalize(p, true), Kind: blob.KindFile, ModTime: fi.ModTime()}
	if fi.IsDir() {
		n.Kind = blob.KindFolder
		return n
	}
	size := fi.Size()
	n.Size = &size
	return n
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", blob.ErrNotFound, err)
	}
	return err
}

var _ blob.Remote = (*Remote)(nil)
