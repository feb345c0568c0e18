// Package objstore implements blob.Remote on an S3-compatible bucket via
// minio-go. Object keys are flat; folders are the "/"-delimited common
// prefixes between them, so a folder exists exactly when some key lies
// beneath it.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lakeio/internal/blob"
)

func init() {
	blob.Register("minio", func(_ context.Context, cfg blob.Config) (blob.Remote, error) {
		return New(Options{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
	})
}

// Options configures New.
type Options struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Remote serves one bucket, optionally below a key prefix.
type Remote struct {
	api    objectAPI
	prefix string
}

// New validates opts and builds the minio client. It does not contact the
// endpoint.
func New(opts Options) (*Remote, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("objstore: endpoint is empty")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("objstore: bucket is empty")
	}
	c, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: client: %w", err)
	}
	return newRemote(&minioAPI{c: c, bucket: opts.Bucket}, opts.Prefix), nil
}

func newRemote(api objectAPI, prefix string) *Remote {
	return &Remote{api: api, prefix: cleanPrefix(prefix)}
}

func (r *Remote) Name() string { return "minio" }

func (r *Remote) GetStatus(ctx context.Context, p string) (blob.Node, error) {
	if blob.IsRoot(p) {
		return blob.Node{Path: "/", Kind: blob.KindFolder}, nil
	}
	info, err := r.api.stat(ctx, r.key(p))
	if err == nil {
		return fileNode(p, info), nil
	}
	if !isNoSuchKey(err) {
		return blob.Node{}, err
	}
	ok, err := r.isFolder(ctx, p)
	if err != nil {
		return blob.Node{}, err
	}
	if !ok {
		return blob.Node{}, fmt.Errorf("objstore: %s: %w", p, blob.ErrNotFound)
	}
	return blob.Node{Path: p, Kind: blob.KindFolder}, nil
}

// List returns the direct children of p. Listing a file returns the file.
func (r *Remote) List(ctx context.Context, p string) ([]blob.Node, error) {
	var out []blob.Node
	for info := range r.api.list(ctx, r.folderKey(p), false) {
		if info.Err != nil {
			return nil, info.Err
		}
		child := r.path(info.Key)
		if child == "" || child == p {
			continue
		}
		if strings.HasSuffix(info.Key, "/") {
			out = append(out, blob.Node{Path: child, Kind: blob.KindFolder})
			continue
		}
		out = append(out, fileNode(child, info))
	}
	if len(out) > 0 || blob.IsRoot(p) {
		return out, nil
	}

	n, err := r.GetStatus(ctx, p)
	if err != nil {
		return nil, err
	}
	if n.IsFolder() {
		return nil, nil
	}
	return []blob.Node{n}, nil
}

// Download copies the object at p to w. Reading a folder is a bad request.
func (r *Remote) Download(ctx context.Context, p string, w io.Writer) error {
	rc, err := r.api.get(ctx, r.key(p))
	if err != nil {
		if !isNoSuchKey(err) {
			return err
		}
		if ok, ferr := r.isFolder(ctx, p); ferr == nil && ok {
			return fmt.Errorf("objstore: %s is a folder: %w", p, blob.ErrBadRequest)
		}
		return fmt.Errorf("objstore: %s: %w", p, blob.ErrNotFound)
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

// Upload stores src at p. Without overwrite an existing object is an error.
func (r *Remote) Upload(ctx context.Context, p string, overwrite bool, src io.Reader) error {
	key := r.key(p)
	if !overwrite {
		_, err := r.api.stat(ctx, key)
		if err == nil {
			return fmt.Errorf("objstore: %s already exists: %w", p, blob.ErrBadRequest)
		}
		if !isNoSuchKey(err) {
			return err
		}
	}
	return r.api.put(ctx, key, src)
}

// Delete removes the object at p, and with recursive every key below it.
// A folder with children and no recursive flag is a bad request.
func (r *Remote) Delete(ctx context.Context, p string, recursive bool) error {
	var under []string
	for info := range r.api.list(ctx, r.folderKey(p), true) {
		if info.Err != nil {
			return info.Err
		}
		under = append(under, info.Key)
	}
	if len(under) > 0 && !recursive {
		return fmt.Errorf("objstore: %s is not empty: %w", p, blob.ErrBadRequest)
	}
	if !blob.IsRoot(p) {
		if err := r.api.remove(ctx, r.key(p)); err != nil && !isNoSuchKey(err) {
			return err
		}
	}
	for _, k := range under {
		if err := r.api.remove(ctx, k); err != nil && !isNoSuchKey(err) {
			return err
		}
	}
	return nil
}

func (r *Remote) isFolder(ctx context.Context, p string) (bool, error) {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	info, ok := <-r.api.list(lctx, r.folderKey(p), false)
	if !ok {
		return false, nil
	}
	if info.Err != nil {
		return false, info.Err
	}
	return true, nil
}

func fileNode(p string, info minio.ObjectInfo) blob.Node {
	size := info.Size
	return blob.Node{Path: p, Kind: blob.KindFile, Size: &size, ModTime: info.LastModified}
}

func isNoSuchKey(err error) bool {
	if errors.Is(err, blob.ErrNotFound) {
		return true
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

var _ blob.Remote = (*Remote)(nil)
