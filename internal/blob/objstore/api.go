package objstore

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// objectAPI is the bucket-scoped subset of *minio.Client the remote uses
// (test seam).
type objectAPI interface {
	stat(ctx context.Context, key string) (minio.ObjectInfo, error)
	list(ctx context.Context, prefix string, recursive bool) <-chan minio.ObjectInfo
	get(ctx context.Context, key string) (io.ReadCloser, error)
	put(ctx context.Context, key string, r io.Reader) error
	remove(ctx context.Context, key string) error
}

type minioAPI struct {
	c      *minio.Client
	bucket string
}

func (m *minioAPI) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return m.c.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
}

func (m *minioAPI) list(ctx context.Context, prefix string, recursive bool) <-chan minio.ObjectInfo {
	return m.c.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: recursive})
}

// get surfaces a missing key at open time; GetObject alone defers it to the
// first read.
func (m *minioAPI) get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.c.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (m *minioAPI) put(ctx context.Context, key string, r io.Reader) error {
	_, err := m.c.PutObject(ctx, m.bucket, key, r, -1, minio.PutObjectOptions{})
	return err
}

func (m *minioAPI) remove(ctx context.Context, key string) error {
	return m.c.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
