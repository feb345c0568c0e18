package dbfs

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lakeio/internal/blob"
)

// fileInfo is the DBFS FileInfo object.
type fileInfo struct {
	Path             string `json:"path"`
	IsDir            bool   `json:"is_dir"`
	FileSize         int64  `json:"file_size"`
	ModificationTime int64  `json:"modification_time"`
}

func (f fileInfo) node() blob.Node {
	n := blob.Node{Path: blob.Normalize(f.Path, true), Kind: blob.KindFile}
	if f.ModificationTime > 0 {
		n.ModTime = time.UnixMilli(f.ModificationTime).UTC()
	}
	if f.IsDir {
		n.Kind = blob.KindFolder
		return n
	}
	size := f.FileSize
	n.Size = &size
	return n
}

func (r *Remote) Name() string { return "dbfs" }

func (r *Remote) GetStatus(ctx context.Context, p string) (blob.Node, error) {
	var fi fileInfo
	if err := r.call(ctx, http.MethodGet, "get-status", url.Values{"path": {p}}, nil, &fi); err != nil {
		return blob.Node{}, err
	}
	if fi.Path == "" {
		fi.Path = p
	}
	return fi.node(), nil
}

// List returns the direct children of p. The API answers a file path with
// the file itself and an empty folder with no "files" key.
func (r *Remote) List(ctx context.Context, p string) ([]blob.Node, error) {
	var resp struct {
		Files []fileInfo `json:"files"`
	}
	if err := r.call(ctx, http.MethodGet, "list", url.Values{"path": {p}}, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]blob.Node, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, f.node())
	}
	return out, nil
}

// Download streams p to w in blocks. Reading a folder is a 400.
func (r *Remote) Download(ctx context.Context, p string, w io.Writer) error {
	var offset int64
	for {
		var resp struct {
			BytesRead int64  `json:"bytes_read"`
			Data      string `json:"data"`
		}
		q := url.Values{
			"path":   {p},
			"offset": {strconv.FormatInt(offset, 10)},
			"length": {strconv.Itoa(r.block)},
		}
		if err := r.call(ctx, http.MethodGet, "read", q, nil, &resp); err != nil {
			return err
		}
		if resp.BytesRead == 0 {
			return nil
		}
		data, err := base64.StdEncoding.DecodeString(resp.Data)
		if err != nil {
			return fmt.Errorf("dbfs: read %s: decode block at %d: %w", p, offset, err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		offset += resp.BytesRead
		if resp.BytesRead < int64(r.block) {
			return nil
		}
	}
}

// Upload streams src to p with create / add-block / close. If a block fails
// the handle is closed best-effort; the partial file stays on DBFS.
func (r *Remote) Upload(ctx context.Context, p string, overwrite bool, src io.Reader) error {
	var created struct {
		Handle int64 `json:"handle"`
	}
	in := map[string]any{"path": p, "overwrite": overwrite}
	if err := r.call(ctx, http.MethodPost, "create", nil, in, &created); err != nil {
		return err
	}

	if err := r.addBlocks(ctx, created.Handle, src); err != nil {
		_ = r.call(context.WithoutCancel(ctx), http.MethodPost, "close", nil, map[string]any{"handle": created.Handle}, nil)
		return err
	}
	return r.call(ctx, http.MethodPost, "close", nil, map[string]any{"handle": created.Handle}, nil)
}

func (r *Remote) addBlocks(ctx context.Context, handle int64, src io.Reader) error {
	buf := make([]byte, r.block)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			in := map[string]any{"handle": handle, "data": base64.StdEncoding.EncodeToString(buf[:n])}
			if cerr := r.call(ctx, http.MethodPost, "add-block", nil, in, nil); cerr != nil {
				return cerr
			}
		}
		switch err {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return fmt.Errorf("dbfs: read upload source: %w", err)
		}
	}
}

func (r *Remote) Delete(ctx context.Context, p string, recursive bool) error {
	return r.call(ctx, http.MethodPost, "delete", nil, map[string]any{"path": p, "recursive": recursive}, nil)
}

var _ blob.Remote = (*Remote)(nil)
