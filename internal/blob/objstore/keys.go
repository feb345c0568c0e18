package objstore

import (
	"strings"

	"lakeio/internal/blob"
)

// cleanPrefix reduces a configured prefix to "" or "a/b/".
func cleanPrefix(prefix string) string {
	prefix = strings.Trim(strings.ReplaceAll(prefix, `\`, "/"), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// key maps a normalized blob path to its object key.
func (r *Remote) key(p string) string {
	return r.prefix + strings.TrimPrefix(blob.Normalize(p, true), "/")
}

// folderKey is the listing prefix for the children of p.
func (r *Remote) folderKey(p string) string {
	if blob.IsRoot(p) {
		return r.prefix
	}
	return r.key(p) + "/"
}

// path maps an object key (or common prefix) back to a blob path. Keys
// outside the prefix map to "".
func (r *Remote) path(key string) string {
	if !strings.HasPrefix(key, r.prefix) {
		return ""
	}
	rel := strings.TrimSuffix(strings.TrimPrefix(key, r.prefix), "/")
	if rel == "" {
		return ""
	}
	return blob.Normalize(rel, true)
}
