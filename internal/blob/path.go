package blob

import (
	"path"
	"strings"
)

// Normalize returns the canonical form of p.
//
// Backslashes become '/', empty and "." segments are dropped, ".." pops one
// segment (never above the root) and the trailing slash is removed. An empty
// input is the root. rooted selects the absolute form ("/a/b", root "/") used
// by DBFS-style APIs or the relative form ("a/b", root "") used by object keys
// and afero base paths.
//
// Normalize never fails: malformed input degrades to the nearest valid path.
func Normalize(p string, rooted bool) string {
	p = strings.ReplaceAll(p, `\`, "/")
	clean := path.Clean("/" + p)
	if rooted {
		return clean
	}
	return strings.TrimPrefix(clean, "/")
}

// Combine joins parts and normalizes the result as a rooted path.
func Combine(parts ...string) string {
	return Normalize(strings.Join(parts, "/"), true)
}

// Name returns the last segment of p ("" for the root).
func Name(p string) string {
	p = Normalize(p, true)
	if p == "/" {
		return ""
	}
	return path.Base(p)
}

// Parent returns the rooted parent folder of p. The root is its own parent.
func Parent(p string) string {
	return path.Dir(Normalize(p, true))
}

// IsRoot reports whether p normalizes to the root.
func IsRoot(p string) bool {
	return Normalize(p, true) == "/"
}
