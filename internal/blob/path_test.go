package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		rooted string
		rel    string
	}{
		{"", "/", ""},
		{"/", "/", ""},
		{"a/b", "/a/b", "a/b"},
		{"/a//b/", "/a/b", "a/b"},
		{`a\b\c.txt`, "/a/b/c.txt", "a/b/c.txt"},
		{"./a/./b", "/a/b", "a/b"},
		{"a/../b", "/b", "b"},
		{"../../x", "/x", "x"},
		{"dbfs:/x", "/dbfs:/x", "dbfs:/x"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.rooted, Normalize(tc.in, true), "rooted %q", tc.in)
		assert.Equal(t, tc.rel, Normalize(tc.in, false), "relative %q", tc.in)
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/a/b/c", Combine("a", "/b/", "c"))
	assert.Equal(t, "c.csv", Name("/a/b/c.csv"))
	assert.Equal(t, "", Name("/"))
	assert.Equal(t, "/a/b", Parent("a/b/c.csv"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "/", Parent("/"))
	assert.True(t, IsRoot(""))
	assert.True(t, IsRoot("/./"))
	assert.False(t, IsRoot("/a"))
}

func TestOpError(t *testing.T) {
	err := &OpError{Op: "stat", Path: "/x", Remote: "dbfs", Err: ErrBadRequest}
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "blob dbfs: stat /x: blob: bad request", err.Error())
	assert.False(t, IsNotFound(err))
}

func TestRegister_Panics(t *testing.T) {
	f := func(context.Context, Config) (Remote, error) { return nil, nil }
	assert.Panics(t, func() { Register("", f) })
	assert.Panics(t, func() { Register("x-test", nil) })

	Register("x-dup", f)
	assert.Panics(t, func() { Register("x-dup", f) })
	assert.Contains(t, Kinds(), "x-dup")
}
