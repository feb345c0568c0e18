package dbfs

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const testToken = "dapi-test"

// fakeDBFS is an in-memory DBFS API. Folders are implied by file paths plus
// explicit mkdirs.
type fakeDBFS struct {
	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	handles map[int64]string
	next    int64
	calls   map[string]int

	// readAs400 makes read of these paths answer 400 (the service does this
	// for some missing paths).
	readAs400 map[string]bool
	// failList makes list of these paths answer 500.
	failList map[string]bool
}

func newFakeDBFS(t *testing.T) (*fakeDBFS, *Remote) {
	t.Helper()
	f := &fakeDBFS{
		files:     map[string][]byte{},
		dirs:      map[string]bool{"/": true},
		handles:   map[int64]string{},
		calls:     map[string]int{},
		readAs400: map[string]bool{},
		failList:  map[string]bool{},
	}
	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)

	r, err := New(Options{BaseURL: srv.URL, Token: testToken, RequestsPerSecond: 1000, BlockSize: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f, r
}

func (f *fakeDBFS) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.auth)
	r.Route("/api/2.0/dbfs", func(r chi.Router) {
		r.Get("/get-status", f.getStatus)
		r.Get("/list", f.list)
		r.Get("/read", f.read)
		r.Post("/create", f.create)
		r.Post("/add-block", f.addBlock)
		r.Post("/close", f.close)
		r.Post("/delete", f.delete)
	})
	return r
}

func (f *fakeDBFS) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeErr(w, http.StatusUnauthorized, "UNAUTHENTICATED", "bad token")
			return
		}
		f.mu.Lock()
		f.calls[path.Base(r.URL.Path)]++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeDBFS) put(p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = data
	for d := path.Dir(p); ; d = path.Dir(d) {
		f.dirs[d] = true
		if d == "/" {
			break
		}
	}
}

func (f *fakeDBFS) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error_code": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeDBFS) info(p string) (fileInfo, bool) {
	if data, ok := f.files[p]; ok {
		return fileInfo{Path: p, FileSize: int64(len(data)), ModificationTime: 1700000000000}, true
	}
	if f.dirs[p] {
		return fileInfo{Path: p, IsDir: true}, true
	}
	return fileInfo{}, false
}

func (f *fakeDBFS) getStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := r.URL.Query().Get("path")
	fi, ok := f.info(p)
	if !ok {
		writeErr(w, http.StatusNotFound, errResourceDoesNotExist, "No file or directory exists on path "+p+".")
		return
	}
	writeJSON(w, fi)
}

func (f *fakeDBFS) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := r.URL.Query().Get("path")
	if f.failList[p] {
		writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", "boom")
		return
	}
	fi, ok := f.info(p)
	if !ok {
		writeErr(w, http.StatusNotFound, errResourceDoesNotExist, "No file or directory exists on path "+p+".")
		return
	}
	if !fi.IsDir {
		writeJSON(w, map[string]any{"files": []fileInfo{fi}})
		return
	}

	seen := map[string]bool{}
	var out []fileInfo
	add := func(child string) {
		if path.Dir(child) != p || seen[child] || child == p {
			return
		}
		seen[child] = true
		c, _ := f.info(child)
		out = append(out, c)
	}
	for fp := range f.files {
		add(fp)
	}
	for d := range f.dirs {
		add(d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if len(out) == 0 {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, map[string]any{"files": out})
}

func (f *fakeDBFS) read(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	p := q.Get("path")
	if f.readAs400[p] {
		writeErr(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "bad request")
		return
	}
	if f.dirs[p] {
		writeErr(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "cannot read directory "+p)
		return
	}
	data, ok := f.files[p]
	if !ok {
		writeErr(w, http.StatusNotFound, errResourceDoesNotExist, "No file exists on path "+p+".")
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	length, _ := strconv.Atoi(q.Get("length"))
	if offset > len(data) {
		offset = len(data)
	}
	end := offset + length
	if end > len(data) {
		end = len(data)
	}
	chunk := data[offset:end]
	writeJSON(w, map[string]any{"bytes_read": len(chunk), "data": base64.StdEncoding.EncodeToString(chunk)})
}

func (f *fakeDBFS) create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Path      string `json:"path"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !strings.HasPrefix(in.Path, "/") {
		writeErr(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "bad path")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.files[in.Path]; exists && !in.Overwrite {
		writeErr(w, http.StatusBadRequest, "RESOURCE_ALREADY_EXISTS", "exists")
		return
	}
	f.next++
	f.handles[f.next] = in.Path
	f.files[in.Path] = nil
	for d := path.Dir(in.Path); ; d = path.Dir(d) {
		f.dirs[d] = true
		if d == "/" {
			break
		}
	}
	writeJSON(w, map[string]any{"handle": f.next})
}

func (f *fakeDBFS) addBlock(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Handle int64  `json:"handle"`
		Data   string `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	data, err := base64.StdEncoding.DecodeString(in.Data)
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.handles[in.Handle]
	if !ok || err != nil {
		writeErr(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "bad handle or data")
		return
	}
	f.files[p] = append(f.files[p], data...)
	writeJSON(w, map[string]any{})
}

func (f *fakeDBFS) close(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Handle int64 `json:"handle"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, in.Handle)
	writeJSON(w, map[string]any{})
}

func (f *fakeDBFS) delete(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dirs[in.Path] {
		prefix := strings.TrimSuffix(in.Path, "/") + "/"
		hasChildren := false
		for fp := range f.files {
			if strings.HasPrefix(fp, prefix) {
				hasChildren = true
			}
		}
		if hasChildren && !in.Recursive {
			writeErr(w, http.StatusBadRequest, "IO_ERROR", "directory not empty")
			return
		}
		for fp := range f.files {
			if strings.HasPrefix(fp, prefix) {
				delete(f.files, fp)
			}
		}
		for d := range f.dirs {
			if d == in.Path || strings.HasPrefix(d, prefix) {
				delete(f.dirs, d)
			}
		}
	}
	delete(f.files, in.Path)
	writeJSON(w, map[string]any{})
}
