package yadisk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDisk is an in-memory Yandex Disk.
type fakeDisk struct {
	mu        sync.Mutex
	dirs      map[string]bool
	files     map[string][]byte
	published map[string]bool
	uploads   int
	server    *httptest.Server
}

func newFakeDisk(t *testing.T) *fakeDisk {
	t.Helper()

	d := &fakeDisk{
		dirs:      map[string]bool{"/": true},
		files:     make(map[string][]byte),
		published: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/disk/resources", d.resources)
	mux.HandleFunc("/v1/disk/resources/upload", d.uploadLink)
	mux.HandleFunc("/v1/disk/resources/publish", d.publish)
	mux.HandleFunc("/upload-target", d.receive)

	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)

	return d
}

func (d *fakeDisk) client() *Client {
	return New(Config{Token: "secret", BaseURL: d.server.URL + "/v1/disk/"})
}

func (d *fakeDisk) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "OAuth secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}

	return true
}

func (d *fakeDisk) resources(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p := r.URL.Query().Get("path")

	switch r.Method {
	case http.MethodGet:
		switch {
		case d.dirs[p]:
			_ = json.NewEncoder(w).Encode(resource{Path: p, Type: "dir"})
		case d.files[p] != nil:
			res := resource{Path: p, Type: "file"}
			if d.published[p] {
				res.PublicURL = "https://yadi.sk/d/" + filepath.Base(p)
			}

			_ = json.NewEncoder(w).Encode(res)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodPut:
		if d.dirs[p] {
			w.WriteHeader(http.StatusConflict)
			return
		}

		if !d.dirs[parentDir(p)] {
			w.WriteHeader(http.StatusConflict)
			return
		}

		d.dirs[p] = true
		w.WriteHeader(http.StatusCreated)
	}
}

func (d *fakeDisk) uploadLink(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p := r.URL.Query().Get("path")
	if d.files[p] != nil {
		w.WriteHeader(http.StatusConflict)
		return
	}

	_ = json.NewEncoder(w).Encode(link{Href: d.server.URL + "/upload-target?path=" + p, Method: http.MethodPut})
}

func (d *fakeDisk) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.files[r.URL.Query().Get("path")] = body
	d.uploads++

	w.WriteHeader(http.StatusCreated)
}

func (d *fakeDisk) publish(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p := r.URL.Query().Get("path")
	if d.files[p] == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	d.published[p] = true
	_ = json.NewEncoder(w).Encode(link{Href: d.server.URL + "/v1/disk/resources?path=" + p})
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}

	return p[:i]
}

func TestEnsurePath(t *testing.T) {
	disk := newFakeDisk(t)
	c := disk.client()

	require.NoError(t, c.EnsurePath(context.Background(), "/Media/Downloads/"))
	assert.True(t, disk.dirs["/Media"])
	assert.True(t, disk.dirs["/Media/Downloads"])

	require.NoError(t, c.EnsurePath(context.Background(), "/Media/Downloads/"))
}

func TestUploadIsIdempotent(t *testing.T) {
	disk := newFakeDisk(t)
	c := disk.client()
	ctx := context.Background()

	require.NoError(t, c.EnsurePath(ctx, "/Media/Downloads/"))

	local := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF-1.4"), 0o600))

	href, err := c.Upload(ctx, local, "/Media/Downloads/", "book.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://yadi.sk/d/book.pdf", href)
	assert.Equal(t, []byte("%PDF-1.4"), disk.files["/Media/Downloads/book.pdf"])

	href, err = c.Upload(ctx, local, "/Media/Downloads/", "book.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://yadi.sk/d/book.pdf", href)
	assert.Equal(t, 1, disk.uploads)
}

func TestUploadMissingLocalFile(t *testing.T) {
	disk := newFakeDisk(t)
	c := disk.client()

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "/", "nope.pdf")
	require.Error(t, err)
	assert.Zero(t, disk.uploads)
}

func TestUnauthorized(t *testing.T) {
	disk := newFakeDisk(t)
	c := New(Config{Token: "wrong", BaseURL: disk.server.URL + "/v1/disk"})

	err := c.EnsurePath(context.Background(), "/Media")
	require.ErrorIs(t, err, errUnexpectedStatus)
}
