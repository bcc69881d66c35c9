package handler

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FileHandler serves files below a root directory. The root is opened with
// os.OpenRoot, so neither ".." segments nor symlinks can reach outside it.
type FileHandler struct {
	root  *os.Root
	fsys  fs.FS
	files http.Handler
}

// NewFileHandler opens dir and returns a handler serving its contents
func NewFileHandler(dir string) (*FileHandler, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open root %s: %w", dir, err)
	}

	fsys := root.FS()
	return &FileHandler{
		root:  root,
		fsys:  fsys,
		files: http.FileServerFS(fsys),
	}, nil
}

// Close releases the root directory handle
func (h *FileHandler) Close() error {
	return h.root.Close()
}

// ServeHTTP handles GET/HEAD for any path under the root
func (h *FileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if etag, ok := h.etag(r.URL.Path); ok {
		// http.FileServer answers If-None-Match from this header.
		w.Header().Set("ETag", etag)
	}
	h.files.ServeHTTP(w, r)
}

// etag derives a validator from the file's name, size and mtime. Contents are
// not read, so a rewrite that preserves both size and mtime keeps the tag.
func (h *FileHandler) etag(urlPath string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}

	info, err := fs.Stat(h.fsys, name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(info.Size()))
	binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))

	d := xxhash.New()
	_, _ = d.WriteString(name)
	_, _ = d.Write(buf[:])

	return fmt.Sprintf(`"%016x"`, d.Sum64()), true
}
