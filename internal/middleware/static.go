package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const placeholderPage = `<!doctype html><html><head><meta charset="utf-8"><title>Treasure Hunt</title></head><body><h1>Treasure Hunt</h1><p>The game client has not been built yet.</p></body></html>`

// StaticFileServer serves the game client from dir. Unknown paths fall back
// to index.html so client side routes resolve; without a build a
// placeholder page is served.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), "index.") {
				w.Header().Set("Cache-Control", "no-cache")
			} else {
				w.Header().Set("Cache-Control", "public, max-age=2592000")
			}
			serveFile(w, r, path)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err == nil {
			w.Header().Set("Cache-Control", "no-cache")
			serveFile(w, r, index)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(placeholderPage))
	})
}

// serveFile writes the file at path. The request path is not consulted, so
// cleaned paths that still carry ".." in the URL are served normally.
func serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
