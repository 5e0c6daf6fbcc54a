package static

import (
	"embed"
	"net/http"
)

//go:embed css/*
var staticFS embed.FS

// Handler serves the embedded assets. Mount it under /static/ with the
// prefix stripped.
func Handler() http.Handler {
	files := http.FileServer(http.FS(staticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
