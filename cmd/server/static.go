package main

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/phrazzld/taskflow/internal/api/shared"
)

// spaHandler serves the built client from dir. Paths that do not name a
// file get index.html so client-side routes survive a reload; unknown API
// paths still get a JSON 404.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			shared.RespondWithError(w, r, http.StatusNotFound, MsgRouteNotFound)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			shared.RespondWithError(w, r, http.StatusNotFound, MsgRouteNotFound)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}
