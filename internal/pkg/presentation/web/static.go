// Package web serves the static dashboard: sensor, rule, and action
// history views backed by the read-only API, plus a config editor.
package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RegisterHandlers mounts the embedded/on-disk dashboard under root,
// serving files out of dir with no-cache headers so the dashboard
// always reflects the latest sensor/rule state without a hard refresh.
func RegisterHandlers(router *chi.Mux, dir http.FileSystem) *chi.Mux {
	FileServer(router, "/", noCache(http.FileServer(dir)))
	return router
}

func noCache(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		h.ServeHTTP(w, r)
	}
}

// FileServer registers a chi route that serves files out of root
// under path, stripping the route prefix before handing off to the
// wrapped http.Handler.
func FileServer(r chi.Router, path string, handler http.Handler) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		http.StripPrefix(pathPrefix, handler).ServeHTTP(w, r)
	})
}
