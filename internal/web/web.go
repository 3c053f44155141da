// Package web embeds the browser client served at "/".
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// Static returns the client assets rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// IndexHandler serves index.html.
func IndexHandler() http.Handler {
	static := Static()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, static, "index.html")
	})
}

// StaticHandler serves the assets under /static/.
func StaticHandler() http.Handler {
	return http.StripPrefix("/static/", http.FileServerFS(Static()))
}
