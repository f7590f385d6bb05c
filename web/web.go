// Package web embeds the browser pages served by the API.
package web

import (
	"embed"
	"io/fs"
)

//go:embed *.html
var pages embed.FS

// Page returns the named HTML page, e.g. "index.html".
func Page(name string) ([]byte, error) {
	return fs.ReadFile(pages, name)
}
