// Package assets resolves request paths to the static files of the control
// panel, either from a directory on disk or (through the zipserve subpackage)
// from a ZIP archive.
//
// Lookups never fail with an error. A source that cannot produce a file
// returns one of the body-less sentinels NotFound or Forbidden, and the caller
// is expected to move on to its next source.
package assets

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Asset is the result of a source lookup. A successful lookup carries the full
// file contents with StatusOK; an unsuccessful one is a sentinel with no body.
type Asset struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

var (
	// NotFound is returned when a source has nothing at the requested path.
	NotFound = Asset{StatusCode: http.StatusNotFound}
	// Forbidden is returned when a requested path escapes a directory root.
	Forbidden = Asset{StatusCode: http.StatusForbidden}
)

// Found returns an Asset for a successful lookup of name.
func Found(name string, body []byte) Asset {
	return Asset{
		Body:        body,
		ContentType: ContentType(name),
		StatusCode:  http.StatusOK,
	}
}

// OK indicates whether a was actually found.
func (a Asset) OK() bool {
	return a.StatusCode == http.StatusOK
}

// Source is implemented by anything that can resolve a canonical path (see
// Normalize) to an Asset.
type Source interface {
	Resolve(p string) Asset
}

// ContentType guesses the MIME type of name from its extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype
	}

	// Some minimal systems ship without a MIME database, and these are the two
	// types a browser refuses to use when they're wrong.
	switch ext {
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	}
	return "application/octet-stream"
}
