package assets

import (
	"path"
	"strings"
)

// Normalize converts a raw request path to a canonical asset path: a Clean
// relative path separated by forward slashes, with no query or fragment. The
// root is represented by the empty string. All leading slashes are removed, so
// "//" and "/" both name the root and the result never looks absolute.
//
// Normalize works lexically. Leading ".." elements are kept, since a relative
// path has nothing to resolve them against; it is up to sources backed by a
// real filesystem to contain them.
func Normalize(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimLeft(raw, "/")

	p := path.Clean(raw)
	if p == "." {
		return ""
	}
	return p
}

// IsIndexPath reports whether a canonical path asks for a directory's index
// page rather than a named file.
func IsIndexPath(p string) bool {
	return p == "" || strings.HasSuffix(p, "/")
}

// ToSlash replaces Windows-style separators, which some clients and archivers
// still produce, with forward slashes.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
