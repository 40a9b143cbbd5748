package assets

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultIndex = "index.html"

// Directory serves assets from a directory tree rooted at Root.
//
// Requests are always contained within Root: a path that lexically resolves to
// a location outside of it yields Forbidden, no matter what it would point to.
// Unlike http.FileServer, Directory never serves listings and never redirects;
// a directory-like request is answered with its index.html or not at all.
type Directory struct {
	Root string
}

// Resolve implements Source.
func (d Directory) Resolve(p string) Asset {
	if d.Root == "" {
		return NotFound
	}
	if s, err := os.Stat(d.Root); err != nil || !s.IsDir() {
		return NotFound
	}

	rel := p
	if IsIndexPath(rel) {
		rel = defaultIndex
	}
	rel = ToSlash(rel)

	fsPath, ok := d.contain(rel)
	if !ok {
		return Forbidden
	}

	s, err := os.Stat(fsPath)
	if err != nil || !s.Mode().IsRegular() {
		return NotFound
	}

	body, err := os.ReadFile(fsPath)
	if err != nil {
		return NotFound
	}
	return Found(fsPath, body)
}

// contain joins rel onto the root and returns the absolute result, along with
// whether that result is still inside the root.
func (d Directory) contain(rel string) (string, bool) {
	absRoot, err := filepath.Abs(d.Root)
	if err != nil {
		return "", false
	}

	absPath, err := filepath.Abs(filepath.Join(absRoot, filepath.FromSlash(rel)))
	if err != nil {
		return "", false
	}

	if absPath == absRoot {
		return absPath, true
	}
	// A bare prefix match would let "/srv/web" leak into "/srv/website".
	prefix := absRoot
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return absPath, strings.HasPrefix(absPath, prefix)
}
