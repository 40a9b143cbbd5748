// Package zipserve resolves control panel assets from a ZIP archive.
//
// Entries are looked up by their exact names as recorded in the archive. There
// is no filesystem behind an archive, so request paths that try to climb out of
// the root with ".." simply fail to match anything.
package zipserve

import (
	"archive/zip"
	"fmt"
	"io"
	"sync"

	"github.com/ahamlinman/panelrelay/internal/assets"
	"github.com/ahamlinman/panelrelay/internal/log"
)

// Archive is an assets.Source backed by the entries of a ZIP file. A nil
// *Archive is valid, and behaves as an archive with no entries.
type Archive struct {
	zr     *zip.Reader
	closer io.Closer

	index     map[string]*zip.File
	indexName string

	closeOnce sync.Once
}

// Open opens the ZIP file at path and indexes its entries. The file stays
// open until Close is called.
func Open(path string) (*Archive, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}

	a := New(&zrc.Reader)
	a.closer = zrc
	return a, nil
}

// New indexes the entries of an already open ZIP reader. The caller remains
// responsible for the lifetime of whatever zr reads from.
func New(zr *zip.Reader) *Archive {
	index := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		// A specially crafted archive can repeat a name, in which case we let the
		// latest entry win.
		index[f.Name] = f
	}

	return &Archive{
		zr:        zr,
		index:     index,
		indexName: findIndexName(index),
	}
}

// IndexName returns the name of the entry served for directory-like requests,
// or the empty string if the archive has none.
func (a *Archive) IndexName() string {
	if a == nil {
		return ""
	}
	return a.indexName
}

// Len returns the number of distinct entries in the archive.
func (a *Archive) Len() int {
	if a == nil {
		return 0
	}
	return len(a.index)
}

// Resolve implements assets.Source.
func (a *Archive) Resolve(p string) assets.Asset {
	target := p
	if assets.IsIndexPath(target) {
		target = a.IndexName()
		if target == "" {
			target = defaultIndexName
		}
	}
	target = assets.ToSlash(target)

	if a == nil {
		return assets.NotFound
	}

	f, ok := a.index[target]
	if !ok || f.Mode().IsDir() {
		return assets.NotFound
	}

	body, err := readEntry(f)
	if err != nil {
		log.Tprintf(a, "Unable to read %q: %v", target, err)
		return assets.NotFound
	}
	return assets.Found(target, body)
}

// Close releases the underlying file if the archive was created by Open.
func (a *Archive) Close() (err error) {
	if a == nil || a.closer == nil {
		return nil
	}
	a.closeOnce.Do(func() { err = a.closer.Close() })
	return
}

func readEntry(f *zip.File) ([]byte, error) {
	fr, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	// The reader returned by Open verifies the CRC-32 when it reaches EOF, so a
	// complete read is also an integrity check.
	return io.ReadAll(fr)
}
