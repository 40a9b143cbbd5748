package zipserve

import "archive/zip"

const defaultIndexName = "index.html"

// indexCandidates are the entry names that may serve as the archive's index
// page, in order of preference. Matching is exact; an archive whose index is
// spelled any other way has no index.
var indexCandidates = []string{
	"index.html",
	"index.htm",
	"Index.html",
	"INDEX.HTML",
}

func findIndexName(index map[string]*zip.File) string {
	for _, name := range indexCandidates {
		if _, ok := index[name]; ok {
			return name
		}
	}
	return ""
}
