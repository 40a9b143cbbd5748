package api

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/ahamlinman/panelrelay/internal/assets"
)

// staticRoute serves the panel's assets, trying each configured source in
// order. A source that can't produce the asset, whether because it's missing
// or because the path was refused, just passes the request along.
type staticRoute struct{}

func (staticRoute) Kind() string { return "static" }

func (staticRoute) serve(h *Handler, w http.ResponseWriter, r *http.Request) {
	p := assets.Normalize(r.URL.Path)

	for _, ns := range h.sources {
		a := ns.source.Resolve(p)
		h.metrics.ObserveAssetLookup(ns.name, a.StatusCode)
		if a.OK() {
			writeAsset(w, a)
			return
		}
	}

	if p == "" || p == "index.html" {
		writeAsset(w, h.fallbackPage())
		return
	}

	writeJSON(w, http.StatusNotFound, errNotFound)
}

func writeAsset(w http.ResponseWriter, a assets.Asset) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Body)))
	w.WriteHeader(a.StatusCode)
	w.Write(a.Body)
}

var fallbackTemplate = template.Must(template.New("fallback").Parse(`<!doctype html>
<meta charset="utf-8">
<title>panelrelay</title>
<style>body{font-family:system-ui;margin:24px}</style>
<h1>panelrelay</h1>
<p>No panel archive or directory is configured. Use <code>--zip</code> or <code>--dir</code>, or set <code>STATIC_ZIP</code> or <code>STATIC_DIR</code>.</p>
<pre>ESP32_BASE = {{.DeviceBase}}</pre>
<p>API: <a href="/api/status">/api/status</a></p>
`))

// fallbackPage renders the built-in page served at the root when no source
// has an index page.
func (h *Handler) fallbackPage() assets.Asset {
	var buf bytes.Buffer
	fallbackTemplate.Execute(&buf, struct{ DeviceBase string }{h.device.BaseURL})
	return assets.Asset{
		Body:        buf.Bytes(),
		ContentType: "text/html; charset=utf-8",
		StatusCode:  http.StatusOK,
	}
}
