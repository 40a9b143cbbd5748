package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ahamlinman/panelrelay/internal/log"
)

// proxyRoute forwards a request to a fixed device endpoint. The device only
// understands GET, so that is what it receives regardless of the method the
// panel used.
type proxyRoute struct {
	Endpoint string
	// Hint is included with failures to point the user at the likely cause.
	Hint string
}

func (proxyRoute) Kind() string { return "api" }

func (p proxyRoute) serve(h *Handler, w http.ResponseWriter, r *http.Request) {
	// A client that goes away does not abandon the device call; its result is
	// simply discarded.
	ctx := context.WithoutCancel(r.Context())

	resp, err := h.device.Fetch(ctx, p.Endpoint, h.deviceTimeout)
	if err != nil {
		log.Rprintf(r, "Device request failed: %v", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Hint: p.Hint})
		return
	}

	writeJSON(w, resp.StatusCode, packageDeviceBody(resp.Body))
}

// packageDeviceBody returns a JSON-encodable form of a device response body.
// Bodies that parse as JSON are passed through. Anything else is wrapped in a
// successful rawBody, even if the device reported an error status; panels
// depend on this.
func packageDeviceBody(body []byte) any {
	text := strings.ToValidUTF8(string(body), "")

	if v, err := decodeJSON(text); err == nil {
		return v
	}
	return rawBody{OK: true, Raw: text}
}

var errTrailingData = errors.New("trailing data after JSON value")

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber() // Keep the device's numbers exactly as it wrote them.

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

type rawBody struct {
	OK  bool   `json:"ok"`
	Raw string `json:"raw"`
}

// errorBody is the shape of every error produced by panelrelay itself. OK is
// always false.
type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

var errNotFound = errorBody{Error: "Not found"}

const jsonContentType = "application/json; charset=utf-8"

func writeJSON(w http.ResponseWriter, code int, body any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		code = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"ok":false,"error":"unable to encode response"}` + "\n")
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}
