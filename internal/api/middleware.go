package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/ahamlinman/panelrelay/internal/log"
)

const requestIDHeader = "X-Request-ID"

// traceRequests attaches an ID to each request, reusing one supplied by the
// client if present, and echoes it back in the response.
func traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(log.WithRequestID(r.Context(), id)))
	})
}

// logRequests writes an access log line and records metrics for each request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		kind := h.lookup(r.Method, r.URL.Path).Kind()
		log.Rprintf(r, "%s %s -> %d [%s] (%v)", r.Method, r.URL.RequestURI(), sw.status, kind, elapsed)
		h.metrics.ObserveRequest(kind, r.Method, sw.status, elapsed)
	})
}

// recoverPanics turns a panicking handler into a 500 response, rather than a
// dropped connection.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			log.Rprintf(r, "Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
			setCommonHeaders(w.Header())
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
		}()

		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades through. A hijacked connection is logged with
// the 101 status it was upgraded with.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	sw.status = http.StatusSwitchingProtocols
	sw.wroteHeader = true
	return hj.Hijack()
}

// Unwrap supports http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
