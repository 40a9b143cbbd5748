// Package api serves the panelrelay HTTP surface: the control panel's static
// assets, and the small device API that the panel uses to operate the
// controller.
package api

import (
	"net/http"
	"time"

	"github.com/ahamlinman/panelrelay/internal/assets"
	"github.com/ahamlinman/panelrelay/internal/assets/zipserve"
	"github.com/ahamlinman/panelrelay/internal/device"
	"github.com/ahamlinman/panelrelay/internal/metrics"
)

// Config describes everything a Handler serves. It is read once by NewHandler
// and never modified afterward.
type Config struct {
	// Device is the client used for the proxied API routes. It is required.
	Device *device.Client
	// DeviceTimeout bounds each proxied request. It defaults to
	// device.DefaultTimeout.
	DeviceTimeout time.Duration

	// Archive, if not nil, is the first source consulted for static assets.
	Archive *zipserve.Archive
	// Directory, if not empty, is the root of the second source consulted for
	// static assets.
	Directory string

	// Monitor, if not nil, enables the status socket.
	Monitor *device.Monitor
	// Metrics, if not nil, receives request and lookup observations.
	Metrics *metrics.Metrics
}

const statusHint = "Check the connection to the ESP32 or the ESP32_BASE setting."

// Handler serves the panelrelay HTTP surface.
type Handler struct {
	device        *device.Client
	deviceTimeout time.Duration
	sources       []namedSource
	monitor       *device.Monitor
	metrics       *metrics.Metrics

	routes  map[routeKey]route
	handler http.Handler
}

type namedSource struct {
	name   string
	source assets.Source
}

// NewHandler creates a Handler serving the surface described by cfg.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		device:        cfg.Device,
		deviceTimeout: cfg.DeviceTimeout,
		monitor:       cfg.Monitor,
		metrics:       cfg.Metrics,
	}
	if h.deviceTimeout <= 0 {
		h.deviceTimeout = device.DefaultTimeout
	}

	// The archive always takes precedence over the directory.
	if cfg.Archive != nil {
		h.sources = append(h.sources, namedSource{"archive", cfg.Archive})
	}
	if cfg.Directory != "" {
		h.sources = append(h.sources, namedSource{"directory", assets.Directory{Root: cfg.Directory}})
	}

	h.routes = map[routeKey]route{
		{http.MethodGet, "/api/status"}: proxyRoute{
			Endpoint: device.EndpointStatus,
			Hint:     statusHint,
		},
		{http.MethodPost, "/api/start"}: proxyRoute{
			Endpoint: device.EndpointStart,
			Hint:     "Could not contact the ESP32 (/api/start).",
		},
		{http.MethodPost, "/api/stop"}: proxyRoute{
			Endpoint: device.EndpointStop,
			Hint:     "Could not contact the ESP32 (/api/stop).",
		},
	}
	if h.monitor != nil {
		h.routes[routeKey{http.MethodGet, statusSocketPath}] = socketRoute{}
	}

	// Recovery is outermost so that it also covers the other middleware.
	var handler http.Handler = http.HandlerFunc(h.dispatch)
	handler = h.logRequests(handler)
	handler = traceRequests(handler)
	handler = recoverPanics(handler)
	h.handler = handler

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	rt := h.lookup(r.Method, r.URL.Path)
	if _, ok := rt.(preflightRoute); !ok {
		setCommonHeaders(w.Header())
	}
	rt.serve(h, w, r)
}

func setCommonHeaders(header http.Header) {
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Cache-Control", "no-cache")
}
