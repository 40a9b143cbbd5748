// Package metrics defines the Prometheus collectors that panelrelay exposes on
// its optional metrics listener.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds panelrelay's collectors. A nil *Metrics is valid and records
// nothing, so that components don't need to care whether metrics are enabled.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	deviceFetches   *prometheus.CounterVec
	deviceDuration  *prometheus.HistogramVec
	assetLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelrelay_http_requests_total",
				Help: "Total number of HTTP requests processed, by route kind.",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panelrelay_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds, by route kind.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 3, 5},
			},
			[]string{"route"},
		),
		deviceFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelrelay_device_fetch_total",
				Help: "Requests made to the device, by endpoint and result.",
			},
			[]string{"endpoint", "result"},
		),
		deviceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "panelrelay_device_fetch_duration_seconds",
				Help: "Duration of requests made to the device in seconds.",
				// The device timeout is 3s, so anything past that is a failure.
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3},
			},
			[]string{"endpoint"},
		),
		assetLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelrelay_asset_lookups_total",
				Help: "Static asset lookups, by source and resulting status.",
			},
			[]string{"source", "status"},
		),
	}
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveDeviceFetch records a request to the device. It has the signature of
// device.Client's Observe hook.
func (m *Metrics) ObserveDeviceFetch(endpoint string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deviceFetches.WithLabelValues(endpoint, result).Inc()
	m.deviceDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveAssetLookup records the outcome of a single asset source lookup.
func (m *Metrics) ObserveAssetLookup(source string, status int) {
	if m == nil {
		return
	}
	m.assetLookups.WithLabelValues(source, strconv.Itoa(status)).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus exposition
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
