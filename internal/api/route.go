package api

import "net/http"

type routeKey struct {
	Method string
	Path   string
}

// route is one of the handful of things a request can turn out to be. Exact
// (method, path) pairs map to API routes through the Handler's table; anything
// else is decided by method alone.
type route interface {
	// Kind names the route for logs and metrics.
	Kind() string
	serve(h *Handler, w http.ResponseWriter, r *http.Request)
}

// lookup returns the route that a request with the given method and URL path
// would take.
func (h *Handler) lookup(method, path string) route {
	if method == http.MethodOptions {
		return preflightRoute{}
	}
	if rt, ok := h.routes[routeKey{method, path}]; ok {
		return rt
	}
	if method == http.MethodGet {
		return staticRoute{}
	}
	return notFoundRoute{}
}

// preflightRoute answers CORS preflight requests for any path.
type preflightRoute struct{}

func (preflightRoute) Kind() string { return "preflight" }

func (preflightRoute) serve(_ *Handler, w http.ResponseWriter, _ *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

// notFoundRoute is taken by every request that is neither an API call nor a
// GET.
type notFoundRoute struct{}

func (notFoundRoute) Kind() string { return "notfound" }

func (notFoundRoute) serve(_ *Handler, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errNotFound)
}
