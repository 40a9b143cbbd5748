// Package device talks to the ESP32 controller that the panel operates.
//
// The controller exposes a tiny HTTP API (/api/status, /api/start and
// /api/stop), all of which are plain GETs. Client makes single, bounded
// attempts against it; callers decide what to tell their own clients when the
// controller cannot be reached.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is where the controller lives when it runs its own access
	// point.
	DefaultBaseURL = "http://192.168.4.1"

	// DefaultTimeout bounds a single request to the controller.
	DefaultTimeout = 3 * time.Second

	// DefaultContentType is assumed when the controller omits a Content-Type.
	DefaultContentType = "application/json; charset=utf-8"
)

// The controller's endpoints.
const (
	EndpointStatus = "/api/status"
	EndpointStart  = "/api/start"
	EndpointStop   = "/api/stop"
)

// Response is a complete, buffered response from the controller.
type Response struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// ConnectionFailure describes a request that never produced a complete
// response: the controller timed out, refused the connection, could not be
// resolved, or hung up mid-body.
type ConnectionFailure struct {
	Endpoint string
	Err      error
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("unable to reach device at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionFailure) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by the request deadline.
func (e *ConnectionFailure) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// Client performs requests against a single controller.
type Client struct {
	// BaseURL is prepended to each endpoint path, and should not end in a slash.
	BaseURL string
	// HTTP is used to perform requests. If nil, http.DefaultClient is used.
	HTTP *http.Client
	// Observe, if set, is called after every fetch with its outcome.
	Observe func(endpoint string, elapsed time.Duration, err error)
}

// NewClient returns a Client for the controller at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Fetch performs a single GET of endpoint, waiting no longer than timeout for
// the complete response. Any status code from the controller is a successful
// fetch; only failures to obtain a response at all are returned as errors, and
// those are always of type *ConnectionFailure.
func (c *Client) Fetch(ctx context.Context, endpoint string, timeout time.Duration) (resp *Response, err error) {
	if c.Observe != nil {
		start := time.Now()
		defer func() { c.Observe(endpoint, time.Since(start), err) }()
	}
	return c.fetch(ctx, endpoint, timeout)
}

func (c *Client) fetch(ctx context.Context, endpoint string, timeout time.Duration) (*Response, error) {
	target := c.BaseURL + endpoint
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &ConnectionFailure{Endpoint: target, Err: err}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &ConnectionFailure{Endpoint: target, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionFailure{Endpoint: target, Err: err}
	}

	ctype := resp.Header.Get("Content-Type")
	if ctype == "" {
		ctype = DefaultContentType
	}

	return &Response{
		Body:        body,
		ContentType: ctype,
		StatusCode:  resp.StatusCode,
	}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// unwrapURLError strips the *url.Error wrapper from client errors, since
// ConnectionFailure already names the URL.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}
