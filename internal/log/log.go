// Package log provides special log formatting features for panelrelay.
package log

import (
	"context"
	"log"
	"net/http"
	"reflect"
)

// Tprintf prints its arguments in the manner of [log.Printf], with a prefix of
// the form "Type(0xabcd...)" indicating the element type and address of the src
// pointer. This can be a convenient way to differentiate instances of the same
// type, such as concurrent status sockets.
func Tprintf[T any](src *T, fmt string, v ...any) {
	tfmt := "%s(%p): " + fmt
	tval := make([]any, len(v)+2)
	tval[0], tval[1] = reflect.TypeOf((*T)(nil)).Elem().Name(), src
	copy(tval[2:], v)
	log.Printf(tfmt, tval...)
}

// Rprintf prints its arguments in the manner of [log.Printf], with a prefix of
// the form "Request(id)" carrying the ID that request tracing attached to r's
// context. Requests without an ID fall back to their address, like Tprintf.
func Rprintf(r *http.Request, fmt string, v ...any) {
	rfmt := "Request(%p): " + fmt
	var id any = r
	if rid := RequestID(r.Context()); rid != "" {
		rfmt = "Request(%s): " + fmt
		id = rid
	}

	rval := make([]any, len(v)+1)
	rval[0] = id
	copy(rval[1:], v)
	log.Printf(rfmt, rval...)
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id for use by Rprintf.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
