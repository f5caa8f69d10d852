package observability

import (
	"context"
	"net/http"
)

const (
	RequestIDHeader = "X-Request-Id"
	DeviceIDHeader  = "X-Device-Id"
)

func RequestIDFromRequest(r *http.Request) string { return r.Header.Get(RequestIDHeader) }

func DeviceIDFromRequest(r *http.Request) string { return r.Header.Get(DeviceIDHeader) }

type requestIDKey struct{}

// WithRequestID stores the request id on ctx so events and audit entries
// emitted below the HTTP layer carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
