package kit

import "context"

// Transport names the surface a call arrived on.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportMCP  Transport = "mcp"
	TransportCLI  Transport = "cli"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	traceIDKey
)

// WithTransport tags ctx with the surface serving the call.
func WithTransport(ctx context.Context, t Transport) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// TransportFrom returns the transport set on ctx. Untagged contexts are HTTP,
// since the chi handlers never tag their requests.
func TransportFrom(ctx context.Context) Transport {
	if t, ok := ctx.Value(transportKey).(Transport); ok {
		return t
	}
	return TransportHTTP
}

// WithTraceID attaches a request trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceIDFrom returns the trace ID on ctx, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
