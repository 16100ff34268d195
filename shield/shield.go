// Package shield provides the HTTP middleware stack placed in front of the
// covgate routes. The stack must be installed with chi's Router.Use, since
// HEAD fallback reads the chi routing context.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(1 << 20) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack: HEAD served by GET
// routes, security headers, the body cap, then tracing.
func DefaultStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.GetHead,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}
