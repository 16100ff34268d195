package shield

import "net/http"

// HeaderConfig is the set of security headers applied to every response.
// Empty fields are not sent.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	// CORP must allow cross-origin loads or README badges break.
	CrossOriginResourcePolicy string
}

// DefaultHeaders suits an API whose chart and badge images are embedded by
// other origins (code hosts, dashboards) but never framed.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                       "default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'; frame-ancestors 'none'",
		XFrameOptions:             "DENY",
		XContentTypeOptions:       "nosniff",
		ReferrerPolicy:            "no-referrer",
		CrossOriginResourcePolicy: "cross-origin",
	}
}

func (c HeaderConfig) pairs() [][2]string {
	all := [][2]string{
		{"Content-Security-Policy", c.CSP},
		{"X-Frame-Options", c.XFrameOptions},
		{"X-Content-Type-Options", c.XContentTypeOptions},
		{"Referrer-Policy", c.ReferrerPolicy},
		{"Cross-Origin-Resource-Policy", c.CrossOriginResourcePolicy},
	}
	out := all[:0]
	for _, p := range all {
		if p[1] != "" {
			out = append(out, p)
		}
	}
	return out
}

// SecurityHeaders returns middleware setting cfg's headers before the handler runs.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	set := cfg.pairs()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, p := range set {
				h.Set(p[0], p[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
