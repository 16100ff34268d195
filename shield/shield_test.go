package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/covgate/kit"
)

func chain(h http.Handler, mws []func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestDefaultStack_HeadersAndTrace(t *testing.T) {
	var gotTrace string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = kit.TraceIDFrom(r.Context())
		if GetLogger(r.Context()) == nil {
			t.Error("per-request logger missing")
		}
		w.Write([]byte("ok"))
	}), DefaultStack(1024))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coverage", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotTrace == "" || rec.Header().Get("X-Trace-ID") != gotTrace {
		t.Fatalf("trace id: ctx=%q header=%q", gotTrace, rec.Header().Get("X-Trace-ID"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options missing")
	}
	if rec.Header().Get("Cross-Origin-Resource-Policy") != "cross-origin" {
		t.Errorf("CORP = %q", rec.Header().Get("Cross-Origin-Resource-Policy"))
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "img-src") {
		t.Errorf("CSP = %q", rec.Header().Get("Content-Security-Policy"))
	}
}

func TestDefaultStack_HeadOnGetRoute(t *testing.T) {
	r := chi.NewRouter()
	for _, mw := range DefaultStack(1024) {
		r.Use(mw)
	}
	r.Get("/coverage/badge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte("<svg/>"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/coverage/badge", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestTraceID_InboundHeader(t *testing.T) {
	var got string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = kit.TraceIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "0badc0de1234")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "0badc0de1234" || rec.Header().Get(TraceHeader) != got {
		t.Fatalf("inbound trace id not kept: ctx=%q header=%q", got, rec.Header().Get(TraceHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got == "<script>" || len(got) != 8 {
		t.Fatalf("invalid inbound id should be replaced, got %q", got)
	}
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "too large", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789abcdef")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized body: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	if rec.Code != http.StatusOK {
		t.Fatalf("small body: status = %d, want 200", rec.Code)
	}
}

func TestSecurityHeaders_SkipsEmpty(t *testing.T) {
	h := SecurityHeaders(HeaderConfig{XContentTypeOptions: "nosniff"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := rec.Header()["X-Frame-Options"]; ok {
		t.Error("empty X-Frame-Options should not be sent")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options missing")
	}
}
